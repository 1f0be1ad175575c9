package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/srg/blelink/pkg/lifecycle"
)

// RequestOptions configures peripheral selection.
type RequestOptions struct {
	// Address selects a peripheral directly and skips scanning.
	Address string
	// NamePrefix keeps only advertisements whose local name starts with it.
	NamePrefix string
	// Services keeps only advertisements that list one of these services.
	Services []ble.UUID

	ScanTimeout    time.Duration `default:"10s"`
	ConnectTimeout time.Duration `default:"30s"`
}

// DefaultRequestOptions returns options with default timeouts.
func DefaultRequestOptions() *RequestOptions {
	opts := &RequestOptions{}
	defaults.SetDefaults(opts)
	return opts
}

type candidate struct {
	addr ble.Addr
	name string
	rssi int
}

// Requester selects and dials a peripheral. It implements lifecycle.DeviceRequester.
type Requester struct {
	opts   RequestOptions
	logger *logrus.Logger
}

// NewRequester creates a requester. Nil opts means DefaultRequestOptions.
func NewRequester(opts *RequestOptions, logger *logrus.Logger) *Requester {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultRequestOptions()
	}
	o := *opts
	def := DefaultRequestOptions()
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = def.ScanTimeout
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	return &Requester{opts: o, logger: logger}
}

// RequestDevice dials the configured address, or scans and dials the strongest
// matching peripheral. It returns (nil, nil) when the scan finds no candidate.
func (r *Requester) RequestDevice(ctx context.Context) (lifecycle.Device, error) {
	adapter, err := DeviceFactory()
	if err != nil {
		r.logger.WithField("error", err).Error("Failed to create BLE device")
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}

	var target candidate
	if r.opts.Address != "" {
		target = candidate{addr: ble.NewAddr(r.opts.Address)}
	} else {
		best, err := r.scan(ctx, adapter)
		if err != nil {
			return nil, err
		}
		if best == nil {
			r.logger.Info("No matching device found")
			return nil, nil
		}
		target = *best
	}

	return r.dial(ctx, adapter, target)
}

func (r *Requester) scan(ctx context.Context, adapter Adapter) (*candidate, error) {
	candidates := hashmap.New[string, candidate]()

	r.logger.WithFields(logrus.Fields{
		"duration":    r.opts.ScanTimeout,
		"name_prefix": r.opts.NamePrefix,
		"services":    len(r.opts.Services),
	}).Info("Starting BLE scan...")

	scanCtx, cancel := context.WithTimeout(ctx, r.opts.ScanTimeout)
	defer cancel()

	handler := func(adv ble.Advertisement) {
		if !r.matches(adv) {
			return
		}
		id := adv.Addr().String()
		c := candidate{
			addr: adv.Addr(),
			name: adv.LocalName(),
			rssi: adv.RSSI(),
		}
		if _, seen := candidates.Get(id); !seen {
			r.logger.WithFields(logrus.Fields{
				"device":  c.name,
				"address": id,
				"rssi":    c.rssi,
			}).Info("Discovered new device")
		}
		candidates.Set(id, c)
	}

	err := adapter.Scan(scanCtx, false, handler)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", NormalizeError(err))
	}

	r.logger.WithField("device_count", candidates.Len()).Info("BLE scan completed")
	return strongest(candidates), nil
}

func (r *Requester) matches(adv ble.Advertisement) bool {
	if !adv.Connectable() {
		return false
	}
	if r.opts.NamePrefix != "" && !strings.HasPrefix(adv.LocalName(), r.opts.NamePrefix) {
		return false
	}
	if len(r.opts.Services) == 0 {
		return true
	}
	for _, required := range r.opts.Services {
		for _, advUUID := range adv.Services() {
			if required.Equal(advUUID) {
				return true
			}
		}
	}
	return false
}

// strongest picks the candidate with the highest RSSI. Ties go to the lowest address.
func strongest(candidates *hashmap.Map[string, candidate]) *candidate {
	var best *candidate
	var bestID string
	candidates.Range(func(id string, c candidate) bool {
		if best == nil || c.rssi > best.rssi || (c.rssi == best.rssi && id < bestID) {
			picked := c
			best = &picked
			bestID = id
		}
		return true
	})
	return best
}

func (r *Requester) dial(ctx context.Context, adapter Adapter, target candidate) (lifecycle.Device, error) {
	address := target.addr.String()
	r.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": r.opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	connCtx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
	defer cancel()

	client, err := adapter.Dial(connCtx, target.addr)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}

	return NewDevice(client, target.name, r.logger), nil
}
