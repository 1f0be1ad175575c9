package goble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/blelink/internal/groutine"
	"github.com/srg/blelink/pkg/lifecycle"
)

// Retriever discovers the GATT profile of a Device. It implements
// lifecycle.ServiceRetriever.
type Retriever struct {
	logger *logrus.Logger
}

func NewRetriever(logger *logrus.Logger) *Retriever {
	if logger == nil {
		logger = logrus.New()
	}
	return &Retriever{logger: logger}
}

type discovery struct {
	profile *ble.Profile
	err     error
}

// RetrieveServices runs a full profile discovery. Discovery itself cannot be
// interrupted; when ctx ends first the result is abandoned.
func (r *Retriever) RetrieveServices(ctx context.Context, dev lifecycle.Device) (lifecycle.Services, error) {
	d, ok := dev.(*Device)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedDevice, dev)
	}
	if !d.IsConnected() {
		return nil, ErrNotConnected
	}

	r.logger.WithField("address", d.ID()).Debug("Discovering services and characteristics...")

	result := make(chan discovery, 1)
	groutine.Go(ctx, "ble-discover-profile", func(context.Context) {
		p, err := d.discoverProfile()
		result <- discovery{profile: p, err: err}
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.err != nil {
			r.logger.WithFields(logrus.Fields{
				"address": d.ID(),
				"error":   res.err,
			}).Error("Failed to discover profile")
			return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(res.err))
		}
		profile := NewProfile(res.profile)
		r.logger.WithFields(logrus.Fields{
			"address":  d.ID(),
			"services": len(profile.UUIDs()),
		}).Debug("Profile discovered successfully")
		return profile, nil
	}
}
