package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blelink/internal/eventlog"
	"github.com/srg/blelink/internal/goble"
	"github.com/srg/blelink/internal/groutine"
	"github.com/srg/blelink/pkg/config"
	"github.com/srg/blelink/pkg/lifecycle"
)

// backend supplies the external operations of a session.
type backend struct {
	requester lifecycle.DeviceRequester
	retriever lifecycle.ServiceRetriever
}

// newBackend builds the go-ble backend. Tests replace it.
var newBackend = func(cfg *config.Config, logger *logrus.Logger) backend {
	return backend{
		requester: goble.NewRequester(cfg.RequestOptions(), logger),
		retriever: goble.NewRetriever(logger),
	}
}

// session ties one Connection to its Machine and the optional event log.
type session struct {
	cfg     *config.Config
	logger  *logrus.Logger
	conn    *lifecycle.Connection
	machine *lifecycle.Machine

	events     *eventlog.FileLogger
	eventsDone <-chan struct{}
}

func newSession(cfg *config.Config, logger *logrus.Logger) (*session, error) {
	b := newBackend(cfg, logger)
	conn := lifecycle.NewConnection(b.requester, b.retriever, &lifecycle.ConnectionOptions{Name: cfg.Name}, logger)
	s := &session{
		cfg:     cfg,
		logger:  logger,
		conn:    conn,
		machine: lifecycle.NewMachine(lifecycle.NewContext(conn), cfg.MachineOptions(), logger),
	}
	if cfg.EventLog != "" {
		events, err := eventlog.NewFileLogger(cfg.EventLog)
		if err != nil {
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		s.events = events
	}
	return s, nil
}

// start launches the machine and, when configured, the event log writer.
func (s *session) start(ctx context.Context) error {
	if s.events != nil {
		feed, _ := s.machine.Subscribe()
		session := s.machine.Session()
		s.eventsDone = groutine.GoDone(ctx, "event-log", func(context.Context) {
			s.events.Follow(feed, session, s.cfg.Name, func(err error) {
				s.logger.WithError(err).Warn("failed to write event log record")
			})
		})
	}
	return s.machine.Start(ctx)
}

// close stops the machine, flushes the event log and disconnects a device
// the machine still holds.
func (s *session) close() {
	s.machine.Stop()
	if s.eventsDone != nil {
		<-s.eventsDone
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			s.logger.WithError(err).Warn("failed to close event log")
		}
	}
	if s.conn.Device() != nil {
		s.conn.DisconnectGattServer()
	}
	s.conn.Purge()
}

func (s *session) send(ctx context.Context, t lifecycle.Trigger) error {
	return s.machine.Send(ctx, t)
}

// await reads transitions from states until one enters target.
func await(ctx context.Context, states <-chan lifecycle.Transition, target lifecycle.State, timeout time.Duration) (lifecycle.Transition, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case tr, ok := <-states:
			if !ok {
				return lifecycle.Transition{}, lifecycle.ErrMachineStopped
			}
			if tr.To == target {
				return tr, nil
			}
		case <-timer.C:
			return lifecycle.Transition{}, fmt.Errorf("timed out after %s waiting for %s", timeout, target)
		case <-ctx.Done():
			return lifecycle.Transition{}, ctx.Err()
		}
	}
}

// loadConfig builds the effective configuration: defaults, then --config,
// then command flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.OutputFormat, _ = flags.GetString("output")
	}
	if flags.Lookup("address") != nil {
		if flags.Changed("address") {
			cfg.DeviceAddress, _ = flags.GetString("address")
		}
		if flags.Changed("name-prefix") {
			cfg.NamePrefix, _ = flags.GetString("name-prefix")
		}
		if flags.Changed("service") {
			cfg.Services, _ = flags.GetStringSlice("service")
		}
		if flags.Changed("scan-timeout") {
			cfg.ScanTimeout, _ = flags.GetDuration("scan-timeout")
		}
		if flags.Changed("connect-timeout") {
			cfg.ConnectTimeout, _ = flags.GetDuration("connect-timeout")
		}
		if flags.Changed("name") {
			cfg.Name, _ = flags.GetString("name")
		}
		if flags.Changed("event-log") {
			cfg.EventLog, _ = flags.GetString("event-log")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// addSessionFlags registers the flags that override device selection.
func addSessionFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("address", "", "Connect to this address without scanning")
	flags.String("name-prefix", "", "Select only devices whose name starts with this prefix")
	flags.StringSlice("service", nil, "Select only devices advertising one of these service UUIDs")
	flags.Duration("scan-timeout", 0, "How long to scan for candidates (default 10s)")
	flags.Duration("connect-timeout", 0, "Connection timeout (default 30s)")
	flags.String("name", "", "Label for this connection in logs and event records")
	flags.String("event-log", "", "Append CBOR transition records to this file")
}

// setupSession loads the configuration and logger and builds a session.
func setupSession(cmd *cobra.Command) (*session, *renderer, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := configureLogger(cmd, fileLogLevel(cmd, cfg))
	if err != nil {
		return nil, nil, err
	}
	s, err := newSession(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return s, rendererFor(cmd, cfg.OutputFormat), nil
}

// fileLogLevel returns the config file's log level, or "" without --config.
func fileLogLevel(cmd *cobra.Command, cfg *config.Config) string {
	if path, _ := cmd.Flags().GetString("config"); path == "" {
		return ""
	}
	return cfg.LogLevel
}
