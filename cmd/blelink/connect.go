package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/srg/blelink/pkg/lifecycle"
)

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Request a device and stay connected until interrupted",
		Long: `Requests a device, retrieves its services and prints every lifecycle
transition. Ctrl+C disconnects the device, resets the machine and exits.

Without --address the strongest advertising device matching --name-prefix and
--service is selected.`,
		Args: cobra.NoArgs,
		RunE: runConnect,
	}
	addSessionFlags(cmd)
	return cmd
}

func runConnect(cmd *cobra.Command, _ []string) error {
	s, r, err := setupSession(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return connect(sigCtx, s, r)
}

// connect drives s until the link is lost, the request is rejected or
// interrupt is done. The machine outlives interrupt so the device can be
// disconnected cleanly.
func connect(interrupt context.Context, s *session, r *renderer) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed, unsubscribe := s.machine.Subscribe()
	if err := s.start(runCtx); err != nil {
		unsubscribe()
		return err
	}
	defer s.close()

	g, gctx := errgroup.WithContext(runCtx)
	states := make(chan lifecycle.Transition, s.cfg.FeedBuffer)
	quit := make(chan struct{})

	g.Go(func() error {
		defer close(states)
		for tr := range feed {
			r.transition(tr)
			select {
			case states <- tr:
			case <-quit:
				return nil
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	g.Go(func() error {
		defer close(quit)
		defer unsubscribe()
		return drive(interrupt, gctx, s, states)
	})

	return g.Wait()
}

func drive(interrupt, ctx context.Context, s *session, states <-chan lifecycle.Transition) error {
	if err := s.send(ctx, lifecycle.TriggerRequest); err != nil {
		return err
	}
	for {
		select {
		case <-interrupt.Done():
			return shutdown(ctx, s, states)
		case tr, ok := <-states:
			if !ok {
				return lifecycle.ErrMachineStopped
			}
			switch {
			case tr.To == lifecycle.StateRejected:
				return fmt.Errorf("%w: %s", ErrRequestRejected, tr.RejectedReason.Message)
			case tr.To == lifecycle.StateAwaitingServices && s.conn.Device() == nil:
				// The request resolved without a selection; retrieval fails next.
				settle(ctx, s, states, lifecycle.StateDisconnected)
				if err := s.send(ctx, lifecycle.TriggerReset); err != nil {
					return err
				}
				return ErrNoSelection
			case tr.To == lifecycle.StateDisconnected:
				if err := s.send(ctx, lifecycle.TriggerReset); err != nil {
					return err
				}
				settle(ctx, s, states, lifecycle.StateInit)
				return fmt.Errorf("%w: %s", ErrConnectionLost, tr.DisconnectedReason)
			}
		}
	}
}

// settle waits for target before the command returns. Failing to reach it does
// not change the command's result, so the error is only logged.
func settle(ctx context.Context, s *session, states <-chan lifecycle.Transition, target lifecycle.State) {
	if _, err := await(ctx, states, target, s.cfg.ConnectTimeout); err != nil {
		s.logger.WithFields(logrus.Fields{
			"state":  s.machine.State(),
			"target": target,
			"error":  err,
		}).Debug("session did not settle")
	}
}

// shutdown disconnects a connected device, waits for the loss to be reported
// and resets the machine. It returns context.Canceled so the CLI exits quietly.
func shutdown(ctx context.Context, s *session, states <-chan lifecycle.Transition) error {
	if s.machine.State() == lifecycle.StateConnected {
		if err := s.send(ctx, lifecycle.TriggerDisconnect); err != nil {
			return err
		}
		if _, err := await(ctx, states, lifecycle.StateDisconnected, s.cfg.ConnectTimeout); err != nil {
			return err
		}
	}
	if s.machine.State() == lifecycle.StateDisconnected || s.machine.State() == lifecycle.StateRejected {
		if err := s.send(ctx, lifecycle.TriggerReset); err != nil {
			return err
		}
		if _, err := await(ctx, states, lifecycle.StateInit, s.cfg.ConnectTimeout); err != nil {
			return err
		}
	}
	return context.Canceled
}
