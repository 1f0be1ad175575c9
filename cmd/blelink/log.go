package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/srg/blelink/internal/eventlog"
)

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <file>",
		Short: "Print transitions recorded with --event-log",
		Args:  cobra.ExactArgs(1),
		RunE:  runLog,
	}
	cmd.Flags().String("session", "", "Only print records of this session")
	return cmd
}

func runLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	session, _ := cmd.Flags().GetString("session")
	reader, err := eventlog.NewReader(args[0], session)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer reader.Close()

	r := rendererFor(cmd, cfg.OutputFormat)
	last := ""
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to decode event log: %w", err)
		}
		if !r.json && rec.Session != last {
			r.sessionHeader(rec)
			last = rec.Session
		}
		r.transition(rec.Transition)
	}
}
