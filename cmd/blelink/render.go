package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/blelink/internal/bledb"
	"github.com/srg/blelink/internal/eventlog"
	"github.com/srg/blelink/pkg/config"
	"github.com/srg/blelink/pkg/lifecycle"
)

const timeLayout = "15:04:05.000"

type reasonView struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

type transitionView struct {
	From         string      `json:"from"`
	To           string      `json:"to"`
	Trigger      string      `json:"trigger"`
	Rejected     *reasonView `json:"rejected_reason,omitempty"`
	Disconnected *reasonView `json:"disconnected_reason,omitempty"`
	At           time.Time   `json:"at"`
}

type statusView struct {
	Session      string     `json:"session"`
	State        string     `json:"state"`
	Device       string     `json:"device,omitempty"`
	DeviceName   string     `json:"device_name,omitempty"`
	Services     []string   `json:"services"`
	Rejected     reasonView `json:"rejected_reason"`
	Disconnected reasonView `json:"disconnected_reason"`
	Processed    uint64     `json:"processed"`
	Ignored      uint64     `json:"ignored"`
	Stale        uint64     `json:"stale"`
}

type edgeView struct {
	From    string `json:"from"`
	Trigger string `json:"trigger"`
	To      string `json:"to"`
}

func newReasonView(r lifecycle.Reason) reasonView {
	return reasonView{Kind: r.Kind.String(), Message: r.Message}
}

func newTransitionView(tr lifecycle.Transition) transitionView {
	v := transitionView{
		From:    tr.From.String(),
		To:      tr.To.String(),
		Trigger: tr.Trigger.String(),
		At:      tr.At,
	}
	if !tr.RejectedReason.IsNone() {
		rv := newReasonView(tr.RejectedReason)
		v.Rejected = &rv
	}
	if !tr.DisconnectedReason.IsNone() {
		rv := newReasonView(tr.DisconnectedReason)
		v.Disconnected = &rv
	}
	return v
}

// renderer writes command output as colored text or JSON lines.
type renderer struct {
	out    io.Writer
	json   bool
	state  *color.Color
	fail   *color.Color
	muted  *color.Color
	header *color.Color
}

func newRenderer(out io.Writer, format string, colorize bool) *renderer {
	r := &renderer{
		out:    out,
		json:   format == config.OutputJSON,
		state:  color.New(color.FgCyan, color.Bold),
		fail:   color.New(color.FgRed),
		muted:  color.New(color.Faint),
		header: color.New(color.Bold),
	}
	for _, c := range []*color.Color{r.state, r.fail, r.muted, r.header} {
		if colorize && !r.json {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// rendererFor builds a renderer for cmd's stdout. Colors are used only on a
// terminal and never with --no-color.
func rendererFor(cmd *cobra.Command, format string) *renderer {
	out := cmd.OutOrStdout()
	noColor, _ := cmd.Flags().GetBool("no-color")
	return newRenderer(out, format, !noColor && isTerminal(out))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *renderer) encode(v any) {
	_ = json.NewEncoder(r.out).Encode(v)
}

func (r *renderer) transition(tr lifecycle.Transition) {
	if r.json {
		r.encode(newTransitionView(tr))
		return
	}
	line := fmt.Sprintf("%s %s -> %s [%s]",
		r.muted.Sprint(tr.At.Format(timeLayout)),
		tr.From,
		r.state.Sprint(tr.To),
		tr.Trigger,
	)
	if !tr.RejectedReason.IsNone() {
		line += " " + r.fail.Sprintf("rejected: %s", tr.RejectedReason)
	}
	if !tr.DisconnectedReason.IsNone() {
		line += " " + r.fail.Sprintf("disconnected: %s", tr.DisconnectedReason)
	}
	fmt.Fprintln(r.out, line)
}

func (r *renderer) history(transitions []lifecycle.Transition) {
	if len(transitions) == 0 && !r.json {
		fmt.Fprintln(r.out, r.muted.Sprint("no transitions yet"))
		return
	}
	for _, tr := range transitions {
		r.transition(tr)
	}
}

func (r *renderer) status(m *lifecycle.Machine) {
	snap := m.Context()
	stats := m.Stats()
	v := statusView{
		Session:      m.Session(),
		State:        m.State().String(),
		Services:     []string{},
		Rejected:     newReasonView(snap.RejectedReason),
		Disconnected: newReasonView(snap.DisconnectedReason),
		Processed:    stats.Processed,
		Ignored:      stats.Ignored,
		Stale:        stats.Stale,
	}
	if dev := snap.Conn.Device(); dev != nil {
		v.Device = dev.ID()
		v.DeviceName = dev.Name()
	}
	if svc := snap.Conn.Services(); svc != nil {
		v.Services = svc.UUIDs()
	}

	if r.json {
		r.encode(v)
		return
	}

	device := "-"
	if v.Device != "" {
		device = v.Device
		if v.DeviceName != "" {
			device += " (" + v.DeviceName + ")"
		}
	}
	services := "-"
	if len(v.Services) > 0 {
		described := make([]string, 0, len(v.Services))
		for _, u := range v.Services {
			described = append(described, bledb.Describe(u))
		}
		services = strings.Join(described, ", ")
	}

	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "state:\t%s\n", r.state.Sprint(v.State))
	fmt.Fprintf(tw, "device:\t%s\n", device)
	fmt.Fprintf(tw, "services:\t%s\n", services)
	fmt.Fprintf(tw, "rejected:\t%s\n", snap.RejectedReason)
	fmt.Fprintf(tw, "disconnected:\t%s\n", snap.DisconnectedReason)
	fmt.Fprintf(tw, "triggers:\t%d processed, %d ignored, %d stale\n", v.Processed, v.Ignored, v.Stale)
	_ = tw.Flush()
}

func (r *renderer) table(edges []lifecycle.Edge) {
	if r.json {
		views := make([]edgeView, 0, len(edges))
		for _, e := range edges {
			views = append(views, edgeView{From: e.From.String(), Trigger: e.Trigger.String(), To: e.To.String()})
		}
		r.encode(views)
		return
	}

	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, r.header.Sprint("FROM")+"\t"+r.header.Sprint("TRIGGER")+"\t"+r.header.Sprint("TO"))
	for _, e := range edges {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.From, e.Trigger, e.To)
	}
	_ = tw.Flush()
}

func (r *renderer) sessionHeader(rec eventlog.Record) {
	label := rec.Session
	if rec.Connection != "" {
		label += " (" + rec.Connection + ")"
	}
	fmt.Fprintln(r.out, r.header.Sprint("session "+label))
}
