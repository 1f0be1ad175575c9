package lifecycle

import (
	"fmt"
	"sort"
	"strings"
)

// State is a lifecycle phase of the machine.
type State uint8

const (
	StateInit State = iota
	StateRequestingDevice
	StateRejected
	StateAwaitingServices
	StateConnected
	StateDisconnecting
	StateDisconnected
	StateSubRequestingDevice
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateRequestingDevice:
		return "RequestingDevice"
	case StateRejected:
		return "Rejected"
	case StateAwaitingServices:
		return "AwaitingServices"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	case StateDisconnected:
		return "Disconnected"
	case StateSubRequestingDevice:
		return "SubRequestingDevice"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Pending reports whether s waits on an external operation.
func (s State) Pending() bool {
	return s == StateRequestingDevice || s == StateAwaitingServices || s == StateSubRequestingDevice
}

// Trigger is an event processed by the machine.
type Trigger uint8

const (
	TriggerRequest Trigger = iota + 1
	TriggerReset
	TriggerConnect
	TriggerDisconnect

	// Raised by the machine itself.
	TriggerLost
	TriggerDeviceResolved
	TriggerDeviceFailed
	TriggerServicesResolved
	TriggerServicesFailed
)

func (t Trigger) String() string {
	switch t {
	case TriggerRequest:
		return "REQUEST"
	case TriggerReset:
		return "RESET"
	case TriggerConnect:
		return "CONNECT"
	case TriggerDisconnect:
		return "DISCONNECT"
	case TriggerLost:
		return "LOST"
	case TriggerDeviceResolved:
		return "DEVICE_RESOLVED"
	case TriggerDeviceFailed:
		return "DEVICE_FAILED"
	case TriggerServicesResolved:
		return "SERVICES_RESOLVED"
	case TriggerServicesFailed:
		return "SERVICES_FAILED"
	default:
		return fmt.Sprintf("Trigger(%d)", uint8(t))
	}
}

// Public reports whether callers may send t.
func (t Trigger) Public() bool {
	return t >= TriggerRequest && t <= TriggerDisconnect
}

// completion reports whether t carries the result of an external operation.
func (t Trigger) completion() bool {
	return t >= TriggerDeviceResolved && t <= TriggerServicesFailed
}

// ParseTrigger maps a public trigger name (case-insensitive) to its value.
func ParseTrigger(name string) (Trigger, error) {
	for t := TriggerRequest; t <= TriggerDisconnect; t++ {
		if strings.EqualFold(name, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown trigger %q", name)
}

// transitions is the state table. Entry, exit and transition actions live in Machine.
var transitions = map[State]map[Trigger]State{
	StateInit: {
		TriggerRequest: StateRequestingDevice,
	},
	StateRequestingDevice: {
		TriggerDeviceResolved: StateAwaitingServices,
		TriggerDeviceFailed:   StateRejected,
	},
	StateRejected: {
		TriggerRequest: StateRequestingDevice,
		TriggerReset:   StateInit,
	},
	StateAwaitingServices: {
		TriggerServicesResolved: StateConnected,
		TriggerServicesFailed:   StateDisconnected,
		TriggerLost:             StateDisconnected,
	},
	StateConnected: {
		TriggerDisconnect: StateDisconnecting,
		TriggerLost:       StateDisconnected,
	},
	StateDisconnecting: {
		TriggerLost: StateDisconnected,
	},
	StateDisconnected: {
		TriggerConnect: StateAwaitingServices,
		TriggerRequest: StateSubRequestingDevice,
		TriggerReset:   StateInit,
	},
	StateSubRequestingDevice: {
		TriggerDeviceResolved: StateAwaitingServices,
		TriggerDeviceFailed:   StateDisconnected,
	},
}

// lookup returns the target of t in s.
func lookup(s State, t Trigger) (State, bool) {
	next, ok := transitions[s][t]
	return next, ok
}

// Edge is one row of the state table.
type Edge struct {
	From    State
	Trigger Trigger
	To      State
}

// Table returns the state table ordered by source state, then trigger.
func Table() []Edge {
	edges := make([]Edge, 0, 17)
	for from, row := range transitions {
		for trig, to := range row {
			edges = append(edges, Edge{From: from, Trigger: trig, To: to})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].Trigger < edges[j].Trigger
	})
	return edges
}
