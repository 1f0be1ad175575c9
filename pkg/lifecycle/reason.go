package lifecycle

import (
	"errors"
	"fmt"
)

// ReasonKind classifies a rejection or a disconnection.
type ReasonKind uint8

const (
	ReasonNone       ReasonKind = iota // nothing to report
	ReasonError                        // an external operation failed
	ReasonDelayed                      // link lost while services were still being retrieved
	ReasonPeripheral                   // link lost while connected
	ReasonCentral                      // link lost after a requested disconnect
)

func (k ReasonKind) String() string {
	switch k {
	case ReasonNone:
		return "NONE"
	case ReasonError:
		return "ERROR"
	case ReasonDelayed:
		return "DELAYED"
	case ReasonPeripheral:
		return "PERIPHERAL"
	case ReasonCentral:
		return "CENTRAL"
	default:
		return fmt.Sprintf("ReasonKind(%d)", uint8(k))
	}
}

// Reason explains the last rejection or disconnection. The zero value is {NONE, ""}.
type Reason struct {
	Kind    ReasonKind `json:"kind" cbor:"1,keyasint"`
	Message string     `json:"message" cbor:"2,keyasint,omitempty"`
}

// Reported messages for the loss reasons.
const (
	MessageDelayed    = "Delayed disconnection."
	MessagePeripheral = "Disconnected by Peripheral."
	MessageCentral    = "Disconnected by Central."
)

var (
	delayedReason    = Reason{Kind: ReasonDelayed, Message: MessageDelayed}
	peripheralReason = Reason{Kind: ReasonPeripheral, Message: MessagePeripheral}
	centralReason    = Reason{Kind: ReasonCentral, Message: MessageCentral}
)

// IsNone reports whether nothing is recorded.
func (r Reason) IsNone() bool {
	return r.Kind == ReasonNone
}

func (r Reason) String() string {
	if r.Message == "" {
		return r.Kind.String()
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// errorReason converts an operation failure into an ERROR reason carrying the failure text.
func errorReason(err error) Reason {
	if err == nil {
		return Reason{Kind: ReasonError}
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return Reason{Kind: ReasonError, Message: opErr.Message()}
	}
	return Reason{Kind: ReasonError, Message: err.Error()}
}
