package lifecycle

import "time"

// Transition describes one processed trigger. Reasons are the values held by
// the context once the target state has been entered.
type Transition struct {
	From               State     `json:"from" cbor:"1,keyasint"`
	To                 State     `json:"to" cbor:"2,keyasint"`
	Trigger            Trigger   `json:"trigger" cbor:"3,keyasint"`
	RejectedReason     Reason    `json:"rejected_reason" cbor:"4,keyasint"`
	DisconnectedReason Reason    `json:"disconnected_reason" cbor:"5,keyasint"`
	At                 time.Time `json:"at" cbor:"6,keyasint"`
}
