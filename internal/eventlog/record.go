package eventlog

import "github.com/srg/blelink/pkg/lifecycle"

// Record is one logged transition.
type Record struct {
	Session    string               `cbor:"1,keyasint"`
	Connection string               `cbor:"2,keyasint,omitempty"`
	Transition lifecycle.Transition `cbor:"3,keyasint"`
}
