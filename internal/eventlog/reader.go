package eventlog

import (
	"errors"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader streams records from an event log file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	session string
}

// NewReader opens path. A non-empty session keeps only that session's records.
func NewReader(path, session string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: newDecoder(f), session: session}, nil
}

// Next returns the next matching record, or io.EOF at the end of the file.
func (r *Reader) Next() (Record, error) {
	for {
		var rec Record
		if err := r.decoder.Decode(&rec); err != nil {
			return Record{}, err
		}
		if r.session == "" || rec.Session == r.session {
			return rec, nil
		}
	}
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Decode reads every record from rd.
func Decode(rd io.Reader) ([]Record, error) {
	dec := newDecoder(rd)
	var out []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
