package lifecycle

import (
	"github.com/hedzr/go-ringbuf/v2/mpmc"
)

// Journal keeps the most recent transitions. Once full, the oldest entries are
// overwritten.
type Journal struct {
	rb mpmc.RichOverlappedRingBuffer[Transition]
}

// NewJournal creates a journal holding about size transitions. The backing ring
// rounds size up to a power of two.
func NewJournal(size int) *Journal {
	if size <= 0 {
		size = 1
	}
	return &Journal{rb: mpmc.NewOverlappedRingBuffer[Transition](uint32(size))}
}

// Record appends t.
func (j *Journal) Record(t Transition) {
	_, _ = j.rb.EnqueueM(t)
}

// Drain removes and returns the recorded transitions, oldest first.
func (j *Journal) Drain() []Transition {
	var out []Transition
	for !j.rb.IsEmpty() {
		t, err := j.rb.Dequeue()
		if err != nil {
			break
		}
		out = append(out, t)
	}
	return out
}
