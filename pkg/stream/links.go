package stream

import "fmt"

// LinkTable collects the raw reference indices found during one
// container's decode, in exact encounter order. Resolution consumes them
// in the same order; any imbalance means the field walk of the decoder and
// the resolver disagree, which is a schema or codec defect rather than a
// corrupt file.
type LinkTable struct {
	indices []int32
	next    int
}

// Push appends a raw index in encounter order.
func (t *LinkTable) Push(idx int32) {
	t.indices = append(t.indices, idx)
}

// Pop consumes the next index FIFO. Over-consumption is fatal.
func (t *LinkTable) Pop() (int32, error) {
	if t.next >= len(t.indices) {
		return 0, fmt.Errorf("resolver consumed %d links but only %d were read: %w",
			t.next+1, len(t.indices), ErrLinkStackImbalance)
	}
	idx := t.indices[t.next]
	t.next++
	return idx, nil
}

// CheckDrained verifies that resolution consumed every collected index.
func (t *LinkTable) CheckDrained() error {
	if t.next != len(t.indices) {
		return fmt.Errorf("%d of %d links left unresolved: %w",
			len(t.indices)-t.next, len(t.indices), ErrLinkStackImbalance)
	}
	return nil
}

// Len returns the number of collected indices.
func (t *LinkTable) Len() int {
	return len(t.indices)
}

// Reset clears the table for a fresh decode.
func (t *LinkTable) Reset() {
	t.indices = t.indices[:0]
	t.next = 0
}
