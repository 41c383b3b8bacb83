package transfer

// BufferSequence is an ordered sequence of immutable byte spans forming one
// pending payload. Retry-driven offset adjustments drop already-committed
// bytes from the front by re-slicing, never by copying the retained
// remainder.
//
// The spans are borrowed, not owned: callers must not mutate them while the
// sequence is in use.
type BufferSequence struct {
	spans [][]byte
}

// NewBufferSequence creates a sequence over the given spans. Empty spans
// are skipped.
func NewBufferSequence(spans ...[]byte) BufferSequence {
	s := BufferSequence{spans: make([][]byte, 0, len(spans))}
	for _, span := range spans {
		if len(span) > 0 {
			s.spans = append(s.spans, span)
		}
	}
	return s
}

// TotalBytes returns the number of pending bytes across all spans.
func (s BufferSequence) TotalBytes() uint64 {
	var total uint64
	for _, span := range s.spans {
		total += uint64(len(span))
	}
	return total
}

// Empty reports whether no bytes are pending.
func (s BufferSequence) Empty() bool {
	return len(s.spans) == 0
}

// Spans returns the pending spans in order.
func (s BufferSequence) Spans() [][]byte {
	return s.spans
}

// PopFrontBytes drops the first n bytes from the sequence. Dropping more
// bytes than are pending empties the sequence.
func (s *BufferSequence) PopFrontBytes(n uint64) {
	for n > 0 && len(s.spans) > 0 {
		front := s.spans[0]
		if n < uint64(len(front)) {
			s.spans[0] = front[n:]
			return
		}
		n -= uint64(len(front))
		s.spans = s.spans[1:]
	}
}

// Flatten copies the pending bytes into a single contiguous slice. Intended
// for transports that need one buffer; the hot paths never call it.
func (s BufferSequence) Flatten() []byte {
	out := make([]byte, 0, s.TotalBytes())
	for _, span := range s.spans {
		out = append(out, span...)
	}
	return out
}
