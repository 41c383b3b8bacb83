package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferSequenceTotalBytes(t *testing.T) {
	s := NewBufferSequence([]byte("abc"), nil, []byte("de"))
	assert.Equal(t, uint64(5), s.TotalBytes())
	assert.Len(t, s.Spans(), 2, "empty spans are skipped")
	assert.False(t, s.Empty())
}

func TestBufferSequencePopFrontBytes(t *testing.T) {
	tests := []struct {
		name     string
		pop      uint64
		expected string
	}{
		{"nothing", 0, "abcdefgh"},
		{"within first span", 2, "cdefgh"},
		{"exactly first span", 3, "defgh"},
		{"across spans", 5, "fgh"},
		{"everything", 8, ""},
		{"past the end", 20, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewBufferSequence([]byte("abc"), []byte("defgh"))
			s.PopFrontBytes(tt.pop)
			assert.Equal(t, tt.expected, string(s.Flatten()))
		})
	}
}

func TestBufferSequencePopDoesNotCopy(t *testing.T) {
	backing := []byte("abcdef")
	s := NewBufferSequence(backing)
	s.PopFrontBytes(2)

	spans := s.Spans()
	assert.Len(t, spans, 1)
	// The retained span must alias the original backing array.
	assert.Equal(t, &backing[2], &spans[0][0])
}

func TestBufferSequenceEmpty(t *testing.T) {
	s := NewBufferSequence()
	assert.True(t, s.Empty())
	assert.Equal(t, uint64(0), s.TotalBytes())
	s.PopFrontBytes(10)
	assert.True(t, s.Empty())
}
