package transfer

import (
	"github.com/cirrus-project/cirrus/pkg/logging"
)

// defaultMaxBufferSize applies when neither the caller nor the session
// constrains the buffer size.
const defaultMaxBufferSize = 8 * 1024 * 1024

// AutoFinalize controls what Close does to an in-flight upload.
type AutoFinalize int

const (
	// AutoFinalizeEnabled makes Close finalize the upload.
	AutoFinalizeEnabled AutoFinalize = iota

	// AutoFinalizeDisabled makes Close leave the session open, so the caller
	// can persist the session id and resume the upload later.
	AutoFinalizeDisabled
)

// ChunkedWriteBuffer presents a plain byte sink over a resumable upload
// session while obeying the session's chunk-quantum alignment.
//
// Writes accumulate in an internal buffer; once the buffer would overflow,
// the largest quantum-aligned prefix is flushed through the session and the
// remainder (always shorter than one quantum) stays buffered. Finalize sends
// whatever remains as the final, unaligned chunk.
//
// Not safe for concurrent use: one writer owns the buffer and its session.
type ChunkedWriteBuffer struct {
	session      ResumableUploadSession
	buf          []byte
	capacity     uint64
	autoFinalize AutoFinalize
	open         bool
	lastResult   UploadResult
	lastErr      error
	logger       logging.Interface
}

// NewChunkedWriteBuffer creates a write buffer over session. maxBufferSize
// is rounded up to a multiple of the session's chunk quantum; zero selects
// a single-quantum buffer.
func NewChunkedWriteBuffer(session ResumableUploadSession, maxBufferSize uint64, autoFinalize AutoFinalize, logger logging.Interface) *ChunkedWriteBuffer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	quantum := session.ChunkSizeQuantum()
	capacity := maxBufferSize
	if quantum > 0 {
		if capacity < quantum {
			capacity = quantum
		} else if rem := capacity % quantum; rem != 0 {
			capacity += quantum - rem
		}
	}
	if capacity == 0 {
		capacity = defaultMaxBufferSize
	}
	return &ChunkedWriteBuffer{
		session:      session,
		buf:          make([]byte, 0, capacity),
		capacity:     capacity,
		autoFinalize: autoFinalize,
		open:         !session.Done(),
		lastResult:   session.LastResponse(),
		logger:       logger,
	}
}

// IsOpen reports whether the sink still accepts writes.
func (w *ChunkedWriteBuffer) IsOpen() bool {
	return w.open
}

// SessionID returns the resumable session identifier, valid even after a
// failure.
func (w *ChunkedWriteBuffer) SessionID() string {
	return w.session.SessionID()
}

// NextExpectedByte returns the backend's committed byte count.
func (w *ChunkedWriteBuffer) NextExpectedByte() uint64 {
	return w.session.NextExpectedByte()
}

// LastStatus returns the result and error of the most recent session
// operation.
func (w *ChunkedWriteBuffer) LastStatus() (UploadResult, error) {
	return w.lastResult, w.lastErr
}

// Write buffers p, flushing full quantum-aligned buffers through the
// session as they fill. It implements io.Writer.
func (w *ChunkedWriteBuffer) Write(p []byte) (int, error) {
	if !w.open {
		if w.lastErr != nil {
			return 0, w.lastErr
		}
		return 0, Errorf(CodeFailedPrecondition, "Write", "write on closed upload buffer")
	}

	total := len(p)

	// Flush one full buffer per round. The capacity is a quantum multiple,
	// so every chunk sent here is quantum aligned; payloads larger than the
	// buffer turn into a series of capacity-sized chunks.
	for uint64(len(w.buf))+uint64(len(p)) >= w.capacity {
		fromP := w.capacity - uint64(len(w.buf))
		payload := NewBufferSequence(w.buf, p[:fromP])

		previous := w.session.NextExpectedByte()
		expected := previous + w.capacity

		result, err := w.session.UploadChunk(payload)
		w.lastResult, w.lastErr = result, err
		if err != nil {
			w.open = false
			return total - len(p), err
		}

		actual := w.session.NextExpectedByte()
		switch {
		case actual == expected:
			w.buf = w.buf[:0]
			p = p[fromP:]

		case actual > expected || actual < previous:
			// The backend reported more bytes than were sent, or moved the
			// committed count backward. The session state can no longer be
			// trusted.
			return total - len(p), w.abort(previous, expected, actual)

		default:
			// Short write: retain the uncommitted suffix of the sent
			// payload for the next round.
			committed := actual - previous
			w.logger.WithField("committed", committed).
				WithField("sent", w.capacity).
				Debug("short write, retaining uncommitted bytes")
			sent := payload.Flatten()
			w.buf = append(w.buf[:0:0], sent[committed:]...)
			p = p[fromP:]
		}
	}

	w.buf = append(w.buf, p...)
	return total, nil
}

// Finalize uploads any remaining bytes as the final chunk and closes the
// sink. The total upload size is the committed byte count plus the buffered
// remainder.
func (w *ChunkedWriteBuffer) Finalize() (UploadResult, error) {
	if !w.open {
		return w.lastResult, w.lastErr
	}
	w.open = false

	uploadSize := w.session.NextExpectedByte() + uint64(len(w.buf))
	result, err := w.session.UploadFinalChunk(NewBufferSequence(w.buf), uploadSize)
	w.lastResult, w.lastErr = result, err
	if err != nil {
		return result, err
	}
	w.buf = w.buf[:0]
	w.logger.WithField("sessionId", w.session.SessionID()).
		WithField("size", uploadSize).Debug("upload finalized")
	return result, nil
}

// Suspend closes the sink without finalizing the upload. The server-side
// session stays open; the caller can persist SessionID and resume later.
// Buffered bytes below one quantum are discarded, so resumption restarts
// from NextExpectedByte.
func (w *ChunkedWriteBuffer) Suspend() {
	w.open = false
	w.buf = w.buf[:0]
}

// Close disposes the sink according to the auto-finalize policy.
func (w *ChunkedWriteBuffer) Close() error {
	if w.autoFinalize == AutoFinalizeDisabled {
		w.Suspend()
		return nil
	}
	_, err := w.Finalize()
	return err
}

// abort poisons the buffer after a protocol violation, swapping in an error
// sentinel session so the session id and committed byte count remain
// queryable.
func (w *ChunkedWriteBuffer) abort(previous, expected, actual uint64) error {
	err := Errorf(CodeAborted, "UploadChunk",
		"backend reported inconsistent committed byte count: had %d, sent up to %d, got %d",
		previous, expected, actual)
	w.logger.WithError(err).WithField("sessionId", w.session.SessionID()).
		Error("aborting upload after protocol violation")
	last := w.lastResult
	last.SessionID = w.session.SessionID()
	last.LastCommittedByte = previous
	w.session = NewErrorSession(last, err)
	w.lastErr = err
	w.open = false
	w.buf = w.buf[:0]
	return err
}
