package transfer

// UploadState is the lifecycle state of a resumable upload session.
type UploadState int

const (
	// UploadInProgress means the session accepts more chunks.
	UploadInProgress UploadState = iota

	// UploadDone means the backend finalized the object. Terminal.
	UploadDone
)

// String returns the name of the state.
func (s UploadState) String() string {
	if s == UploadDone {
		return "done"
	}
	return "in-progress"
}

// UploadResult is the outcome of one session operation.
type UploadResult struct {
	// SessionID is the provider-assigned session identifier or URL. It is
	// the only durable artifact of an upload; callers persist it to resume
	// after a process restart.
	SessionID string

	// LastCommittedByte is the number of bytes the backend has durably
	// accepted, i.e. the next expected byte offset.
	LastCommittedByte uint64

	// Metadata is the finalized object. Set only when State is UploadDone.
	Metadata *ObjectMetadata

	// State reports whether the upload is still accepting chunks.
	State UploadState

	// Annotations carries transport diagnostics for error reporting.
	Annotations string
}

// ResumableUploadSession is one server-tracked resumable upload.
//
// All but the final chunk must be sized in multiples of the session's chunk
// quantum, and chunks must be issued in byte-offset order. Sessions are not
// safe for concurrent use: exactly one writer owns a session at a time.
//
// Once Done reports true the transport resource is released and further
// chunk operations are no-ops returning the cached last response.
type ResumableUploadSession interface {
	// UploadChunk sends a quantum-aligned byte range.
	UploadChunk(buffers BufferSequence) (UploadResult, error)

	// UploadFinalChunk sends the remaining bytes and finalizes the object.
	// uploadSize is the total object size when known, else zero.
	UploadFinalChunk(buffers BufferSequence, uploadSize uint64) (UploadResult, error)

	// ResetSession re-queries the backend for the true next expected byte,
	// re-synchronizing after an ambiguous failure where the client cannot
	// know whether the previous chunk committed.
	ResetSession() (UploadResult, error)

	// NextExpectedByte returns the backend's committed byte count.
	NextExpectedByte() uint64

	// SessionID returns the provider-assigned session identifier.
	SessionID() string

	// ChunkSizeQuantum returns the backend's chunk alignment granularity in
	// bytes.
	ChunkSizeQuantum() uint64

	// Done reports whether the upload reached its terminal state.
	Done() bool

	// LastResponse returns the result of the most recent operation.
	LastResponse() UploadResult
}

// errorSession is the sentinel installed once retries are exhausted or a
// protocol violation poisons a session. Every chunk operation returns the
// fixed error, while the identity accessors keep working so dependent code
// can still report the session id and committed byte count without nil
// checks.
type errorSession struct {
	lastResult UploadResult
	err        error
}

// NewErrorSession creates an always-failing session that reports the given
// last result and fails every operation with err.
func NewErrorSession(lastResult UploadResult, err error) ResumableUploadSession {
	return &errorSession{lastResult: lastResult, err: err}
}

func (s *errorSession) UploadChunk(BufferSequence) (UploadResult, error) {
	return UploadResult{}, s.err
}

func (s *errorSession) UploadFinalChunk(BufferSequence, uint64) (UploadResult, error) {
	return UploadResult{}, s.err
}

func (s *errorSession) ResetSession() (UploadResult, error) {
	return UploadResult{}, s.err
}

func (s *errorSession) NextExpectedByte() uint64 {
	return s.lastResult.LastCommittedByte
}

func (s *errorSession) SessionID() string {
	return s.lastResult.SessionID
}

func (s *errorSession) ChunkSizeQuantum() uint64 {
	return 0
}

func (s *errorSession) Done() bool {
	return true
}

func (s *errorSession) LastResponse() UploadResult {
	return s.lastResult
}
