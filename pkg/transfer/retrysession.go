package transfer

import (
	"time"

	"github.com/cirrus-project/cirrus/pkg/logging"
)

// RetryingUploadSession decorates a ResumableUploadSession with retry,
// backoff and state reconciliation.
//
// One retry-policy clone and one backoff-policy clone are shared across an
// entire logical call: the chunk upload plus every session reset it
// triggers. A run of transient failures spread over uploads and resets
// therefore counts against a single exhaustion budget and cannot loop
// forever.
type RetryingUploadSession struct {
	session ResumableUploadSession
	retry   RetryPolicy
	backoff BackoffPolicy
	sleep   func(time.Duration)
	notify  RetryNotify
	logger  logging.Interface
}

// RetryNotify observes scheduled retries; used for metrics and logging
// hooks. The delay is the backoff applied before the next attempt.
type RetryNotify func(op string, err error, delay time.Duration)

// NewRetryingUploadSession decorates session with the given policy
// prototypes. The prototypes are cloned per logical call.
func NewRetryingUploadSession(session ResumableUploadSession, retry RetryPolicy, backoff BackoffPolicy, logger logging.Interface) *RetryingUploadSession {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RetryingUploadSession{
		session: session,
		retry:   retry,
		backoff: backoff,
		sleep:   time.Sleep,
		logger:  logger,
	}
}

// SetRetryNotify installs a hook invoked before every backoff sleep.
func (s *RetryingUploadSession) SetRetryNotify(notify RetryNotify) {
	s.notify = notify
}

// setSleeper replaces the blocking sleep, for tests.
func (s *RetryingUploadSession) setSleeper(sleep func(time.Duration)) {
	s.sleep = sleep
}

// UploadChunk uploads a quantum-aligned chunk, retrying and re-syncing the
// session as needed.
func (s *RetryingUploadSession) UploadChunk(buffers BufferSequence) (UploadResult, error) {
	return s.uploadLoop("UploadChunk", buffers, func(b BufferSequence) (UploadResult, error) {
		return s.session.UploadChunk(b)
	})
}

// UploadFinalChunk uploads the final chunk and finalizes the object,
// retrying and re-syncing the session as needed.
func (s *RetryingUploadSession) UploadFinalChunk(buffers BufferSequence, uploadSize uint64) (UploadResult, error) {
	return s.uploadLoop("UploadFinalChunk", buffers, func(b BufferSequence) (UploadResult, error) {
		return s.session.UploadFinalChunk(b, uploadSize)
	})
}

// uploadLoop is the shared retry loop for both chunk operations.
func (s *RetryingUploadSession) uploadLoop(op string, buffers BufferSequence, invoke func(BufferSequence) (UploadResult, error)) (UploadResult, error) {
	retry := s.retry.Clone()
	backoff := s.backoff.Clone()

	if retry.IsExhausted() {
		return UploadResult{}, ErrBeforeFirstAttempt(op)
	}

	nextByte := s.session.NextExpectedByte()
	var lastErr error

	for !retry.IsExhausted() {
		current := s.session.NextExpectedByte()
		if current < nextByte {
			// A backend can never un-commit bytes. This is a client or
			// backend bug, not a retryable condition.
			return UploadResult{}, Errorf(CodeInternal, op,
				"session %s: next expected byte moved backwards from %d to %d",
				s.session.SessionID(), nextByte, current)
		}
		if current > nextByte {
			// A previous attempt committed part of the payload. Drop the
			// committed prefix instead of resending it.
			buffers.PopFrontBytes(current - nextByte)
			nextByte = current
		}

		pending := buffers.TotalBytes()
		result, err := invoke(buffers)
		if err == nil {
			if result.State == UploadDone {
				// Some backends finalize as soon as they see the last byte.
				return result, nil
			}
			actual := s.session.NextExpectedByte()
			switch {
			case actual == nextByte+pending:
				return result, nil
			case actual > nextByte+pending:
				return UploadResult{}, Errorf(CodeInternal, op,
					"session %s: backend committed %d bytes past the sent payload",
					s.session.SessionID(), actual-nextByte-pending)
			default:
				// Short write. Protocol-normal partial progress: loop again
				// with the updated offset, consuming neither retry budget
				// nor backoff delay, and without resetting the session.
				s.logger.WithField("sessionId", s.session.SessionID()).
					WithField("committed", actual-nextByte).
					WithField("sent", pending).
					Debug("short write, resending remainder")
				continue
			}
		}

		lastErr = err
		if !retry.OnFailure(err) {
			return UploadResult{}, RetryError(op, err, retry)
		}

		delay := backoff.OnCompletion()
		if s.notify != nil {
			s.notify(op, err, delay)
		}
		s.logger.WithError(err).WithField("sessionId", s.session.SessionID()).
			WithField("delay", delay).Debug("transient upload failure, backing off")
		s.sleep(delay)

		// Reconcile: the failure is ambiguous, the chunk may or may not
		// have committed. Reset against the same shared policies.
		if _, rerr := s.resetWith(retry, backoff); rerr != nil {
			return UploadResult{}, rerr
		}
	}

	if lastErr == nil {
		return UploadResult{}, ErrBeforeFirstAttempt(op)
	}
	return UploadResult{}, RetryError(op, lastErr, retry)
}

// ResetSession re-syncs the session, retrying with freshly cloned policies.
func (s *RetryingUploadSession) ResetSession() (UploadResult, error) {
	return s.resetWith(s.retry.Clone(), s.backoff.Clone())
}

// resetWith re-syncs the session using the supplied (possibly partially
// consumed) policies.
func (s *RetryingUploadSession) resetWith(retry RetryPolicy, backoff BackoffPolicy) (UploadResult, error) {
	for {
		result, err := s.session.ResetSession()
		if err == nil {
			return result, nil
		}
		if !retry.OnFailure(err) {
			return UploadResult{}, RetryError("ResetSession", err, retry)
		}
		delay := backoff.OnCompletion()
		if s.notify != nil {
			s.notify("ResetSession", err, delay)
		}
		s.logger.WithError(err).WithField("sessionId", s.session.SessionID()).
			WithField("delay", delay).Debug("transient reset failure, backing off")
		s.sleep(delay)
	}
}

// NextExpectedByte returns the wrapped session's committed byte count.
func (s *RetryingUploadSession) NextExpectedByte() uint64 {
	return s.session.NextExpectedByte()
}

// SessionID returns the wrapped session's identifier.
func (s *RetryingUploadSession) SessionID() string {
	return s.session.SessionID()
}

// ChunkSizeQuantum returns the wrapped session's chunk alignment.
func (s *RetryingUploadSession) ChunkSizeQuantum() uint64 {
	return s.session.ChunkSizeQuantum()
}

// Done reports whether the wrapped session reached its terminal state.
func (s *RetryingUploadSession) Done() bool {
	return s.session.Done()
}

// LastResponse returns the wrapped session's most recent result.
func (s *RetryingUploadSession) LastResponse() UploadResult {
	return s.session.LastResponse()
}
