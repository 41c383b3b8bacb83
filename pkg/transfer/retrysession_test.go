package transfer

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRetrySession(session ResumableUploadSession, budget int) *RetryingUploadSession {
	rs := NewRetryingUploadSession(
		session,
		NewLimitedErrorCountRetryPolicy(budget),
		NewExponentialBackoffPolicy(time.Microsecond, time.Millisecond, 2.0),
		nil,
	)
	rs.setSleeper(func(time.Duration) {})
	return rs
}

func TestRetrySessionRecoversAfterTransientFailures(t *testing.T) {
	session := newFakeSession("sess", 100)
	session.chunkErrs = []error{transientErr("net"), transientErr("net"), nil}

	rs := newTestRetrySession(session, 3)

	result, err := rs.UploadChunk(NewBufferSequence(bytes.Repeat([]byte{1}, 100)))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), result.LastCommittedByte)

	// One reset per transient failure, to reconcile the committed offset.
	assert.Equal(t, 2, session.resetCalls)
}

func TestRetrySessionExhaustsBudget(t *testing.T) {
	session := newFakeSession("sess", 100)
	session.chunkErrs = []error{transientErr("net"), transientErr("net")}

	rs := newTestRetrySession(session, 1)

	_, err := rs.UploadChunk(NewBufferSequence(bytes.Repeat([]byte{1}, 100)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry policy exhausted")
}

func TestRetrySessionPermanentFailureIsImmediate(t *testing.T) {
	session := newFakeSession("sess", 100)
	session.chunkErrs = []error{permanentErr("no such upload")}

	rs := newTestRetrySession(session, 5)

	_, err := rs.UploadChunk(NewBufferSequence(bytes.Repeat([]byte{1}, 100)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permanent error")
	assert.Zero(t, session.resetCalls)
}

func TestRetrySessionSharesBudgetWithResets(t *testing.T) {
	// Budget of 1: the chunk failure consumes it, so the reset failure must
	// terminate the whole call instead of looping.
	session := newFakeSession("sess", 100)
	session.chunkErrs = []error{transientErr("net")}
	session.resetErrs = []error{transientErr("net")}

	rs := newTestRetrySession(session, 1)

	_, err := rs.UploadChunk(NewBufferSequence(bytes.Repeat([]byte{1}, 100)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry policy exhausted")

	// With one more unit of budget the same sequence succeeds.
	session = newFakeSession("sess", 100)
	session.chunkErrs = []error{transientErr("net")}
	session.resetErrs = []error{transientErr("net"), nil}

	rs = newTestRetrySession(session, 2)
	_, err = rs.UploadChunk(NewBufferSequence(bytes.Repeat([]byte{1}, 100)))
	require.NoError(t, err)
}

func TestRetrySessionShortWriteDoesNotConsumeBudget(t *testing.T) {
	session := newFakeSession("sess", 100)
	session.commitOverrides = []int64{40, -1}

	// Zero budget: any consumed retry would fail the call.
	rs := newTestRetrySession(session, 0)

	result, err := rs.UploadChunk(NewBufferSequence(bytes.Repeat([]byte{1}, 100)))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), result.LastCommittedByte)
	assert.Zero(t, session.resetCalls, "short writes re-attempt without resetting")

	// The second attempt resent exactly the uncommitted 60 bytes.
	assert.Equal(t, []uint64{100, 60}, session.chunkSizes)
}

func TestRetrySessionDetectsBackwardCommit(t *testing.T) {
	session := newFakeSession("sess", 100)
	session.next = 10
	session.chunkErrs = []error{transientErr("net")}
	session.resetHook = func(s *fakeSession) { s.next = 5 }

	rs := newTestRetrySession(session, 3)

	_, err := rs.UploadChunk(NewBufferSequence(bytes.Repeat([]byte{1}, 100)))
	require.Error(t, err)
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Contains(t, err.Error(), "moved backwards")
}

func TestRetrySessionDetectsOverCommit(t *testing.T) {
	session := newFakeSession("sess", 100)
	session.commitOverrides = []int64{200}

	rs := newTestRetrySession(session, 3)

	_, err := rs.UploadChunk(NewBufferSequence(bytes.Repeat([]byte{1}, 100)))
	require.Error(t, err)
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestRetrySessionFinalChunkFinalizes(t *testing.T) {
	session := newFakeSession("sess", 100)
	session.chunkErrs = []error{transientErr("net"), nil}

	rs := newTestRetrySession(session, 2)

	result, err := rs.UploadFinalChunk(NewBufferSequence(bytes.Repeat([]byte{1}, 50)), 50)
	require.NoError(t, err)
	assert.Equal(t, UploadDone, result.State)
	require.NotNil(t, result.Metadata)
	assert.True(t, rs.Done())
}

func TestRetrySessionExhaustedBeforeFirstAttempt(t *testing.T) {
	session := newFakeSession("sess", 100)
	rs := NewRetryingUploadSession(
		session,
		NewLimitedTimeRetryPolicy(-time.Second),
		DefaultBackoffPolicy(),
		nil,
	)
	rs.setSleeper(func(time.Duration) {})

	_, err := rs.UploadChunk(NewBufferSequence([]byte{1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before first attempt")
	assert.Empty(t, session.chunkSizes)
}

func TestRetrySessionAccessorsDelegate(t *testing.T) {
	session := newFakeSession("sess-42", 512)
	session.next = 1024

	rs := newTestRetrySession(session, 1)
	assert.Equal(t, "sess-42", rs.SessionID())
	assert.Equal(t, uint64(512), rs.ChunkSizeQuantum())
	assert.Equal(t, uint64(1024), rs.NextExpectedByte())
	assert.False(t, rs.Done())
}
