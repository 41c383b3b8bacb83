package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReadSource(child ReadSource, req ReadFileRequest, opener readSourceOpener, budget int) *RetryingReadSource {
	r := NewRetryingReadSource(
		child,
		req,
		opener,
		NewLimitedErrorCountRetryPolicy(budget),
		NewExponentialBackoffPolicy(time.Microsecond, time.Millisecond, 2.0),
		nil,
	)
	r.setSleeper(func(time.Duration) {})
	return r
}

func TestReadSourceResumesFromStartOffset(t *testing.T) {
	first := &scriptedReadSource{steps: []readStep{
		{data: make([]byte, 10)},
		{err: transientErr("reset by peer")},
	}}
	second := &scriptedReadSource{steps: []readStep{
		{data: make([]byte, 5)},
	}}
	opener := &scriptedOpener{sources: []ReadSource{second}}

	r := newTestReadSource(first, ReadFileRequest{Path: "/doc.txt"}, opener, 3)

	buf := make([]byte, 64)
	res, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 10, res.BytesReceived)

	res, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, res.BytesReceived)

	// The recovery open resumed exactly after the bytes already delivered.
	require.Len(t, opener.requests, 1)
	assert.Equal(t, uint64(10), opener.requests[0].Offset)
	assert.True(t, first.closed, "the failed source is closed before reopening")
}

func TestReadSourceResumesBoundedRange(t *testing.T) {
	first := &scriptedReadSource{steps: []readStep{
		{data: make([]byte, 40)},
		{err: transientErr("reset by peer")},
	}}
	second := &scriptedReadSource{steps: []readStep{
		{data: make([]byte, 60)},
	}}
	opener := &scriptedOpener{sources: []ReadSource{second}}

	r := newTestReadSource(first, ReadFileRequest{Path: "/doc.txt", Offset: 5, Length: 100}, opener, 3)

	buf := make([]byte, 128)
	_, err := r.Read(buf)
	require.NoError(t, err)
	_, err = r.Read(buf)
	require.NoError(t, err)

	// Offset advances by bytes received; length shrinks to cover the rest of
	// the originally requested range.
	require.Len(t, opener.requests, 1)
	assert.Equal(t, uint64(45), opener.requests[0].Offset)
	assert.Equal(t, uint64(60), opener.requests[0].Length)
}

func TestReadSourceResumesTrailingRange(t *testing.T) {
	first := &scriptedReadSource{steps: []readStep{
		{data: make([]byte, 30)},
		{err: transientErr("reset by peer")},
	}}
	second := &scriptedReadSource{steps: []readStep{
		{data: make([]byte, 70)},
	}}
	opener := &scriptedOpener{sources: []ReadSource{second}}

	r := newTestReadSource(first, ReadFileRequest{Path: "/doc.txt", Last: 100}, opener, 3)

	buf := make([]byte, 128)
	_, err := r.Read(buf)
	require.NoError(t, err)
	_, err = r.Read(buf)
	require.NoError(t, err)

	// A last-N request resumes by asking for the trailing bytes not yet
	// delivered, not by computing an absolute offset.
	require.Len(t, opener.requests, 1)
	assert.Equal(t, uint64(70), opener.requests[0].Last)
}

func TestReadSourcePermanentFailureDoesNotReopen(t *testing.T) {
	child := &scriptedReadSource{steps: []readStep{
		{err: permanentErr("gone")},
	}}
	opener := &scriptedOpener{}

	r := newTestReadSource(child, ReadFileRequest{Path: "/doc.txt"}, opener, 5)

	_, err := r.Read(make([]byte, 8))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permanent error")
	assert.Empty(t, opener.requests)
}

func TestReadSourceOpenerFailureIsFinal(t *testing.T) {
	child := &scriptedReadSource{steps: []readStep{
		{err: transientErr("reset by peer")},
	}}
	cause := permanentErr("object deleted mid-read")
	opener := &scriptedOpener{errs: []error{cause}}

	r := newTestReadSource(child, ReadFileRequest{Path: "/doc.txt"}, opener, 5)

	_, err := r.Read(make([]byte, 8))
	assert.ErrorIs(t, err, cause)
}

func TestReadSourceExhaustsBudget(t *testing.T) {
	first := &scriptedReadSource{steps: []readStep{
		{err: transientErr("reset by peer")},
	}}
	second := &scriptedReadSource{steps: []readStep{
		{err: transientErr("reset by peer")},
	}}
	opener := &scriptedOpener{sources: []ReadSource{second}}

	r := newTestReadSource(first, ReadFileRequest{Path: "/doc.txt"}, opener, 1)

	_, err := r.Read(make([]byte, 8))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry policy exhausted")
	require.Len(t, opener.requests, 1)
}

func TestReadSourceTracksLastResponse(t *testing.T) {
	child := &scriptedReadSource{steps: []readStep{
		{data: make([]byte, 4)},
	}}
	r := newTestReadSource(child, ReadFileRequest{Path: "/doc.txt"}, &scriptedOpener{}, 1)

	res, err := r.Read(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 206, res.Response.StatusCode)
	assert.Equal(t, res.Response, r.LastResponse())
}
