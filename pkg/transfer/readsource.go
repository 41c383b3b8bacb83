package transfer

import (
	"time"

	"github.com/cirrus-project/cirrus/pkg/logging"
)

// ReadResponseInfo carries the transport-level details of the response
// backing a read, for callers that inspect status or headers.
type ReadResponseInfo struct {
	StatusCode int
	Headers    map[string][]string
}

// ReadSourceResult is the outcome of one read from a ReadSource.
type ReadSourceResult struct {
	BytesReceived int
	Response      ReadResponseInfo
}

// ReadSource is a ranged byte stream over one remote object, produced by
// the transport collaborator.
type ReadSource interface {
	// IsOpen reports whether more bytes may be read.
	IsOpen() bool

	// Read fills p with the next bytes of the range.
	Read(p []byte) (ReadSourceResult, error)

	// Close releases the underlying transport resources.
	Close() error
}

// OffsetDirection states how committed bytes move the resume offset of an
// interrupted download.
type OffsetDirection int

const (
	// FromStart means received bytes advance a start offset.
	FromStart OffsetDirection = iota

	// FromEnd applies to last-N-bytes requests: received bytes reduce the
	// remaining trailing count instead of advancing a start offset.
	FromEnd
)

// readSourceOpener opens a raw read source for a request, applying its own
// retry machinery. Implemented by RetryingClient so recovery reads route
// through the same policies as the original open.
type readSourceOpener interface {
	openRawReadSource(req ReadFileRequest) (ReadSource, error)
}

// RetryingReadSource decorates a ReadSource for one read-file request,
// recreating the source at the corrected byte offset after a transient
// failure so the caller observes one continuous stream.
type RetryingReadSource struct {
	opener    readSourceOpener
	request   ReadFileRequest
	child     ReadSource
	retry     RetryPolicy
	backoff   BackoffPolicy
	direction OffsetDirection

	// currentOffset is a start offset for FromStart reads and the remaining
	// trailing byte count for FromEnd reads.
	currentOffset uint64

	// endOffset bounds FromStart reads that requested an explicit length;
	// zero means unbounded.
	endOffset uint64

	lastResponse ReadResponseInfo
	sleep        func(time.Duration)
	notify       RetryNotify
	logger       logging.Interface
}

// NewRetryingReadSource decorates child, which was opened for request. The
// policy prototypes are cloned per failed read.
func NewRetryingReadSource(child ReadSource, request ReadFileRequest, opener readSourceOpener, retry RetryPolicy, backoff BackoffPolicy, logger logging.Interface) *RetryingReadSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &RetryingReadSource{
		opener:  opener,
		request: request,
		child:   child,
		retry:   retry,
		backoff: backoff,
		sleep:   time.Sleep,
		logger:  logger,
	}
	if request.ReadsLast() {
		r.direction = FromEnd
		r.currentOffset = request.Last
	} else {
		r.direction = FromStart
		r.currentOffset = request.Offset
		if request.Length > 0 {
			r.endOffset = request.Offset + request.Length
		}
	}
	return r
}

// SetRetryNotify installs a hook invoked before every backoff sleep.
func (r *RetryingReadSource) SetRetryNotify(notify RetryNotify) {
	r.notify = notify
}

// setSleeper replaces the blocking sleep, for tests.
func (r *RetryingReadSource) setSleeper(sleep func(time.Duration)) {
	r.sleep = sleep
}

// IsOpen reports whether the current child source is open.
func (r *RetryingReadSource) IsOpen() bool {
	return r.child.IsOpen()
}

// Close releases the current child source.
func (r *RetryingReadSource) Close() error {
	return r.child.Close()
}

// LastResponse returns the transport details of the most recent successful
// read.
func (r *RetryingReadSource) LastResponse() ReadResponseInfo {
	return r.lastResponse
}

// Read delegates to the current child source. On transient failure it
// discards the child, reopens the object at the byte offset reached so far
// and retries, under freshly cloned retry and backoff policies.
func (r *RetryingReadSource) Read(p []byte) (ReadSourceResult, error) {
	res, err := r.child.Read(p)
	if err == nil {
		r.advance(res)
		return res, nil
	}

	retry := r.retry.Clone()
	backoff := r.backoff.Clone()

	for !retry.IsExhausted() {
		if !retry.OnFailure(err) {
			return ReadSourceResult{}, RetryError("Read", err, retry)
		}

		delay := backoff.OnCompletion()
		if r.notify != nil {
			r.notify("Read", err, delay)
		}
		r.logger.WithError(err).WithField("path", r.request.Path).
			WithField("delay", delay).Debug("transient read failure, backing off")
		r.sleep(delay)

		_ = r.child.Close()

		child, oerr := r.opener.openRawReadSource(r.requestAtCurrentOffset())
		if oerr != nil {
			// The opener applies its own retry loop; its failure is final.
			return ReadSourceResult{}, oerr
		}
		r.child = child

		res, err = r.child.Read(p)
		if err == nil {
			r.advance(res)
			return res, nil
		}
	}

	return ReadSourceResult{}, RetryError("Read", err, retry)
}

// advance accounts the received bytes against the running offset.
func (r *RetryingReadSource) advance(res ReadSourceResult) {
	r.lastResponse = res.Response
	n := uint64(res.BytesReceived)
	if r.direction == FromEnd {
		if n > r.currentOffset {
			n = r.currentOffset
		}
		r.currentOffset -= n
		return
	}
	r.currentOffset += n
}

// requestAtCurrentOffset rewrites the original request's range so a new
// child source resumes exactly where the stream left off.
func (r *RetryingReadSource) requestAtCurrentOffset() ReadFileRequest {
	req := r.request
	if r.direction == FromEnd {
		req.Last = r.currentOffset
		return req
	}
	req.Offset = r.currentOffset
	if r.endOffset > 0 {
		req.Length = r.endOffset - r.currentOffset
	}
	return req
}
