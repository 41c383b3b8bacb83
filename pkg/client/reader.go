package client

import (
	"io"

	"github.com/cirrus-project/cirrus/pkg/transfer"
)

// Reader streams one object (or a byte range of it) out of the store. It
// implements io.ReadCloser; transient mid-stream failures are recovered
// below by reopening the object at the byte offset reached so far.
type Reader struct {
	source   *transfer.RetryingReadSource
	progress ProgressReporter
	metrics  *Metrics
	done     bool
}

func newReader(source *transfer.RetryingReadSource, progress ProgressReporter, metrics *Metrics) *Reader {
	return &Reader{
		source:   source,
		progress: progress,
		metrics:  metrics,
	}
}

// Read fills p with the next bytes of the stream, returning io.EOF once the
// requested range is exhausted.
func (r *Reader) Read(p []byte) (int, error) {
	if !r.source.IsOpen() {
		if !r.done {
			r.done = true
			if r.progress != nil {
				r.progress.Done()
			}
		}
		return 0, io.EOF
	}

	res, err := r.source.Read(p)
	if err != nil {
		if r.progress != nil {
			r.progress.Error(err)
		}
		return 0, err
	}

	r.metrics.addDownloaded(res.BytesReceived)
	if r.progress != nil {
		r.progress.Update(int64(res.BytesReceived), 0)
	}
	return res.BytesReceived, nil
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	return r.source.Close()
}

// IsOpen reports whether more bytes may be read.
func (r *Reader) IsOpen() bool {
	return r.source.IsOpen()
}

// Status returns the HTTP-level status code of the most recent successful
// read, zero before the first read.
func (r *Reader) Status() int {
	return r.source.LastResponse().StatusCode
}

// Headers returns the transport headers of the most recent successful read.
func (r *Reader) Headers() map[string][]string {
	return r.source.LastResponse().Headers
}
