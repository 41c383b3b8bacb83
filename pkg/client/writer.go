package client

import (
	"github.com/cirrus-project/cirrus/pkg/transfer"
)

// Writer streams one object into a resumable upload session. It implements
// io.WriteCloser; bytes flow through a chunk-aligned buffer and commit in
// quantum-sized chunks, with retries handled below.
//
// A Writer is owned by a single goroutine.
type Writer struct {
	buf          *transfer.ChunkedWriteBuffer
	autoFinalize transfer.AutoFinalize
	progress     ProgressReporter
	metrics      *Metrics
	total        int64
	closed       bool
}

// Write buffers p for upload. Short writes against the backend are retried
// internally; a returned error means the upload is broken and the writer is
// no longer usable.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	if n > 0 {
		w.metrics.addUploaded(n)
		if w.progress != nil {
			w.progress.Update(int64(n), w.total)
		}
	}
	if err != nil && w.progress != nil {
		w.progress.Error(err)
	}
	return n, err
}

// Finalize uploads the buffered remainder as the final chunk and completes
// the object. The returned result carries the object metadata.
func (w *Writer) Finalize() (transfer.UploadResult, error) {
	result, err := w.buf.Finalize()
	if w.closed {
		return result, err
	}
	w.closed = true
	if err != nil {
		if w.progress != nil {
			w.progress.Error(err)
		}
		return result, err
	}
	w.metrics.uploadFinalized()
	if w.progress != nil {
		w.progress.Done()
	}
	return result, nil
}

// Suspend stops writing without finalizing. The server-side session stays
// open; persist SessionID and reattach with Client.ResumeWriter. Buffered
// bytes below one chunk quantum are dropped, so the resumed upload restarts
// from NextExpectedByte.
func (w *Writer) Suspend() {
	if w.closed {
		return
	}
	w.closed = true
	w.buf.Suspend()
	w.metrics.uploadSuspended()
}

// Close disposes the writer according to its auto-finalize policy: finalize
// the upload, or suspend it for later resumption.
func (w *Writer) Close() error {
	if w.closed {
		_, err := w.buf.LastStatus()
		return err
	}
	if w.autoFinalize == transfer.AutoFinalizeDisabled {
		w.Suspend()
		return nil
	}
	_, err := w.Finalize()
	return err
}

// IsOpen reports whether the writer still accepts bytes.
func (w *Writer) IsOpen() bool {
	return w.buf.IsOpen()
}

// SessionID returns the resumable session identifier, valid even after a
// failure.
func (w *Writer) SessionID() string {
	return w.buf.SessionID()
}

// NextExpectedByte returns the backend's committed byte count.
func (w *Writer) NextExpectedByte() uint64 {
	return w.buf.NextExpectedByte()
}

// LastStatus returns the result and error of the most recent session
// operation.
func (w *Writer) LastStatus() (transfer.UploadResult, error) {
	return w.buf.LastStatus()
}
