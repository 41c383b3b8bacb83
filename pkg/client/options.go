package client

import "github.com/cirrus-project/cirrus/pkg/transfer"

// UploadOption configures upload operations
type UploadOption func(*UploadOptions)

// DownloadOption configures download operations
type DownloadOption func(*DownloadOptions)

// ListOption configures list operations
type ListOption func(*ListOptions)

// UploadOptions contains configuration for upload operations
type UploadOptions struct {
	ContentType   string
	Metadata      map[string]string
	Progress      ProgressReporter
	TotalSize     uint64                // Declared object size, if known up front
	MaxBufferSize uint64                // Write buffer size; rounded up to the chunk quantum
	AutoFinalize  transfer.AutoFinalize // What Close does to an in-flight upload
}

// DownloadOptions contains configuration for download operations
type DownloadOptions struct {
	Range    *Range // For partial downloads
	Last     uint64 // Trailing-bytes request; overrides Range
	Progress ProgressReporter
}

// ListOptions contains configuration for list operations
type ListOptions struct {
	PageSize int
}

// Range specifies a byte range for partial downloads. Length zero reads to
// the end of the object.
type Range struct {
	Offset uint64
	Length uint64
}

// DefaultUploadOptions returns default upload options
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{
		ContentType:  "application/octet-stream",
		Metadata:     make(map[string]string),
		AutoFinalize: transfer.AutoFinalizeEnabled,
	}
}

// DefaultDownloadOptions returns default download options
func DefaultDownloadOptions() DownloadOptions {
	return DownloadOptions{}
}

// DefaultListOptions returns default list options
func DefaultListOptions() ListOptions {
	return ListOptions{
		PageSize: 100,
	}
}

// Upload Options

// WithContentType sets the content type for upload
func WithContentType(contentType string) UploadOption {
	return func(o *UploadOptions) {
		o.ContentType = contentType
	}
}

// WithMetadata sets custom metadata for upload
func WithMetadata(metadata map[string]string) UploadOption {
	return func(o *UploadOptions) {
		o.Metadata = metadata
	}
}

// WithUploadProgress sets the progress reporter for upload
func WithUploadProgress(progress ProgressReporter) UploadOption {
	return func(o *UploadOptions) {
		o.Progress = progress
	}
}

// WithTotalSize declares the object size up front
func WithTotalSize(size uint64) UploadOption {
	return func(o *UploadOptions) {
		o.TotalSize = size
	}
}

// WithMaxBufferSize sets the write buffer size for chunked uploads
func WithMaxBufferSize(size uint64) UploadOption {
	return func(o *UploadOptions) {
		o.MaxBufferSize = size
	}
}

// WithAutoFinalize controls whether Close finalizes the upload or leaves the
// session open for later resumption
func WithAutoFinalize(mode transfer.AutoFinalize) UploadOption {
	return func(o *UploadOptions) {
		o.AutoFinalize = mode
	}
}

// Download Options

// WithRange sets the byte range for partial download
func WithRange(offset, length uint64) DownloadOption {
	return func(o *DownloadOptions) {
		o.Range = &Range{Offset: offset, Length: length}
	}
}

// WithLast requests only the trailing n bytes of the object
func WithLast(n uint64) DownloadOption {
	return func(o *DownloadOptions) {
		o.Last = n
	}
}

// WithDownloadProgress sets the progress reporter for download
func WithDownloadProgress(progress ProgressReporter) DownloadOption {
	return func(o *DownloadOptions) {
		o.Progress = progress
	}
}

// List Options

// WithPageSize sets the listing page size
func WithPageSize(size int) ListOption {
	return func(o *ListOptions) {
		o.PageSize = size
	}
}

// BuildUploadOptions applies upload options and returns the configuration
func BuildUploadOptions(opts ...UploadOption) UploadOptions {
	options := DefaultUploadOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// BuildDownloadOptions applies download options and returns the configuration
func BuildDownloadOptions(opts ...DownloadOption) DownloadOptions {
	options := DefaultDownloadOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// BuildListOptions applies list options and returns the configuration
func BuildListOptions(opts ...ListOption) ListOptions {
	options := DefaultListOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
