// Package client is the user-facing surface of the storage client. It wraps
// the retrying transfer core with typed operations, streaming readers and
// writers over resumable sessions, iterators over paginated listings, file
// helpers, progress reporting and metrics.
package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cirrus-project/cirrus/pkg/logging"
	"github.com/cirrus-project/cirrus/pkg/transfer"
)

// Client is a provider-agnostic cloud storage client. All remote operations
// go through a retrying transport decorator; transient failures are absorbed
// according to the configured policies and surface only once the retry
// budget runs out.
type Client struct {
	transport     *transfer.RetryingClient
	logger        logging.Interface
	metrics       *Metrics
	maxBufferSize uint64

	retryPolicy   transfer.RetryPolicy
	backoffPolicy transfer.BackoffPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger logging.Interface) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryPolicy sets the retry policy prototype applied to every
// operation.
func WithRetryPolicy(policy transfer.RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithBackoffPolicy sets the backoff policy prototype applied between
// retries.
func WithBackoffPolicy(policy transfer.BackoffPolicy) Option {
	return func(c *Client) {
		c.backoffPolicy = policy
	}
}

// WithTransferMetrics wires transfer counters into the client.
func WithTransferMetrics(metrics *Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithDefaultBufferSize sets the write buffer size used by writers that do
// not override it.
func WithDefaultBufferSize(size uint64) Option {
	return func(c *Client) {
		c.maxBufferSize = size
	}
}

// New creates a client over the given transport. Without options it uses the
// default retry and backoff policies and a no-op logger.
func New(raw transfer.RawClient, opts ...Option) *Client {
	c := &Client{
		logger:        logging.NewNopLogger(),
		retryPolicy:   transfer.DefaultRetryPolicy(),
		backoffPolicy: transfer.DefaultBackoffPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport = transfer.NewRetryingClient(raw,
		transfer.WithRetryPolicy(c.retryPolicy),
		transfer.WithBackoffPolicy(c.backoffPolicy),
		transfer.WithLogger(c.logger),
		transfer.WithRetryNotify(c.metrics.retryNotify()),
	)
	return c
}

// GetMetadata returns the metadata of one object or folder.
func (c *Client) GetMetadata(ctx context.Context, path string) (*transfer.ObjectMetadata, error) {
	meta, err := c.transport.GetMetadata(ctx, transfer.GetMetadataRequest{Path: path})
	if err != nil {
		return nil, errors.Wrapf(err, "get metadata of %s", path)
	}
	return meta, nil
}

// List returns an iterator over the direct children of a folder. Pages are
// fetched lazily as the iterator advances; each page fetch carries the
// client's retry policy.
func (c *Client) List(ctx context.Context, path string, opts ...ListOption) *ObjectIterator {
	options := BuildListOptions(opts...)
	seq := transfer.NewPaginatedSequence(func(token string) ([]transfer.ObjectMetadata, string, error) {
		resp, err := c.transport.ListFolder(ctx, transfer.ListFolderRequest{
			Path:      path,
			PageSize:  options.PageSize,
			PageToken: token,
		})
		if err != nil {
			return nil, "", errors.Wrapf(err, "list %s", path)
		}
		return resp.Items, resp.NextPageToken, nil
	})
	return &ObjectIterator{seq: seq}
}

// CreateFolder creates a folder, along with missing parents.
func (c *Client) CreateFolder(ctx context.Context, path string) (*transfer.ObjectMetadata, error) {
	meta, err := c.transport.CreateFolder(ctx, transfer.CreateFolderRequest{Path: path})
	if err != nil {
		return nil, errors.Wrapf(err, "create folder %s", path)
	}
	return meta, nil
}

// Rename moves or renames an object or folder.
func (c *Client) Rename(ctx context.Context, path, newPath string) (*transfer.ObjectMetadata, error) {
	meta, err := c.transport.Rename(ctx, transfer.RenameRequest{Path: path, NewPath: newPath})
	if err != nil {
		return nil, errors.Wrapf(err, "rename %s to %s", path, newPath)
	}
	return meta, nil
}

// Delete removes an object or folder.
func (c *Client) Delete(ctx context.Context, path string) error {
	if err := c.transport.Delete(ctx, transfer.DeleteRequest{Path: path}); err != nil {
		return errors.Wrapf(err, "delete %s", path)
	}
	return nil
}

// Copy duplicates an object server-side.
func (c *Client) Copy(ctx context.Context, sourcePath, targetPath string) (*transfer.ObjectMetadata, error) {
	meta, err := c.transport.Copy(ctx, transfer.CopyRequest{
		SourcePath: sourcePath,
		TargetPath: targetPath,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "copy %s to %s", sourcePath, targetPath)
	}
	return meta, nil
}

// Quota returns the account's storage usage.
func (c *Client) Quota(ctx context.Context) (*transfer.QuotaInfo, error) {
	quota, err := c.transport.GetQuota(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get quota")
	}
	return quota, nil
}

// UserInfo returns the authenticated account's details.
func (c *Client) UserInfo(ctx context.Context) (*transfer.UserInfo, error) {
	user, err := c.transport.GetUserInfo(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get user info")
	}
	return user, nil
}

// NewReader opens a streaming download of one object. Transient mid-stream
// failures reopen the object at the byte reached so far; the caller observes
// one continuous stream.
func (c *Client) NewReader(ctx context.Context, path string, opts ...DownloadOption) (*Reader, error) {
	options := BuildDownloadOptions(opts...)
	req := transfer.ReadFileRequest{Path: path}
	if options.Last > 0 {
		req.Last = options.Last
	} else if options.Range != nil {
		req.Offset = options.Range.Offset
		req.Length = options.Range.Length
	}

	source, err := c.transport.OpenReadSource(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s for reading", path)
	}
	return newReader(source.(*transfer.RetryingReadSource), options.Progress, c.metrics), nil
}

// NewWriter starts a resumable upload of one object and returns a streaming
// writer over it. The upload becomes visible when the writer is finalized.
func (c *Client) NewWriter(ctx context.Context, path string, opts ...UploadOption) (*Writer, error) {
	options := BuildUploadOptions(opts...)
	session, err := c.transport.CreateUploadSession(ctx, transfer.ResumableUploadRequest{
		Path:        path,
		ContentType: options.ContentType,
		Metadata:    options.Metadata,
		TotalSize:   options.TotalSize,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s for writing", path)
	}
	return c.newWriter(session, options), nil
}

// ResumeWriter reattaches to a suspended upload by session id. Writing
// continues from the session's committed byte count.
func (c *Client) ResumeWriter(ctx context.Context, sessionID string, opts ...UploadOption) (*Writer, error) {
	options := BuildUploadOptions(opts...)
	session, err := c.transport.RestoreUploadSession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "resume upload session %s", sessionID)
	}
	return c.newWriter(session, options), nil
}

// AbandonUpload discards a suspended upload session and its staged bytes.
func (c *Client) AbandonUpload(ctx context.Context, sessionID string) error {
	if err := c.transport.DeleteUploadSession(ctx, sessionID); err != nil {
		return errors.Wrapf(err, "abandon upload session %s", sessionID)
	}
	return nil
}

func (c *Client) newWriter(session transfer.ResumableUploadSession, options UploadOptions) *Writer {
	size := options.MaxBufferSize
	if size == 0 {
		size = c.maxBufferSize
	}
	buf := transfer.NewChunkedWriteBuffer(session, size, options.AutoFinalize, c.logger)
	return &Writer{
		buf:          buf,
		autoFinalize: options.AutoFinalize,
		progress:     options.Progress,
		metrics:      c.metrics,
		total:        int64(options.TotalSize),
	}
}
