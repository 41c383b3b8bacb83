package transfer

import (
	"context"
	"time"

	"github.com/cirrus-project/cirrus/pkg/logging"
)

// RawClient is the RPC-shaped contract the transport collaborator provides:
// one typed call per remote operation. Implementations translate provider
// payloads and failure modes; everything above this contract deals only in
// the types of this package.
//
// Decorators such as RetryingClient implement the same contract, so a
// transport can be composed by wrapping.
type RawClient interface {
	GetMetadata(ctx context.Context, req GetMetadataRequest) (*ObjectMetadata, error)
	ListFolder(ctx context.Context, req ListFolderRequest) (*ListFolderResponse, error)
	CreateFolder(ctx context.Context, req CreateFolderRequest) (*ObjectMetadata, error)
	Rename(ctx context.Context, req RenameRequest) (*ObjectMetadata, error)
	Delete(ctx context.Context, req DeleteRequest) error
	Copy(ctx context.Context, req CopyRequest) (*ObjectMetadata, error)
	GetQuota(ctx context.Context) (*QuotaInfo, error)
	GetUserInfo(ctx context.Context) (*UserInfo, error)

	// OpenReadSource opens a byte-range read stream over one object.
	OpenReadSource(ctx context.Context, req ReadFileRequest) (ReadSource, error)

	// CreateUploadSession starts a fresh resumable upload session.
	CreateUploadSession(ctx context.Context, req ResumableUploadRequest) (ResumableUploadSession, error)

	// RestoreUploadSession reattaches to a previously started session.
	RestoreUploadSession(ctx context.Context, sessionID string) (ResumableUploadSession, error)

	// DeleteUploadSession abandons a session without finalizing it.
	DeleteUploadSession(ctx context.Context, sessionID string) error
}

// RetryingClient applies retry and backoff uniformly to every RawClient
// operation. It holds policy prototypes and clones them once per logical
// operation, so concurrent calls never share policy state.
//
// Sessions and read sources it hands out are wrapped in their retrying
// decorators with a back-reference to this client, so later recovery calls
// route through the same machinery.
type RetryingClient struct {
	raw     RawClient
	retry   RetryPolicy
	backoff BackoffPolicy
	notify  RetryNotify
	logger  logging.Interface
	sleep   func(ctx context.Context, d time.Duration) error
}

// RetryingClientOption configures a RetryingClient.
type RetryingClientOption func(*RetryingClient)

// WithRetryPolicy sets the retry policy prototype.
func WithRetryPolicy(policy RetryPolicy) RetryingClientOption {
	return func(c *RetryingClient) {
		c.retry = policy
	}
}

// WithBackoffPolicy sets the backoff policy prototype.
func WithBackoffPolicy(policy BackoffPolicy) RetryingClientOption {
	return func(c *RetryingClient) {
		c.backoff = policy
	}
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(logger logging.Interface) RetryingClientOption {
	return func(c *RetryingClient) {
		c.logger = logger
	}
}

// WithRetryNotify installs a hook invoked before every backoff sleep, for
// metrics.
func WithRetryNotify(notify RetryNotify) RetryingClientOption {
	return func(c *RetryingClient) {
		c.notify = notify
	}
}

// NewRetryingClient decorates raw with retry and backoff. Without options
// it uses DefaultRetryPolicy and DefaultBackoffPolicy.
func NewRetryingClient(raw RawClient, opts ...RetryingClientOption) *RetryingClient {
	c := &RetryingClient{
		raw:     raw,
		retry:   DefaultRetryPolicy(),
		backoff: DefaultBackoffPolicy(),
		logger:  logging.NewNopLogger(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sleepContext blocks for d or until the context ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// invokeWithRetry is the uniform retry loop over one remote call.
func invokeWithRetry[T any](c *RetryingClient, ctx context.Context, op string, call func() (T, error)) (T, error) {
	var zero T

	retry := c.retry.Clone()
	backoff := c.backoff.Clone()
	if retry.IsExhausted() {
		return zero, ErrBeforeFirstAttempt(op)
	}

	var lastErr error
	for !retry.IsExhausted() {
		result, err := call()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retry.OnFailure(err) {
			return zero, RetryError(op, err, retry)
		}

		delay := backoff.OnCompletion()
		if c.notify != nil {
			c.notify(op, err, delay)
		}
		c.logger.WithError(err).WithField("op", op).WithField("delay", delay).
			Debug("transient failure, backing off")
		if serr := c.sleep(ctx, delay); serr != nil {
			return zero, NewError(CodeDeadlineExceeded, op, serr)
		}
	}

	return zero, RetryError(op, lastErr, retry)
}

// GetMetadata fetches object metadata with retries.
func (c *RetryingClient) GetMetadata(ctx context.Context, req GetMetadataRequest) (*ObjectMetadata, error) {
	return invokeWithRetry(c, ctx, "GetMetadata", func() (*ObjectMetadata, error) {
		return c.raw.GetMetadata(ctx, req)
	})
}

// ListFolder fetches one listing page with retries.
func (c *RetryingClient) ListFolder(ctx context.Context, req ListFolderRequest) (*ListFolderResponse, error) {
	return invokeWithRetry(c, ctx, "ListFolder", func() (*ListFolderResponse, error) {
		return c.raw.ListFolder(ctx, req)
	})
}

// CreateFolder creates a folder with retries.
func (c *RetryingClient) CreateFolder(ctx context.Context, req CreateFolderRequest) (*ObjectMetadata, error) {
	return invokeWithRetry(c, ctx, "CreateFolder", func() (*ObjectMetadata, error) {
		return c.raw.CreateFolder(ctx, req)
	})
}

// Rename moves or renames an object with retries.
func (c *RetryingClient) Rename(ctx context.Context, req RenameRequest) (*ObjectMetadata, error) {
	return invokeWithRetry(c, ctx, "Rename", func() (*ObjectMetadata, error) {
		return c.raw.Rename(ctx, req)
	})
}

// Delete removes an object with retries.
func (c *RetryingClient) Delete(ctx context.Context, req DeleteRequest) error {
	_, err := invokeWithRetry(c, ctx, "Delete", func() (struct{}, error) {
		return struct{}{}, c.raw.Delete(ctx, req)
	})
	return err
}

// Copy copies an object server-side with retries.
func (c *RetryingClient) Copy(ctx context.Context, req CopyRequest) (*ObjectMetadata, error) {
	return invokeWithRetry(c, ctx, "Copy", func() (*ObjectMetadata, error) {
		return c.raw.Copy(ctx, req)
	})
}

// GetQuota fetches account quota with retries.
func (c *RetryingClient) GetQuota(ctx context.Context) (*QuotaInfo, error) {
	return invokeWithRetry(c, ctx, "GetQuota", func() (*QuotaInfo, error) {
		return c.raw.GetQuota(ctx)
	})
}

// GetUserInfo fetches account details with retries.
func (c *RetryingClient) GetUserInfo(ctx context.Context) (*UserInfo, error) {
	return invokeWithRetry(c, ctx, "GetUserInfo", func() (*UserInfo, error) {
		return c.raw.GetUserInfo(ctx)
	})
}

// OpenReadSource opens a ranged read with retries and wraps the result in a
// RetryingReadSource whose recovery opens route back through this client.
func (c *RetryingClient) OpenReadSource(ctx context.Context, req ReadFileRequest) (ReadSource, error) {
	child, err := c.openRawReadSourceCtx(ctx, req)
	if err != nil {
		return nil, err
	}
	source := NewRetryingReadSource(child, req, &boundOpener{client: c, ctx: ctx}, c.retry, c.backoff, c.logger)
	source.SetRetryNotify(c.notify)
	return source, nil
}

// openRawReadSourceCtx opens the raw source under the client's retry loop,
// without the retrying-source wrapper.
func (c *RetryingClient) openRawReadSourceCtx(ctx context.Context, req ReadFileRequest) (ReadSource, error) {
	return invokeWithRetry(c, ctx, "OpenReadSource", func() (ReadSource, error) {
		return c.raw.OpenReadSource(ctx, req)
	})
}

// boundOpener adapts the client to the recovery-open contract of
// RetryingReadSource, pinning the context the stream was opened with.
type boundOpener struct {
	client *RetryingClient
	ctx    context.Context
}

func (o *boundOpener) openRawReadSource(req ReadFileRequest) (ReadSource, error) {
	return o.client.openRawReadSourceCtx(o.ctx, req)
}

// CreateUploadSession starts a resumable upload with retries and wraps the
// session in a RetryingUploadSession sharing this client's policies.
func (c *RetryingClient) CreateUploadSession(ctx context.Context, req ResumableUploadRequest) (ResumableUploadSession, error) {
	session, err := invokeWithRetry(c, ctx, "CreateUploadSession", func() (ResumableUploadSession, error) {
		return c.raw.CreateUploadSession(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return c.wrapSession(session), nil
}

// RestoreUploadSession reattaches to an existing session with retries and
// wraps it like CreateUploadSession.
func (c *RetryingClient) RestoreUploadSession(ctx context.Context, sessionID string) (ResumableUploadSession, error) {
	session, err := invokeWithRetry(c, ctx, "RestoreUploadSession", func() (ResumableUploadSession, error) {
		return c.raw.RestoreUploadSession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return c.wrapSession(session), nil
}

// DeleteUploadSession abandons a session with retries.
func (c *RetryingClient) DeleteUploadSession(ctx context.Context, sessionID string) error {
	_, err := invokeWithRetry(c, ctx, "DeleteUploadSession", func() (struct{}, error) {
		return struct{}{}, c.raw.DeleteUploadSession(ctx, sessionID)
	})
	return err
}

func (c *RetryingClient) wrapSession(session ResumableUploadSession) *RetryingUploadSession {
	wrapped := NewRetryingUploadSession(session, c.retry, c.backoff, c.logger)
	wrapped.SetRetryNotify(c.notify)
	return wrapped
}
