package transfer

import (
	"context"
	"fmt"
)

// transientErr builds an error the default classifier retries.
func transientErr(msg string) error {
	return NewError(CodeUnavailable, "fake", fmt.Errorf("%s", msg))
}

// permanentErr builds an error the default classifier rejects.
func permanentErr(msg string) error {
	return NewError(CodeNotFound, "fake", fmt.Errorf("%s", msg))
}

// fakeSession is a scriptable in-memory resumable upload session. By
// default every chunk operation commits all bytes it receives; queues allow
// tests to inject failures, short writes and arbitrary committed-byte
// reports.
type fakeSession struct {
	id      string
	quantum uint64
	next    uint64
	done    bool
	last    UploadResult

	chunkSizes []uint64
	finalSizes []uint64
	resetCalls int

	// chunkErrs is consumed one entry per chunk operation; a non-nil entry
	// fails the call before any bytes are committed.
	chunkErrs []error

	// commitOverrides limits the bytes committed by successful chunk
	// operations; -1 commits everything.
	commitOverrides []int64

	// nextOverrides, when non-empty, replaces the committed-byte count
	// reported after a successful chunk operation, for protocol-violation
	// scenarios.
	nextOverrides []uint64

	// resetErrs is consumed one entry per ResetSession call.
	resetErrs []error

	// resetHook runs on every successful reset, before the result is built.
	resetHook func(*fakeSession)
}

func newFakeSession(id string, quantum uint64) *fakeSession {
	s := &fakeSession{id: id, quantum: quantum}
	s.last = UploadResult{SessionID: id, State: UploadInProgress}
	return s
}

func (s *fakeSession) UploadChunk(b BufferSequence) (UploadResult, error) {
	return s.upload(b, false, 0)
}

func (s *fakeSession) UploadFinalChunk(b BufferSequence, uploadSize uint64) (UploadResult, error) {
	return s.upload(b, true, uploadSize)
}

func (s *fakeSession) upload(b BufferSequence, final bool, uploadSize uint64) (UploadResult, error) {
	if s.done {
		return s.last, nil
	}

	if len(s.chunkErrs) > 0 {
		err := s.chunkErrs[0]
		s.chunkErrs = s.chunkErrs[1:]
		if err != nil {
			return UploadResult{}, err
		}
	}

	n := b.TotalBytes()
	if final {
		s.finalSizes = append(s.finalSizes, n)
	} else {
		s.chunkSizes = append(s.chunkSizes, n)
	}

	commit := n
	if len(s.commitOverrides) > 0 {
		c := s.commitOverrides[0]
		s.commitOverrides = s.commitOverrides[1:]
		if c >= 0 {
			commit = uint64(c)
		}
	}
	s.next += commit

	if len(s.nextOverrides) > 0 {
		s.next = s.nextOverrides[0]
		s.nextOverrides = s.nextOverrides[1:]
	}

	state := UploadInProgress
	var meta *ObjectMetadata
	if final && commit == n {
		s.done = true
		state = UploadDone
		meta = &ObjectMetadata{Path: "/fake", Size: s.next}
	}
	s.last = UploadResult{
		SessionID:         s.id,
		LastCommittedByte: s.next,
		State:             state,
		Metadata:          meta,
	}
	return s.last, nil
}

func (s *fakeSession) ResetSession() (UploadResult, error) {
	s.resetCalls++
	if len(s.resetErrs) > 0 {
		err := s.resetErrs[0]
		s.resetErrs = s.resetErrs[1:]
		if err != nil {
			return UploadResult{}, err
		}
	}
	if s.resetHook != nil {
		s.resetHook(s)
	}
	s.last = UploadResult{SessionID: s.id, LastCommittedByte: s.next, State: s.last.State}
	return s.last, nil
}

func (s *fakeSession) NextExpectedByte() uint64  { return s.next }
func (s *fakeSession) SessionID() string        { return s.id }
func (s *fakeSession) ChunkSizeQuantum() uint64 { return s.quantum }
func (s *fakeSession) Done() bool               { return s.done }
func (s *fakeSession) LastResponse() UploadResult {
	return s.last
}

// readStep is one scripted outcome of a ReadSource.Read call.
type readStep struct {
	data []byte
	err  error
}

// scriptedReadSource replays a fixed sequence of read outcomes.
type scriptedReadSource struct {
	steps  []readStep
	closed bool
}

func (r *scriptedReadSource) IsOpen() bool { return !r.closed && len(r.steps) > 0 }

func (r *scriptedReadSource) Read(p []byte) (ReadSourceResult, error) {
	if len(r.steps) == 0 {
		return ReadSourceResult{}, permanentErr("read past end of script")
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	if step.err != nil {
		return ReadSourceResult{}, step.err
	}
	n := copy(p, step.data)
	return ReadSourceResult{
		BytesReceived: n,
		Response:      ReadResponseInfo{StatusCode: 206},
	}, nil
}

func (r *scriptedReadSource) Close() error {
	r.closed = true
	return nil
}

// scriptedOpener hands out read sources from a queue and records the
// requests used to open them.
type scriptedOpener struct {
	requests []ReadFileRequest
	sources  []ReadSource
	errs     []error
}

func (o *scriptedOpener) openRawReadSource(req ReadFileRequest) (ReadSource, error) {
	o.requests = append(o.requests, req)
	if len(o.errs) > 0 {
		err := o.errs[0]
		o.errs = o.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(o.sources) == 0 {
		return nil, permanentErr("no more scripted sources")
	}
	src := o.sources[0]
	o.sources = o.sources[1:]
	return src, nil
}

// fakeRawClient is a minimal RawClient with per-operation scripted errors.
// Operations succeed with canned data once their error queue drains.
type fakeRawClient struct {
	calls map[string]int
	errs  map[string][]error

	metadata *ObjectMetadata
	pages    []ListFolderResponse
	pageIdx  int

	session    *fakeSession
	readSource ReadSource
}

func newFakeRawClient() *fakeRawClient {
	return &fakeRawClient{
		calls:    make(map[string]int),
		errs:     make(map[string][]error),
		metadata: &ObjectMetadata{Path: "/doc.txt", Size: 42},
	}
}

func (c *fakeRawClient) failNext(op string, errs ...error) {
	c.errs[op] = append(c.errs[op], errs...)
}

func (c *fakeRawClient) step(op string) error {
	c.calls[op]++
	queue := c.errs[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	c.errs[op] = queue[1:]
	return err
}

func (c *fakeRawClient) GetMetadata(_ context.Context, _ GetMetadataRequest) (*ObjectMetadata, error) {
	if err := c.step("GetMetadata"); err != nil {
		return nil, err
	}
	return c.metadata, nil
}

func (c *fakeRawClient) ListFolder(_ context.Context, req ListFolderRequest) (*ListFolderResponse, error) {
	if err := c.step("ListFolder"); err != nil {
		return nil, err
	}
	if c.pageIdx >= len(c.pages) {
		return &ListFolderResponse{}, nil
	}
	page := c.pages[c.pageIdx]
	c.pageIdx++
	return &page, nil
}

func (c *fakeRawClient) CreateFolder(_ context.Context, req CreateFolderRequest) (*ObjectMetadata, error) {
	if err := c.step("CreateFolder"); err != nil {
		return nil, err
	}
	return &ObjectMetadata{Path: req.Path, IsFolder: true}, nil
}

func (c *fakeRawClient) Rename(_ context.Context, req RenameRequest) (*ObjectMetadata, error) {
	if err := c.step("Rename"); err != nil {
		return nil, err
	}
	return &ObjectMetadata{Path: req.NewPath}, nil
}

func (c *fakeRawClient) Delete(_ context.Context, _ DeleteRequest) error {
	return c.step("Delete")
}

func (c *fakeRawClient) Copy(_ context.Context, req CopyRequest) (*ObjectMetadata, error) {
	if err := c.step("Copy"); err != nil {
		return nil, err
	}
	return &ObjectMetadata{Path: req.TargetPath}, nil
}

func (c *fakeRawClient) GetQuota(_ context.Context) (*QuotaInfo, error) {
	if err := c.step("GetQuota"); err != nil {
		return nil, err
	}
	return &QuotaInfo{TotalBytes: 100, UsedBytes: 1}, nil
}

func (c *fakeRawClient) GetUserInfo(_ context.Context) (*UserInfo, error) {
	if err := c.step("GetUserInfo"); err != nil {
		return nil, err
	}
	return &UserInfo{ID: "u1"}, nil
}

func (c *fakeRawClient) OpenReadSource(_ context.Context, _ ReadFileRequest) (ReadSource, error) {
	if err := c.step("OpenReadSource"); err != nil {
		return nil, err
	}
	return c.readSource, nil
}

func (c *fakeRawClient) CreateUploadSession(_ context.Context, _ ResumableUploadRequest) (ResumableUploadSession, error) {
	if err := c.step("CreateUploadSession"); err != nil {
		return nil, err
	}
	return c.session, nil
}

func (c *fakeRawClient) RestoreUploadSession(_ context.Context, _ string) (ResumableUploadSession, error) {
	if err := c.step("RestoreUploadSession"); err != nil {
		return nil, err
	}
	return c.session, nil
}

func (c *fakeRawClient) DeleteUploadSession(_ context.Context, _ string) error {
	return c.step("DeleteUploadSession")
}
