package inmem

import (
	"context"

	"github.com/google/uuid"

	"github.com/cirrus-project/cirrus/pkg/transfer"
)

// CreateUploadSession starts a resumable upload for one object. The object
// becomes visible only when the final chunk lands.
func (s *Store) CreateUploadSession(_ context.Context, req transfer.ResumableUploadRequest) (transfer.ResumableUploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("CreateUploadSession"); err != nil {
		return nil, err
	}
	session := &uploadSession{
		store: s,
		id:    uuid.NewString(),
		path:  normalize(req.Path),
	}
	session.last = transfer.UploadResult{SessionID: session.id, State: transfer.UploadInProgress}
	s.sessions[session.id] = session
	s.logger.WithField("sessionId", session.id).WithField("path", session.path).
		Debug("upload session created")
	return session, nil
}

// RestoreUploadSession reattaches to an open session by id.
func (s *Store) RestoreUploadSession(_ context.Context, sessionID string) (transfer.ResumableUploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("RestoreUploadSession"); err != nil {
		return nil, err
	}
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, transfer.Errorf(transfer.CodeNotFound, "RestoreUploadSession",
			"no open session %s", sessionID)
	}
	return session, nil
}

// DeleteUploadSession abandons an open session, discarding staged bytes.
func (s *Store) DeleteUploadSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("DeleteUploadSession"); err != nil {
		return err
	}
	if _, ok := s.sessions[sessionID]; !ok {
		return transfer.Errorf(transfer.CodeNotFound, "DeleteUploadSession",
			"no open session %s", sessionID)
	}
	delete(s.sessions, sessionID)
	return nil
}

// uploadSession stages chunk-aligned bytes until finalized. All state is
// guarded by the owning store's mutex.
type uploadSession struct {
	store  *Store
	id     string
	path   string
	staged []byte
	done   bool
	last   transfer.UploadResult
}

func (u *uploadSession) UploadChunk(b transfer.BufferSequence) (transfer.UploadResult, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if err := u.store.popFault("UploadChunk"); err != nil {
		return transfer.UploadResult{}, err
	}
	if u.done {
		return u.last, nil
	}

	n := b.TotalBytes()
	if q := u.store.quantum; q > 0 && n%q != 0 {
		return transfer.UploadResult{}, transfer.Errorf(transfer.CodeInvalidArgument,
			"UploadChunk", "chunk of %d bytes not aligned to quantum %d", n, q)
	}

	data := b.Flatten()
	commit := uint64(len(data))
	if len(u.store.shortWrites) > 0 {
		limit := u.store.shortWrites[0]
		u.store.shortWrites = u.store.shortWrites[1:]
		if limit < commit {
			commit = limit
		}
	}
	u.staged = append(u.staged, data[:commit]...)
	u.last = transfer.UploadResult{
		SessionID:         u.id,
		LastCommittedByte: uint64(len(u.staged)),
		State:             transfer.UploadInProgress,
	}
	return u.last, nil
}

func (u *uploadSession) UploadFinalChunk(b transfer.BufferSequence, uploadSize uint64) (transfer.UploadResult, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if err := u.store.popFault("UploadFinalChunk"); err != nil {
		return transfer.UploadResult{}, err
	}
	if u.done {
		return u.last, nil
	}

	data := b.Flatten()
	if got := uint64(len(u.staged)) + uint64(len(data)); got != uploadSize {
		return transfer.UploadResult{}, transfer.Errorf(transfer.CodeInvalidArgument,
			"UploadFinalChunk", "declared size %d does not match %d bytes received",
			uploadSize, got)
	}

	u.staged = append(u.staged, data...)
	obj := u.store.put(u.path, u.staged)
	u.done = true
	delete(u.store.sessions, u.id)

	meta := obj.meta
	u.last = transfer.UploadResult{
		SessionID:         u.id,
		LastCommittedByte: uploadSize,
		State:             transfer.UploadDone,
		Metadata:          &meta,
	}
	u.store.logger.WithField("sessionId", u.id).WithField("path", u.path).
		WithField("size", uploadSize).Debug("upload finalized")
	return u.last, nil
}

func (u *uploadSession) ResetSession() (transfer.UploadResult, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if err := u.store.popFault("ResetSession"); err != nil {
		return transfer.UploadResult{}, err
	}
	u.last = transfer.UploadResult{
		SessionID:         u.id,
		LastCommittedByte: uint64(len(u.staged)),
		State:             u.last.State,
		Metadata:          u.last.Metadata,
	}
	return u.last, nil
}

func (u *uploadSession) NextExpectedByte() uint64 {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	return uint64(len(u.staged))
}

func (u *uploadSession) SessionID() string { return u.id }

func (u *uploadSession) ChunkSizeQuantum() uint64 { return u.store.quantum }

func (u *uploadSession) Done() bool {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	return u.done
}

func (u *uploadSession) LastResponse() transfer.UploadResult {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	return u.last
}
