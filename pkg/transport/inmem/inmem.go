// Package inmem provides an in-memory storage backend implementing the
// transfer.RawClient contract. It is the reference transport used by tests
// and examples: it enforces chunk-quantum alignment, reports committed byte
// counts the way resumable-upload protocols do, and supports scripted fault
// injection for exercising the retry machinery above it.
package inmem

import (
	"context"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cirrus-project/cirrus/pkg/logging"
	"github.com/cirrus-project/cirrus/pkg/transfer"
)

const (
	defaultChunkQuantum = 256 * 1024
	defaultPageSize     = 100
)

type object struct {
	data []byte
	meta transfer.ObjectMetadata
}

// Store is a thread-safe in-memory object store.
type Store struct {
	mu       sync.Mutex
	objects  map[string]*object
	folders  map[string]bool
	sessions map[string]*uploadSession

	quantum  uint64
	pageSize int
	quota    transfer.QuotaInfo
	user     transfer.UserInfo
	logger   logging.Interface

	// faults maps an operation name to a queue of errors returned, one per
	// call, before the real implementation runs.
	faults map[string][]error

	// shortWrites limits the bytes committed by upcoming chunk uploads.
	shortWrites []uint64

	now func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithChunkQuantum sets the chunk alignment enforced on resumable uploads.
func WithChunkQuantum(quantum uint64) StoreOption {
	return func(s *Store) {
		s.quantum = quantum
	}
}

// WithPageSize sets the default listing page size.
func WithPageSize(size int) StoreOption {
	return func(s *Store) {
		s.pageSize = size
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Interface) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		objects:  make(map[string]*object),
		folders:  map[string]bool{"/": true},
		sessions: make(map[string]*uploadSession),
		quantum:  defaultChunkQuantum,
		pageSize: defaultPageSize,
		quota:    transfer.QuotaInfo{TotalBytes: 1 << 40},
		user:     transfer.UserInfo{ID: "inmem", DisplayName: "In-Memory Store"},
		faults:   make(map[string][]error),
		logger:   logging.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext queues errors returned by the next calls to op, in order. Chunk
// and reset operations on upload sessions consult the "UploadChunk",
// "UploadFinalChunk" and "ResetSession" queues.
func (s *Store) FailNext(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], errs...)
}

// ShortWriteNext makes upcoming chunk uploads commit only n bytes each,
// one entry per call.
func (s *Store) ShortWriteNext(ns ...uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shortWrites = append(s.shortWrites, ns...)
}

// Seed stores an object directly, bypassing the upload protocol.
func (s *Store) Seed(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(p, append([]byte(nil), data...))
}

// ObjectData returns a copy of the stored bytes, for test assertions.
func (s *Store) ObjectData(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[normalize(p)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// SessionCount reports the number of open upload sessions.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) popFault(op string) error {
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.faults[op] = queue[1:]
	return err
}

func (s *Store) put(p string, data []byte) *object {
	p = normalize(p)
	obj := &object{
		data: data,
		meta: transfer.ObjectMetadata{
			ID:       uuid.NewString(),
			Name:     path.Base(p),
			Path:     p,
			Size:     uint64(len(data)),
			Modified: s.now(),
			Created:  s.now(),
		},
	}
	if existing, ok := s.objects[p]; ok {
		obj.meta.ID = existing.meta.ID
		obj.meta.Created = existing.meta.Created
	}
	s.objects[p] = obj
	return obj
}

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func notFound(op, p string) error {
	return transfer.Errorf(transfer.CodeNotFound, op, "%s: no such object", p)
}

// GetMetadata returns the metadata of an object or folder.
func (s *Store) GetMetadata(_ context.Context, req transfer.GetMetadataRequest) (*transfer.ObjectMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("GetMetadata"); err != nil {
		return nil, err
	}
	p := normalize(req.Path)
	if obj, ok := s.objects[p]; ok {
		meta := obj.meta
		return &meta, nil
	}
	if s.folders[p] {
		return &transfer.ObjectMetadata{Name: path.Base(p), Path: p, IsFolder: true}, nil
	}
	return nil, notFound("GetMetadata", p)
}

// ListFolder lists the direct children of a folder, one page at a time. The
// page token is an opaque offset into the sorted child list.
func (s *Store) ListFolder(_ context.Context, req transfer.ListFolderRequest) (*transfer.ListFolderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("ListFolder"); err != nil {
		return nil, err
	}
	parent := normalize(req.Path)
	if !s.folders[parent] {
		return nil, notFound("ListFolder", parent)
	}

	var children []transfer.ObjectMetadata
	for p, obj := range s.objects {
		if path.Dir(p) == parent {
			children = append(children, obj.meta)
		}
	}
	for p := range s.folders {
		if p != "/" && path.Dir(p) == parent {
			children = append(children, transfer.ObjectMetadata{
				Name: path.Base(p), Path: p, IsFolder: true,
			})
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Path < children[j].Path })

	start := 0
	if req.PageToken != "" {
		n, err := strconv.Atoi(req.PageToken)
		if err != nil || n < 0 || n > len(children) {
			return nil, transfer.Errorf(transfer.CodeInvalidArgument, "ListFolder",
				"invalid page token %q", req.PageToken)
		}
		start = n
	}

	size := req.PageSize
	if size <= 0 {
		size = s.pageSize
	}
	end := start + size
	resp := &transfer.ListFolderResponse{}
	if end >= len(children) {
		resp.Items = children[start:]
	} else {
		resp.Items = children[start:end]
		resp.NextPageToken = strconv.Itoa(end)
	}
	return resp, nil
}

// CreateFolder creates a folder, along with missing parents.
func (s *Store) CreateFolder(_ context.Context, req transfer.CreateFolderRequest) (*transfer.ObjectMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("CreateFolder"); err != nil {
		return nil, err
	}
	p := normalize(req.Path)
	for cur := p; cur != "/"; cur = path.Dir(cur) {
		s.folders[cur] = true
	}
	return &transfer.ObjectMetadata{Name: path.Base(p), Path: p, IsFolder: true}, nil
}

// Rename moves an object or folder to a new path.
func (s *Store) Rename(_ context.Context, req transfer.RenameRequest) (*transfer.ObjectMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("Rename"); err != nil {
		return nil, err
	}
	from, to := normalize(req.Path), normalize(req.NewPath)
	if obj, ok := s.objects[from]; ok {
		delete(s.objects, from)
		moved := s.put(to, obj.data)
		meta := moved.meta
		return &meta, nil
	}
	if s.folders[from] {
		delete(s.folders, from)
		s.folders[to] = true
		for p, obj := range s.objects {
			if strings.HasPrefix(p, from+"/") {
				delete(s.objects, p)
				s.put(to+strings.TrimPrefix(p, from), obj.data)
			}
		}
		return &transfer.ObjectMetadata{Name: path.Base(to), Path: to, IsFolder: true}, nil
	}
	return nil, notFound("Rename", from)
}

// Delete removes an object or folder (recursively).
func (s *Store) Delete(_ context.Context, req transfer.DeleteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("Delete"); err != nil {
		return err
	}
	p := normalize(req.Path)
	if _, ok := s.objects[p]; ok {
		delete(s.objects, p)
		return nil
	}
	if s.folders[p] {
		delete(s.folders, p)
		for op := range s.objects {
			if strings.HasPrefix(op, p+"/") {
				delete(s.objects, op)
			}
		}
		return nil
	}
	return notFound("Delete", p)
}

// Copy duplicates an object server-side.
func (s *Store) Copy(_ context.Context, req transfer.CopyRequest) (*transfer.ObjectMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("Copy"); err != nil {
		return nil, err
	}
	src := normalize(req.SourcePath)
	obj, ok := s.objects[src]
	if !ok {
		return nil, notFound("Copy", src)
	}
	copied := s.put(normalize(req.TargetPath), append([]byte(nil), obj.data...))
	meta := copied.meta
	return &meta, nil
}

// GetQuota reports storage usage.
func (s *Store) GetQuota(_ context.Context) (*transfer.QuotaInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("GetQuota"); err != nil {
		return nil, err
	}
	q := s.quota
	q.UsedBytes = 0
	for _, obj := range s.objects {
		q.UsedBytes += uint64(len(obj.data))
	}
	return &q, nil
}

// GetUserInfo returns the fixed account identity of the store.
func (s *Store) GetUserInfo(_ context.Context) (*transfer.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("GetUserInfo"); err != nil {
		return nil, err
	}
	u := s.user
	return &u, nil
}
