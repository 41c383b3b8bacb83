package inmem

import (
	"context"

	"github.com/cirrus-project/cirrus/pkg/transfer"
)

// OpenReadSource opens a ranged read over one object. Last-N requests
// resolve against the object size at open time; offset requests past the end
// of the object fail with InvalidArgument.
func (s *Store) OpenReadSource(_ context.Context, req transfer.ReadFileRequest) (transfer.ReadSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popFault("OpenReadSource"); err != nil {
		return nil, err
	}
	p := normalize(req.Path)
	obj, ok := s.objects[p]
	if !ok {
		return nil, notFound("OpenReadSource", p)
	}

	size := uint64(len(obj.data))
	var start, end uint64
	if req.ReadsLast() {
		n := req.Last
		if n > size {
			n = size
		}
		start, end = size-n, size
	} else {
		if req.Offset > size {
			return nil, transfer.Errorf(transfer.CodeInvalidArgument, "OpenReadSource",
				"%s: offset %d past object size %d", p, req.Offset, size)
		}
		start, end = req.Offset, size
		if req.Length > 0 && start+req.Length < size {
			end = start + req.Length
		}
	}

	return &readSource{
		store: s,
		data:  append([]byte(nil), obj.data[start:end]...),
	}, nil
}

// readSource streams a fixed byte range. Reads consult the store's "Read"
// fault queue so tests can break a stream mid-flight.
type readSource struct {
	store  *Store
	data   []byte
	pos    int
	closed bool
}

func (r *readSource) IsOpen() bool {
	return !r.closed && r.pos < len(r.data)
}

func (r *readSource) Read(p []byte) (transfer.ReadSourceResult, error) {
	r.store.mu.Lock()
	err := r.store.popFault("Read")
	r.store.mu.Unlock()
	if err != nil {
		return transfer.ReadSourceResult{}, err
	}

	if r.closed || r.pos >= len(r.data) {
		return transfer.ReadSourceResult{}, transfer.Errorf(
			transfer.CodeFailedPrecondition, "Read", "read past end of stream")
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return transfer.ReadSourceResult{
		BytesReceived: n,
		Response: transfer.ReadResponseInfo{
			StatusCode: 206,
			Headers:    map[string][]string{"Accept-Ranges": {"bytes"}},
		},
	}, nil
}

func (r *readSource) Close() error {
	r.closed = true
	return nil
}
