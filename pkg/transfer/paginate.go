package transfer

import "errors"

// ErrIteratorDone is returned by PaginatedSequence.Next once the sequence
// is exhausted.
var ErrIteratorDone = errors.New("transfer: iterator done")

// PageFetcher retrieves one page of items for a page token; the empty token
// requests the first page. An empty nextPageToken marks the last page.
//
// Fetchers are expected to be calls through a RetryingClient: the sequence
// itself never retries, a failed fetch terminates it.
type PageFetcher[T any] func(pageToken string) (items []T, nextPageToken string, err error)

// PaginatedSequence turns a page-token listing call into a lazy, forward
// only sequence of items. Consumers observe at most one error element, after
// which the sequence ends.
type PaginatedSequence[T any] struct {
	fetch    PageFetcher[T]
	items    []T
	token    string
	started  bool
	lastPage bool
	finished bool
}

// NewPaginatedSequence creates a sequence over fetch. Nothing is fetched
// until the first Next call.
func NewPaginatedSequence[T any](fetch PageFetcher[T]) *PaginatedSequence[T] {
	return &PaginatedSequence[T]{fetch: fetch}
}

// Next returns the next item. It returns ErrIteratorDone once the sequence
// is exhausted, or the fetch error exactly once before terminating.
func (s *PaginatedSequence[T]) Next() (T, error) {
	var zero T

	for len(s.items) == 0 {
		if s.finished || (s.started && s.lastPage) {
			s.finished = true
			return zero, ErrIteratorDone
		}

		items, next, err := s.fetch(s.token)
		s.started = true
		if err != nil {
			s.finished = true
			return zero, err
		}
		s.items = items
		s.token = next
		s.lastPage = next == ""
	}

	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}
