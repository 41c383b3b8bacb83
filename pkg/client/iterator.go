package client

import (
	"github.com/cirrus-project/cirrus/pkg/transfer"
)

// Done marks the end of an iteration.
var Done = transfer.ErrIteratorDone

// ObjectIterator walks a folder listing one entry at a time, fetching pages
// lazily. After it yields an error it terminates: the next call returns
// Done.
type ObjectIterator struct {
	seq *transfer.PaginatedSequence[transfer.ObjectMetadata]
}

// Next returns the next entry, Done at the end of the listing, or the error
// that cut the listing short.
func (it *ObjectIterator) Next() (*transfer.ObjectMetadata, error) {
	item, err := it.seq.Next()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// All drains the iterator into a slice. Listings can be large; prefer Next
// unless the folder is known to be small.
func (it *ObjectIterator) All() ([]transfer.ObjectMetadata, error) {
	var items []transfer.ObjectMetadata
	for {
		item, err := it.Next()
		if err == Done {
			return items, nil
		}
		if err != nil {
			return items, err
		}
		items = append(items, *item)
	}
}
