package transfer

import "time"

// ObjectMetadata describes one remote object (file or folder). The
// transport collaborator produces it from provider payloads; the transfer
// core only carries it through.
type ObjectMetadata struct {
	ID          string
	Name        string
	Path        string
	Size        uint64
	ContentType string
	ETag        string
	IsFolder    bool
	Created     time.Time
	Modified    time.Time
	Custom      map[string]string
}

// QuotaInfo describes account storage usage.
type QuotaInfo struct {
	TotalBytes uint64
	UsedBytes  uint64
}

// UserInfo describes the authenticated account.
type UserInfo struct {
	ID          string
	DisplayName string
	Email       string
}

// GetMetadataRequest fetches metadata for one object.
type GetMetadataRequest struct {
	Path string
}

// ListFolderRequest lists the direct children of a folder, one page at a
// time. PageToken is the opaque cursor from the previous response; empty
// requests the first page.
type ListFolderRequest struct {
	Path      string
	PageSize  int
	PageToken string
}

// ListFolderResponse is one page of folder children. An empty NextPageToken
// marks the last page.
type ListFolderResponse struct {
	Items         []ObjectMetadata
	NextPageToken string
}

// CreateFolderRequest creates a folder at the given path.
type CreateFolderRequest struct {
	Path string
}

// RenameRequest moves or renames an object.
type RenameRequest struct {
	Path    string
	NewPath string
}

// DeleteRequest removes an object.
type DeleteRequest struct {
	Path string
}

// CopyRequest copies an object server-side.
type CopyRequest struct {
	SourcePath string
	TargetPath string
}

// ReadFileRequest opens a ranged read over one object.
//
// Exactly one range form applies: Last > 0 requests the trailing Last bytes
// of the object; otherwise the read starts at Offset and spans Length bytes
// (Length == 0 reads to the end).
type ReadFileRequest struct {
	Path   string
	Offset uint64
	Length uint64
	Last   uint64
}

// ReadsLast reports whether the request uses last-N-bytes semantics.
func (r ReadFileRequest) ReadsLast() bool {
	return r.Last > 0
}

// ResumableUploadRequest starts a resumable upload session for one object.
// TotalSize is the object size if known up front, else zero.
type ResumableUploadRequest struct {
	Path        string
	ContentType string
	Metadata    map[string]string
	TotalSize   uint64
}
