package simplemedia

import (
	"time"

	"github.com/google/uuid"
)

// RequestUploadURLRequest contains parameters for issuing an upload slot
type RequestUploadURLRequest struct {
	OwnerID     uuid.UUID
	FileName    string
	FileSize    int64
	ContentType string
}

// RequestUploadURLResult is the issued upload slot
type RequestUploadURLResult struct {
	UploadURL string    `json:"uploadUrl"`
	FileID    uuid.UUID `json:"fileId"`
	ExpiresIn int       `json:"expiresIn"`
}

// ProcessUploadRequest is the payload of an upload-completion notification
type ProcessUploadRequest struct {
	StorageKey    string
	FileExtension string
}

// ListFilesRequest contains parameters for listing an owner's files.
// The listing resumes after (LastMediaID, LastCreatedAt) only when both are
// set.
type ListFilesRequest struct {
	OwnerID       uuid.UUID
	Limit         int
	LastMediaID   *uuid.UUID
	LastCreatedAt *time.Time
}

// PageCursor is the public form of a pagination cursor
type PageCursor struct {
	MediaID   uuid.UUID `json:"mediaId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Token returns the opaque encoded form of the cursor for owner.
func (c PageCursor) Token(ownerID uuid.UUID) string {
	return Cursor{OwnerID: ownerID, CreatedAt: c.CreatedAt, MediaID: c.MediaID}.Encode()
}

// ListFilesResult is one page of files
type ListFilesResult struct {
	Files      []*Media
	NextCursor *PageCursor
}

// DownloadFileRequest identifies the file to download
type DownloadFileRequest struct {
	FileID  uuid.UUID
	OwnerID uuid.UUID
	// CreatedAt narrows the point lookup; zero matches any creation time.
	CreatedAt time.Time
}

// DownloadFileResult is the issued download link
type DownloadFileResult struct {
	DownloadURL string `json:"downloadUrl"`
	ExpiresIn   int    `json:"expiresIn"`
	FileName    string `json:"fileName"`
}
