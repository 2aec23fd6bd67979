package simplemedia

import "context"

// Service defines the media lifecycle use cases
type Service interface {
	// RequestUploadURL validates the upload, persists an uploading record
	// and issues a time-limited upload URL
	RequestUploadURL(ctx context.Context, req RequestUploadURLRequest) (*RequestUploadURLResult, error)

	// ProcessUpload handles an upload-completion notification: it renders
	// and stores the thumbnail and marks the media ready
	ProcessUpload(ctx context.Context, req ProcessUploadRequest) error

	// ListFiles returns one page of the owner's files, most recent first
	ListFiles(ctx context.Context, req ListFilesRequest) (*ListFilesResult, error)

	// DownloadFile issues a time-limited download URL
	DownloadFile(ctx context.Context, req DownloadFileRequest) (*DownloadFileResult, error)

	// MarkFailed explicitly moves the media stored at storageKey to failed
	MarkFailed(ctx context.Context, storageKey string) error
}
