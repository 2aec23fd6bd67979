package simplemedia

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository defines the owner-partitioned persistence contract for media.
//
// Lookups report absence with ErrNotFound. A lookup whose owner does not
// match behaves exactly like an absent record.
type Repository interface {
	// Save upserts by (ownerId, id); last write wins
	Save(ctx context.Context, media *Media) error

	// FindByIDAndOwner is a point lookup. A zero createdAt matches any
	// creation time; otherwise it must equal the record's createdAt.
	FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID, createdAt time.Time) (*Media, error)

	// FindByOwner returns one page, most recent first
	FindByOwner(ctx context.Context, params FindByOwnerParams) (*Page, error)

	// FindByStorageKey is the secondary lookup used by upload completion
	FindByStorageKey(ctx context.Context, key StorageKey) (*Media, error)
}

// FindByOwnerParams contains parameters for listing an owner's media.
type FindByOwnerParams struct {
	OwnerID uuid.UUID
	Limit   int
	// Cursor resumes after the given position. A cursor for another owner
	// is ignored and the listing starts from the beginning.
	Cursor *Cursor
}

// Reference is a time-limited URL issued by a Storage.
type Reference struct {
	URL              string
	ExpiresInSeconds int
}

// Storage defines the object storage capability.
type Storage interface {
	// IssueUploadReference returns a URL the client can PUT the object to
	IssueUploadReference(ctx context.Context, key StorageKey, contentType ContentType) (*Reference, error)

	// IssueDownloadReference returns a URL the client can GET the object from
	IssueDownloadReference(ctx context.Context, key StorageKey, downloadFileName string) (*Reference, error)

	// GetObject reads the raw object
	GetObject(ctx context.Context, key string) ([]byte, error)

	// PutObject writes the raw object
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// ErrEmptyImage is returned (possibly wrapped) by a Thumbnailer given an
// empty input buffer.
var ErrEmptyImage = errors.New("empty image input")

// ErrImageTooLarge is returned (possibly wrapped) by a Thumbnailer when the
// declared dimensions of an image exceed its pixel limit.
var ErrImageTooLarge = errors.New("image exceeds pixel limit")

// ThumbnailOptions controls thumbnail rendering.
type ThumbnailOptions struct {
	Width   int
	Height  int
	Quality int
}

// DefaultThumbnailOptions is 200x200 at JPEG quality 80.
var DefaultThumbnailOptions = ThumbnailOptions{Width: 200, Height: 200, Quality: 80}

// WithDefaults fills zero fields from DefaultThumbnailOptions.
func (o ThumbnailOptions) WithDefaults() ThumbnailOptions {
	if o.Width <= 0 {
		o.Width = DefaultThumbnailOptions.Width
	}
	if o.Height <= 0 {
		o.Height = DefaultThumbnailOptions.Height
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultThumbnailOptions.Quality
	}
	return o
}

// Thumbnailer defines the thumbnail rendering capability.
type Thumbnailer interface {
	// GenerateThumbnail renders input into a JPEG thumbnail
	GenerateThumbnail(ctx context.Context, input []byte, opts ThumbnailOptions) ([]byte, error)
}

// MetricsRecorder receives use case outcomes.
type MetricsRecorder interface {
	// ObserveOperation records one use case call; result is "ok" or an error kind
	ObserveOperation(operation, result string, duration time.Duration)

	// ThumbnailGenerated records one stored thumbnail of the given size
	ThumbnailGenerated(sizeBytes int)
}
