package simplemedia

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Media is the aggregate for one uploaded file. It is created in
// StatusUploading and only moves forward through the status table.
//
// A Media value is owned by the use case that loaded it; repositories store
// snapshots, never the pointer.
type Media struct {
	id           uuid.UUID
	ownerID      uuid.UUID
	fileName     FileName
	fileSize     FileSize
	contentType  ContentType
	storageKey   StorageKey
	thumbnailKey string
	status       MediaStatus
	createdAt    time.Time
	updatedAt    time.Time

	clock func() time.Time
}

// NewMediaParams contains the validated inputs for a new Media.
type NewMediaParams struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	FileName    FileName
	FileSize    FileSize
	ContentType ContentType
	StorageKey  StorageKey
	// Now overrides the creation time; zero means time.Now.
	Now time.Time
}

// NewMedia builds a Media in StatusUploading.
func NewMedia(p NewMediaParams) (*Media, error) {
	if p.ID == uuid.Nil || p.OwnerID == uuid.Nil {
		return nil, errors.New("media id and owner id are required")
	}
	if p.StorageKey.IsZero() {
		return nil, errors.New("storage key is required")
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = normalizeTime(now)

	return &Media{
		id:          p.ID,
		ownerID:     p.OwnerID,
		fileName:    p.FileName,
		fileSize:    p.FileSize,
		contentType: p.ContentType,
		storageKey:  p.StorageKey,
		status:      StatusUploading,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// MediaSnapshot is the persisted shape of a Media.
type MediaSnapshot struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	FileName     string    `json:"file_name"`
	FileSize     int64     `json:"file_size"`
	ContentType  string    `json:"content_type"`
	StorageKey   string    `json:"storage_key"`
	ThumbnailKey string    `json:"thumbnail_key,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RestoreMedia rebuilds a Media from persisted data. The storage key is
// taken as-is and timestamps are not touched.
func RestoreMedia(s MediaSnapshot) (*Media, error) {
	fileName, err := NewFileName(s.FileName)
	if err != nil {
		return nil, fmt.Errorf("restore media %s: %w", s.ID, err)
	}
	fileSize, err := NewFileSize(s.FileSize)
	if err != nil {
		return nil, fmt.Errorf("restore media %s: %w", s.ID, err)
	}
	contentType, err := ParseContentType(s.ContentType)
	if err != nil {
		return nil, fmt.Errorf("restore media %s: %w", s.ID, err)
	}
	status, err := ParseMediaStatus(s.Status)
	if err != nil {
		return nil, fmt.Errorf("restore media %s: %w", s.ID, err)
	}
	if s.StorageKey == "" {
		return nil, fmt.Errorf("restore media %s: storage key is empty", s.ID)
	}

	return &Media{
		id:           s.ID,
		ownerID:      s.OwnerID,
		fileName:     fileName,
		fileSize:     fileSize,
		contentType:  contentType,
		storageKey:   StorageKeyFromString(s.StorageKey),
		thumbnailKey: s.ThumbnailKey,
		status:       status,
		createdAt:    s.CreatedAt.UTC(),
		updatedAt:    s.UpdatedAt.UTC(),
	}, nil
}

// Snapshot exports the persisted shape of m.
func (m *Media) Snapshot() MediaSnapshot {
	return MediaSnapshot{
		ID:           m.id,
		OwnerID:      m.ownerID,
		FileName:     m.fileName.String(),
		FileSize:     m.fileSize.Bytes(),
		ContentType:  m.contentType.String(),
		StorageKey:   m.storageKey.String(),
		ThumbnailKey: m.thumbnailKey,
		Status:       m.status.String(),
		CreatedAt:    m.createdAt,
		UpdatedAt:    m.updatedAt,
	}
}

func (m *Media) ID() uuid.UUID            { return m.id }
func (m *Media) OwnerID() uuid.UUID       { return m.ownerID }
func (m *Media) FileName() FileName       { return m.fileName }
func (m *Media) FileSize() FileSize       { return m.fileSize }
func (m *Media) ContentType() ContentType { return m.contentType }
func (m *Media) StorageKey() StorageKey   { return m.storageKey }
func (m *Media) Status() MediaStatus      { return m.status }
func (m *Media) CreatedAt() time.Time     { return m.createdAt }
func (m *Media) UpdatedAt() time.Time     { return m.updatedAt }

// ThumbnailKey returns the derived thumbnail location, if one is attached.
func (m *Media) ThumbnailKey() (string, bool) {
	return m.thumbnailKey, m.thumbnailKey != ""
}

// Cursor returns the pagination position of m.
func (m *Media) Cursor() Cursor {
	return Cursor{OwnerID: m.ownerID, CreatedAt: m.createdAt, MediaID: m.id}
}

// StartProcessing moves the media from uploading to processing.
func (m *Media) StartProcessing() error {
	return m.transition(StatusProcessing)
}

// AttachThumbnail records the derived thumbnail location. Only image media
// may carry a thumbnail. Status is unchanged.
func (m *Media) AttachThumbnail(key string) error {
	if !m.contentType.IsImage() {
		return newError(KindThumbnailNotAllowed, "", "only images can have thumbnails", nil)
	}
	if key == "" {
		return newError(KindBadRequest, "", "thumbnail key is empty", nil)
	}
	m.thumbnailKey = key
	m.touch()
	return nil
}

// MarkAsReady moves the media to the terminal ready state.
func (m *Media) MarkAsReady() error {
	return m.transition(StatusReady)
}

// MarkAsFailed moves the media to the terminal failed state and drops any
// attached thumbnail.
func (m *Media) MarkAsFailed() error {
	if err := validateTransition(m.status, StatusFailed); err != nil {
		return err
	}
	m.status = StatusFailed
	m.thumbnailKey = ""
	m.touch()
	return nil
}

func (m *Media) transition(to MediaStatus) error {
	if err := validateTransition(m.status, to); err != nil {
		return err
	}
	m.status = to
	m.touch()
	return nil
}

func (m *Media) touch() {
	now := time.Now
	if m.clock != nil {
		now = m.clock
	}
	m.updatedAt = normalizeTime(now())
}

// normalizeTime keeps timestamps in UTC at millisecond precision so they
// survive the cursor and persistence round trips unchanged.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
