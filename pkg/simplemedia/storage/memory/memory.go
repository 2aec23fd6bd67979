package memory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// DefaultExpiresInSeconds is the lifetime reported for issued references.
const DefaultExpiresInSeconds = 300

// ErrObjectNotFound is returned when reading a key that was never written.
var ErrObjectNotFound = errors.New("object not found")

// Backend is an in-memory implementation of the simplemedia.Storage interface.
// Issued references use the memory:// scheme and are not dereferenceable.
type Backend struct {
	mu              sync.RWMutex
	objects         map[string][]byte
	objectsMimeType map[string]string
	expiresIn       int
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects:         make(map[string][]byte),
		objectsMimeType: make(map[string]string),
		expiresIn:       DefaultExpiresInSeconds,
	}
}

// IssueUploadReference returns a memory:// upload URL for key
func (b *Backend) IssueUploadReference(ctx context.Context, key simplemedia.StorageKey, contentType simplemedia.ContentType) (*simplemedia.Reference, error) {
	if key.IsZero() {
		return nil, errors.New("storage key is empty")
	}
	q := url.Values{}
	q.Set("op", "put")
	q.Set("content-type", contentType.String())
	return &simplemedia.Reference{
		URL:              fmt.Sprintf("memory://%s?%s", key.String(), q.Encode()),
		ExpiresInSeconds: b.expiresIn,
	}, nil
}

// IssueDownloadReference returns a memory:// download URL for key
func (b *Backend) IssueDownloadReference(ctx context.Context, key simplemedia.StorageKey, downloadFileName string) (*simplemedia.Reference, error) {
	if key.IsZero() {
		return nil, errors.New("storage key is empty")
	}
	q := url.Values{}
	q.Set("op", "get")
	if downloadFileName != "" {
		q.Set("filename", downloadFileName)
	}
	return &simplemedia.Reference{
		URL:              fmt.Sprintf("memory://%s?%s", key.String(), q.Encode()),
		ExpiresInSeconds: b.expiresIn,
	}, nil
}

// GetObject returns a copy of the stored bytes
func (b *Backend) GetObject(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, ErrObjectNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// PutObject stores a copy of body under key
func (b *Backend) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	data := make([]byte, len(body))
	copy(data, body)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = data
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	b.objectsMimeType[key] = contentType
	return nil
}

// ContentType returns the content type recorded for key
func (b *Backend) ContentType(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ct, ok := b.objectsMimeType[key]
	return ct, ok
}
