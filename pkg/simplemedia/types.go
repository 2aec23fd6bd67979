package simplemedia

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxFileSize is the largest accepted upload, 10 MiB.
const MaxFileSize int64 = 10 * 1024 * 1024

const bytesPerMB = 1024 * 1024

var (
	fileNamePattern    = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	nonAlphanumeric    = regexp.MustCompile(`[^A-Za-z0-9]`)
	leadingNonLetters  = regexp.MustCompile(`^[^A-Za-z]+`)
	trailingNonLetters = regexp.MustCompile(`[^A-Za-z]+$`)
)

// FileName is a validated display name for an upload.
type FileName struct {
	value string
}

// NewFileName validates raw and returns it as a FileName.
func NewFileName(raw string) (FileName, error) {
	if !fileNamePattern.MatchString(raw) {
		return FileName{}, newError(KindInvalidFileName, "",
			"invalid file name: use only alphanumeric characters, dots (.), underscores (_), and hyphens (-)", nil)
	}
	return FileName{value: raw}, nil
}

func (f FileName) String() string {
	return f.value
}

// Extension returns the substring after the last dot, or "" when the name
// has no dot.
func (f FileName) Extension() string {
	i := strings.LastIndex(f.value, ".")
	if i < 0 {
		return ""
	}
	return f.value[i+1:]
}

// Sanitized returns an advisory form of the name with every non-alphanumeric
// replaced by "_" and leading/trailing non-letters stripped. It is never used
// to build storage keys.
func (f FileName) Sanitized() string {
	s := nonAlphanumeric.ReplaceAllString(f.value, "_")
	s = leadingNonLetters.ReplaceAllString(s, "")
	return trailingNonLetters.ReplaceAllString(s, "")
}

// FileSize is a positive byte count no larger than MaxFileSize.
type FileSize struct {
	bytes int64
}

// NewFileSize validates bytes and returns it as a FileSize.
func NewFileSize(bytes int64) (FileSize, error) {
	if bytes <= 0 || bytes > MaxFileSize {
		return FileSize{}, newError(KindInvalidFileSize, "",
			"please provide a size between 1 byte and 10 MB", nil)
	}
	return FileSize{bytes: bytes}, nil
}

// Bytes returns the raw byte count.
func (s FileSize) Bytes() int64 {
	return s.bytes
}

// MB returns the size in mebibytes.
func (s FileSize) MB() float64 {
	return float64(s.bytes) / bytesPerMB
}

func (s FileSize) String() string {
	return fmt.Sprintf("%.2f MB", s.MB())
}

// ContentType is the closed set of accepted mime types.
type ContentType string

// Content type constants (typed).
const (
	ContentTypeJPEG ContentType = "image/jpeg"
	ContentTypePNG  ContentType = "image/png"
	ContentTypeMP4  ContentType = "video/mp4"
)

type contentTypeInfo struct {
	extension string
	aliases   []string
	image     bool
	video     bool
}

var contentTypes = map[ContentType]contentTypeInfo{
	ContentTypeJPEG: {extension: "jpg", aliases: []string{"jpeg"}, image: true},
	ContentTypePNG:  {extension: "png", image: true},
	ContentTypeMP4:  {extension: "mp4", video: true},
}

// ParseContentType validates mime against the supported set.
func ParseContentType(mime string) (ContentType, error) {
	ct := ContentType(mime)
	if _, ok := contentTypes[ct]; !ok {
		return "", newError(KindInvalidContentType, "",
			"only JPEG, PNG, and MP4 are allowed", nil)
	}
	return ct, nil
}

func (c ContentType) String() string {
	return string(c)
}

// IsImage reports whether c is JPEG or PNG.
func (c ContentType) IsImage() bool {
	return contentTypes[c].image
}

// IsVideo reports whether c is MP4.
func (c ContentType) IsVideo() bool {
	return contentTypes[c].video
}

// Extension returns the canonical file extension for c.
func (c ContentType) Extension() string {
	return contentTypes[c].extension
}

// MatchesExtension reports whether a file extension belongs to c.
// Comparison ignores case and "jpeg" is accepted for JPEG.
func (c ContentType) MatchesExtension(ext string) bool {
	info, ok := contentTypes[c]
	if !ok || ext == "" {
		return false
	}
	ext = strings.ToLower(ext)
	if ext == info.extension {
		return true
	}
	for _, alias := range info.aliases {
		if ext == alias {
			return true
		}
	}
	return false
}

// StorageKey is the deterministic location of a file's bytes:
// media/{ownerId}/{mediaId}.{ext}
type StorageKey struct {
	value string
}

// NewStorageKey derives the key for an owner/media pair.
func NewStorageKey(ownerID, mediaID, extension string) (StorageKey, error) {
	if ownerID == "" || mediaID == "" || extension == "" {
		return StorageKey{}, newError(KindBadRequest, "",
			"storage key requires owner id, media id and extension", nil)
	}
	return StorageKey{value: fmt.Sprintf("media/%s/%s.%s", ownerID, mediaID, extension)}, nil
}

// StorageKeyFromString wraps an already computed key without re-deriving it.
func StorageKeyFromString(key string) StorageKey {
	return StorageKey{value: key}
}

func (k StorageKey) String() string {
	return k.value
}

// IsZero reports whether the key is empty.
func (k StorageKey) IsZero() bool {
	return k.value == ""
}

// ThumbnailKeyFor returns thumbnails/{ownerId}/{mediaId}.jpg
func ThumbnailKeyFor(ownerID, mediaID uuid.UUID) string {
	return fmt.Sprintf("thumbnails/%s/%s.jpg", ownerID, mediaID)
}

// ThumbnailContentType is the mime type of every generated thumbnail.
const ThumbnailContentType = ContentTypeJPEG

// MediaStatus is the domain type for media lifecycle states.
type MediaStatus string

// Media status constants (typed).
const (
	StatusUploading  MediaStatus = "uploading"
	StatusProcessing MediaStatus = "processing"
	StatusReady      MediaStatus = "ready"
	StatusFailed     MediaStatus = "failed"
)

// ParseMediaStatus maps a persisted status name to a MediaStatus. An empty
// name yields StatusUploading.
func ParseMediaStatus(s string) (MediaStatus, error) {
	if s == "" {
		return StatusUploading, nil
	}
	status := MediaStatus(strings.ToLower(s))
	if _, ok := allowedTransitions[status]; !ok {
		return "", fmt.Errorf("invalid media status %q: use one of uploading, processing, ready, or failed", s)
	}
	return status, nil
}

func (s MediaStatus) String() string {
	return string(s)
}
