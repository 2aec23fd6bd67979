package simplemedia

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CursorTimeLayout formats createdAt inside sort keys and public cursors.
const CursorTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Cursor is an encoded pagination position: the owner partition plus the
// (createdAt, id) sort key of the last returned record. It is a value, not
// a handle into any store, so it can cross process boundaries.
type Cursor struct {
	OwnerID   uuid.UUID
	CreatedAt time.Time
	MediaID   uuid.UUID
}

type cursorWire struct {
	Owner     string `json:"o"`
	CreatedAt string `json:"c"`
	Media     string `json:"m"`
}

// SortKey returns createdAt#id, the composite key that totally orders media
// inside an owner partition.
func (c Cursor) SortKey() string {
	return fmt.Sprintf("%s#%s", c.CreatedAt.UTC().Format(CursorTimeLayout), c.MediaID)
}

// Encode returns an opaque, URL-safe token for c.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(cursorWire{
		Owner:     c.OwnerID.String(),
		CreatedAt: c.CreatedAt.UTC().Format(CursorTimeLayout),
		Media:     c.MediaID.String(),
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by Cursor.Encode.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, newError(KindBadRequest, "decode_cursor", "invalid cursor", err)
	}
	var w cursorWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Cursor{}, newError(KindBadRequest, "decode_cursor", "invalid cursor", err)
	}
	ownerID, err := uuid.Parse(w.Owner)
	if err != nil {
		return Cursor{}, newError(KindBadRequest, "decode_cursor", "invalid cursor owner", err)
	}
	mediaID, err := uuid.Parse(w.Media)
	if err != nil {
		return Cursor{}, newError(KindBadRequest, "decode_cursor", "invalid cursor media id", err)
	}
	createdAt, err := ParseCursorTime(w.CreatedAt)
	if err != nil {
		return Cursor{}, newError(KindBadRequest, "decode_cursor", "invalid cursor timestamp", err)
	}
	return Cursor{OwnerID: ownerID, CreatedAt: createdAt, MediaID: mediaID}, nil
}

// ParseCursorTime parses an RFC 3339 timestamp and normalizes it to UTC
// milliseconds.
func ParseCursorTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return normalizeTime(t), nil
}

// Follows reports whether a record with the given sort key comes strictly
// after c in descending (most recent first) order.
func (c Cursor) Follows(createdAt time.Time, mediaID uuid.UUID) bool {
	if !createdAt.Equal(c.CreatedAt) {
		return createdAt.Before(c.CreatedAt)
	}
	return bytes.Compare(mediaID[:], c.MediaID[:]) < 0
}

// SortDescending orders two sort keys most recent first; it returns true
// when a must come before b.
func SortDescending(aCreatedAt time.Time, aID uuid.UUID, bCreatedAt time.Time, bID uuid.UUID) bool {
	if !aCreatedAt.Equal(bCreatedAt) {
		return aCreatedAt.After(bCreatedAt)
	}
	return bytes.Compare(aID[:], bID[:]) > 0
}

// Page is one page of an owner's media.
type Page struct {
	Items []*Media
	// NextCursor is nil when the page was not full.
	NextCursor *Cursor
}
