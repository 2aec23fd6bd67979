package simplemedia_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

func TestCursor_EncodeDecode(t *testing.T) {
	c := simplemedia.Cursor{
		OwnerID:   uuid.New(),
		CreatedAt: time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC),
		MediaID:   uuid.New(),
	}

	token := c.Encode()
	assert.NotContains(t, token, "=")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")

	decoded, err := simplemedia.DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestCursor_SortKey(t *testing.T) {
	id := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	c := simplemedia.Cursor{CreatedAt: time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC), MediaID: id}
	assert.Equal(t, "2026-02-11T12:00:00.000Z#22222222-2222-2222-2222-222222222222", c.SortKey())
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := map[string]string{
		"not base64":   "%%%",
		"not json":     base64.RawURLEncoding.EncodeToString([]byte("nope")),
		"bad owner":    base64.RawURLEncoding.EncodeToString([]byte(`{"o":"x","c":"2026-02-11T12:00:00.000Z","m":"22222222-2222-2222-2222-222222222222"}`)),
		"bad media":    base64.RawURLEncoding.EncodeToString([]byte(`{"o":"22222222-2222-2222-2222-222222222222","c":"2026-02-11T12:00:00.000Z","m":"x"}`)),
		"bad time":     base64.RawURLEncoding.EncodeToString([]byte(`{"o":"22222222-2222-2222-2222-222222222222","c":"yesterday","m":"22222222-2222-2222-2222-222222222222"}`)),
		"empty object": base64.RawURLEncoding.EncodeToString([]byte(`{}`)),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := simplemedia.DecodeCursor(token)
			assert.ErrorIs(t, err, simplemedia.ErrBadRequest)
		})
	}
}

func TestParseCursorTime(t *testing.T) {
	got, err := simplemedia.ParseCursorTime("2026-02-11T13:00:00.123456+01:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 11, 12, 0, 0, 123000000, time.UTC), got)

	_, err = simplemedia.ParseCursorTime("2026-02-11")
	assert.Error(t, err)
}

func TestCursor_Follows(t *testing.T) {
	at := time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)
	low := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	mid := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	high := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	c := simplemedia.Cursor{CreatedAt: at, MediaID: mid}

	assert.True(t, c.Follows(at.Add(-time.Millisecond), high))
	assert.False(t, c.Follows(at.Add(time.Millisecond), low))
	assert.True(t, c.Follows(at, low))
	assert.False(t, c.Follows(at, mid))
	assert.False(t, c.Follows(at, high))

	assert.True(t, simplemedia.SortDescending(at, low, at.Add(-time.Second), high))
	assert.True(t, simplemedia.SortDescending(at, high, at, low))
	assert.False(t, simplemedia.SortDescending(at, low, at, high))
}

func TestPageCursor_Token(t *testing.T) {
	ownerID := uuid.New()
	pc := simplemedia.PageCursor{MediaID: uuid.New(), CreatedAt: time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC)}

	c, err := simplemedia.DecodeCursor(pc.Token(ownerID))
	require.NoError(t, err)
	assert.Equal(t, ownerID, c.OwnerID)
	assert.Equal(t, pc.MediaID, c.MediaID)
	assert.Equal(t, pc.CreatedAt, c.CreatedAt)
}
