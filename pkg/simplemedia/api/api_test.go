package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/api"
	"github.com/tendant/simple-media/pkg/simplemedia/notification"
	"github.com/tendant/simple-media/pkg/simplemedia/repo/memory"
	memorystorage "github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/thumbnail"
)

const (
	jwtSecret    = "test-secret"
	webhookToken = "hook-token"
)

type observed struct {
	method, route string
	status        int
}

type recordingObserver struct {
	mu       sync.Mutex
	requests []observed
}

func (o *recordingObserver) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, observed{method, route, status})
}

type testServer struct {
	t        *testing.T
	router   *chi.Mux
	storage  *memorystorage.Backend
	observer *recordingObserver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	storage := memorystorage.New()
	svc, err := simplemedia.New(
		simplemedia.WithRepository(memory.New()),
		simplemedia.WithStorage(storage),
		simplemedia.WithThumbnailer(thumbnail.New()),
		simplemedia.WithListLimits(2, 10),
	)
	require.NoError(t, err)

	observer := &recordingObserver{}
	r := chi.NewRouter()
	api.Mount(r, api.RouterConfig{
		Service:       svc,
		JWTAuth:       api.NewJWTAuth(jwtSecret),
		Notifications: notification.NewHandler(svc, nil),
		WebhookToken:  webhookToken,
		Metrics:       observer,
	})

	return &testServer{t: t, router: r, storage: storage, observer: observer}
}

func tokenFor(t *testing.T, subject string) string {
	t.Helper()
	_, token, err := api.NewJWTAuth(jwtSecret).Encode(map[string]interface{}{"sub": subject})
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, target, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(token, name string) simplemedia.RequestUploadURLResult {
	s.t.Helper()
	body, _ := json.Marshal(api.UploadRequest{FileName: name, FileSize: 2048, ContentType: "image/png"})
	rec := s.do(http.MethodPost, "/api/v1/uploads", token, body)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var res simplemedia.RequestUploadURLResult
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func (s *testServer) list(token, query string) api.ListFilesResponse {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/v1/files"+query, token, nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	var res api.ListFilesResponse
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var res api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return res
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func s3Event(key string) []byte {
	return []byte(fmt.Sprintf(`{"Records":[{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"media"},"object":{"key":%q}}}]}`, url.QueryEscape(key)))
}

func TestUploadLifecycle(t *testing.T) {
	s := newTestServer(t)
	ownerID := uuid.New()
	token := tokenFor(t, ownerID.String())

	res := s.upload(token, "cat.png")
	assert.NotEqual(t, uuid.Nil, res.FileID)
	assert.NotEmpty(t, res.UploadURL)
	assert.Equal(t, memorystorage.DefaultExpiresInSeconds, res.ExpiresIn)

	page := s.list(token, "")
	require.Len(t, page.Files, 1)
	file := page.Files[0]
	assert.Equal(t, res.FileID.String(), file.ID)
	assert.Equal(t, ownerID.String(), file.OwnerID)
	assert.Equal(t, "uploading", file.Status)
	assert.Empty(t, file.ThumbnailKey)
	assert.Equal(t, fmt.Sprintf("media/%s/%s.png", ownerID, res.FileID), file.StorageKey)

	require.NoError(t, s.storage.PutObject(context.Background(), file.StorageKey, pngBytes(t, 64, 32), "image/png"))

	rec := s.do(http.MethodPost, "/internal/notifications/s3", webhookToken, s3Event(file.StorageKey))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	page = s.list(token, "")
	require.Len(t, page.Files, 1)
	assert.Equal(t, "ready", page.Files[0].Status)
	assert.Equal(t, fmt.Sprintf("thumbnails/%s/%s.jpg", ownerID, res.FileID), page.Files[0].ThumbnailKey)

	thumb, err := s.storage.GetObject(context.Background(), page.Files[0].ThumbnailKey)
	require.NoError(t, err)
	assert.NotEmpty(t, thumb)

	// Redelivery is a no-op.
	rec = s.do(http.MethodPost, "/internal/notifications/s3", webhookToken, s3Event(file.StorageKey))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/files/"+file.ID+"/download?createdAt="+url.QueryEscape(file.CreatedAt), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dl simplemedia.DownloadFileResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dl))
	assert.Equal(t, "cat.png", dl.FileName)
	assert.Contains(t, dl.DownloadURL, file.StorageKey)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"malformed token", "not-a-jwt"},
		{"wrong secret", func() string {
			_, tok, _ := api.NewJWTAuth("other").Encode(map[string]interface{}{"sub": uuid.NewString()})
			return tok
		}()},
		{"subject is not a uuid", tokenFor(t, "alice")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/api/v1/files", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, api.CodeUnauthorized, decodeError(t, rec).Error)
		})
	}
}

func TestRequestUploadURL_Validation(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, uuid.NewString())

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed body", `{"fileName":`, string(simplemedia.KindBadRequest)},
		{"empty name", `{"fileName":"","fileSize":10,"contentType":"image/png"}`, string(simplemedia.KindInvalidFileName)},
		{"zero size", `{"fileName":"a.png","fileSize":0,"contentType":"image/png"}`, string(simplemedia.KindInvalidFileSize)},
		{"unknown type", `{"fileName":"a.exe","fileSize":10,"contentType":"application/x-msdownload"}`, string(simplemedia.KindInvalidContentType)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/uploads", token, []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
		})
	}
}

func TestListFiles_Pagination(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, uuid.NewString())

	for i := 0; i < 3; i++ {
		s.upload(token, fmt.Sprintf("file-%d.png", i))
	}

	first := s.list(token, "")
	require.Len(t, first.Files, 2)
	require.NotNil(t, first.NextCursor)
	assert.NotEmpty(t, first.NextCursorToken)
	assert.Equal(t, first.Files[1].ID, first.NextCursor.MediaID)

	q := url.Values{}
	q.Set("lastMediaId", first.NextCursor.MediaID)
	q.Set("lastCreatedAt", first.NextCursor.CreatedAt)
	second := s.list(token, "?"+q.Encode())
	require.Len(t, second.Files, 1)
	assert.Nil(t, second.NextCursor)
	assert.Empty(t, second.NextCursorToken)

	byToken := s.list(token, "?cursor="+url.QueryEscape(first.NextCursorToken))
	assert.Equal(t, second.Files, byToken.Files)

	seen := map[string]bool{}
	for _, f := range append(first.Files, second.Files...) {
		assert.False(t, seen[f.ID], "duplicate %s", f.ID)
		seen[f.ID] = true
	}
	assert.Len(t, seen, 3)

	all := s.list(token, "?limit=10")
	assert.Len(t, all.Files, 3)
}

func TestListFiles_BadParameters(t *testing.T) {
	s := newTestServer(t)
	ownerID := uuid.New()
	token := tokenFor(t, ownerID.String())

	foreign := simplemedia.Cursor{OwnerID: uuid.New(), CreatedAt: time.Now(), MediaID: uuid.New()}.Encode()

	tests := []struct {
		name  string
		query string
	}{
		{"non-numeric limit", "?limit=ten"},
		{"negative limit", "?limit=-1"},
		{"bad media id", "?lastMediaId=nope"},
		{"bad timestamp", "?lastCreatedAt=yesterday"},
		{"garbage cursor", "?cursor=" + url.QueryEscape("***")},
		{"foreign cursor", "?cursor=" + url.QueryEscape(foreign)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/api/v1/files"+tt.query, token, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	t.Run("empty listing has no cursor", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/files", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"files":[],"nextCursor":null}`, rec.Body.String())
	})
}

func TestDownloadFile_Errors(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, uuid.NewString())
	res := s.upload(token, "mine.png")

	t.Run("bad id", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/files/not-a-uuid/download", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/files/"+uuid.NewString()+"/download", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, string(simplemedia.KindNotFound), decodeError(t, rec).Error)
	})

	t.Run("other owner", func(t *testing.T) {
		other := tokenFor(t, uuid.NewString())
		rec := s.do(http.MethodGet, "/api/v1/files/"+res.FileID.String()+"/download", other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad createdAt", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/files/"+res.FileID.String()+"/download?createdAt=soon", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWebhook(t *testing.T) {
	s := newTestServer(t)

	t.Run("requires token", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/internal/notifications/s3", "", s3Event("media/a/b.png"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = s.do(http.MethodPost, "/internal/notifications/s3", "wrong", s3Event("media/a/b.png"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/internal/notifications/s3", webhookToken, []byte("{"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown key is acknowledged", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/internal/notifications/s3", webhookToken, s3Event("media/a/b.png"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing object is retryable", func(t *testing.T) {
		token := tokenFor(t, uuid.NewString())
		s.upload(token, "never-uploaded.png")
		page := s.list(token, "")
		require.Len(t, page.Files, 1)

		rec := s.do(http.MethodPost, "/internal/notifications/s3", webhookToken, s3Event(page.Files[0].StorageKey))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeError(t, rec).Message)
	})
}

func TestMetricsUseRoutePatterns(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, uuid.NewString())

	s.do(http.MethodGet, "/api/v1/files/"+uuid.NewString()+"/download", token, nil)

	s.observer.mu.Lock()
	defer s.observer.mu.Unlock()
	require.Len(t, s.observer.requests, 1)
	assert.Equal(t, observed{http.MethodGet, "/api/v1/files/{fileId}/download", http.StatusNotFound}, s.observer.requests[0])
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind simplemedia.ErrorKind
		want int
	}{
		{simplemedia.KindInvalidFileName, http.StatusBadRequest},
		{simplemedia.KindInvalidFileSize, http.StatusBadRequest},
		{simplemedia.KindInvalidContentType, http.StatusBadRequest},
		{simplemedia.KindInvalidStatusTransition, http.StatusBadRequest},
		{simplemedia.KindThumbnailNotAllowed, http.StatusBadRequest},
		{simplemedia.KindBadRequest, http.StatusBadRequest},
		{simplemedia.KindNotFound, http.StatusNotFound},
		{simplemedia.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, api.StatusForKind(tt.kind))
		})
	}
}
