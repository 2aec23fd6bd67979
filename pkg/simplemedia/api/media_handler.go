package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

// MediaHandler serves the authenticated media endpoints
type MediaHandler struct {
	service simplemedia.Service
}

func NewMediaHandler(service simplemedia.Service) *MediaHandler {
	return &MediaHandler{service: service}
}

// Routes returns the router for media endpoints. Callers must mount it
// behind Authenticator.
func (h *MediaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/uploads", h.RequestUploadURL)
	r.Get("/files", h.ListFiles)
	r.Get("/files/{fileId}/download", h.DownloadFile)
	return r
}

// UploadRequest is the body of POST /uploads
type UploadRequest struct {
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType"`
}

// FileResponse is one file in a listing
type FileResponse struct {
	ID           string `json:"id"`
	FileName     string `json:"fileName"`
	FileSize     int64  `json:"fileSize"`
	ContentType  string `json:"contentType"`
	OwnerID      string `json:"ownerId"`
	StorageKey   string `json:"storageKey"`
	ThumbnailKey string `json:"thumbnailKey,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// CursorResponse is the public pagination position
type CursorResponse struct {
	MediaID   string `json:"mediaId"`
	CreatedAt string `json:"createdAt"`
}

// ListFilesResponse is the body of GET /files
type ListFilesResponse struct {
	Files           []FileResponse  `json:"files"`
	NextCursor      *CursorResponse `json:"nextCursor"`
	NextCursorToken string          `json:"nextCursorToken,omitempty"`
}

// RequestUploadURL issues an upload URL for a new file
func (h *MediaHandler) RequestUploadURL(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r, "missing owner")
		return
	}

	var req UploadRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeBadRequest(w, r, "invalid request body")
		return
	}

	res, err := h.service.RequestUploadURL(r.Context(), simplemedia.RequestUploadURLRequest{
		OwnerID:     ownerID,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ContentType: req.ContentType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, res)
}

// ListFiles returns one page of the caller's files. The position is taken
// from the opaque cursor parameter when present, otherwise from
// lastMediaId and lastCreatedAt.
func (h *MediaHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r, "missing owner")
		return
	}

	q := r.URL.Query()
	req := simplemedia.ListFilesRequest{OwnerID: ownerID}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeBadRequest(w, r, "limit must be a non-negative integer")
			return
		}
		req.Limit = limit
	}

	if token := q.Get("cursor"); token != "" {
		c, err := simplemedia.DecodeCursor(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if c.OwnerID != ownerID {
			writeBadRequest(w, r, "cursor does not belong to caller")
			return
		}
		req.LastMediaID = &c.MediaID
		req.LastCreatedAt = &c.CreatedAt
	} else {
		if raw := q.Get("lastMediaId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeBadRequest(w, r, "lastMediaId must be a uuid")
				return
			}
			req.LastMediaID = &id
		}
		if raw := q.Get("lastCreatedAt"); raw != "" {
			at, err := simplemedia.ParseCursorTime(raw)
			if err != nil {
				writeBadRequest(w, r, "lastCreatedAt must be an RFC 3339 timestamp")
				return
			}
			req.LastCreatedAt = &at
		}
	}

	res, err := h.service.ListFiles(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := ListFilesResponse{Files: make([]FileResponse, 0, len(res.Files))}
	for _, m := range res.Files {
		resp.Files = append(resp.Files, toFileResponse(m))
	}
	if res.NextCursor != nil {
		resp.NextCursor = &CursorResponse{
			MediaID:   res.NextCursor.MediaID.String(),
			CreatedAt: formatTime(res.NextCursor.CreatedAt),
		}
		resp.NextCursorToken = res.NextCursor.Token(ownerID)
	}

	render.JSON(w, r, resp)
}

// DownloadFile issues a download URL for one of the caller's files
func (h *MediaHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r, "missing owner")
		return
	}

	fileID, err := uuid.Parse(chi.URLParam(r, "fileId"))
	if err != nil {
		writeBadRequest(w, r, "fileId must be a uuid")
		return
	}

	req := simplemedia.DownloadFileRequest{FileID: fileID, OwnerID: ownerID}
	if raw := r.URL.Query().Get("createdAt"); raw != "" {
		at, err := simplemedia.ParseCursorTime(raw)
		if err != nil {
			writeBadRequest(w, r, "createdAt must be an RFC 3339 timestamp")
			return
		}
		req.CreatedAt = at
	}

	res, err := h.service.DownloadFile(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, res)
}

func toFileResponse(m *simplemedia.Media) FileResponse {
	resp := FileResponse{
		ID:          m.ID().String(),
		FileName:    m.FileName().String(),
		FileSize:    m.FileSize().Bytes(),
		ContentType: m.ContentType().String(),
		OwnerID:     m.OwnerID().String(),
		StorageKey:  m.StorageKey().String(),
		Status:      m.Status().String(),
		CreatedAt:   formatTime(m.CreatedAt()),
		UpdatedAt:   formatTime(m.UpdatedAt()),
	}
	if key, ok := m.ThumbnailKey(); ok {
		resp.ThumbnailKey = key
	}
	return resp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(simplemedia.CursorTimeLayout)
}
