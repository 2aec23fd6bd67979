package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Error codes that do not come from simplemedia.ErrorKind.
const (
	CodeUnauthorized = "UNAUTHORIZED"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind simplemedia.ErrorKind) int {
	switch kind {
	case simplemedia.KindInvalidFileName,
		simplemedia.KindInvalidFileSize,
		simplemedia.KindInvalidContentType,
		simplemedia.KindInvalidStatusTransition,
		simplemedia.KindThumbnailNotAllowed,
		simplemedia.KindBadRequest:
		return http.StatusBadRequest
	case simplemedia.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an ErrorResponse. Internal details are logged,
// never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := simplemedia.KindOf(err)
	status := StatusForKind(kind)

	message := err.Error()
	var e *simplemedia.Error
	if errors.As(err, &e) && e.Message != "" {
		message = e.Message
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "err", err)
		kind = simplemedia.KindInternal
		message = "internal server error"
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: string(kind), Message: message})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: string(simplemedia.KindBadRequest), Message: message})
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, ErrorResponse{Error: CodeUnauthorized, Message: message})
}
