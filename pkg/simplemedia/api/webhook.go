package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/notification"
)

// maxNotificationBytes bounds a single event document
const maxNotificationBytes = 1 << 20

// WebhookHandler receives bucket notifications pushed over HTTP. The
// response status tells the sender whether to redeliver: 2xx for handled or
// permanently failed records, 5xx for retryable failures.
type WebhookHandler struct {
	notifications *notification.Handler
	token         string
}

func NewWebhookHandler(notifications *notification.Handler, token string) *WebhookHandler {
	return &WebhookHandler{notifications: notifications, token: token}
}

func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(SharedTokenMiddleware(h.token))
	r.Post("/s3", h.HandleS3Event)
	return r
}

func (h *WebhookHandler) HandleS3Event(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		writeBadRequest(w, r, "failed to read notification body")
		return
	}

	err = h.notifications.Handle(r.Context(), body)
	switch {
	case err == nil:
		render.NoContent(w, r)
	case notification.Retryable(err):
		writeError(w, r, err)
	case errors.Is(err, simplemedia.ErrBadRequest):
		writeError(w, r, err)
	default:
		render.NoContent(w, r)
	}
}
