package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/notification"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Service simplemedia.Service
	JWTAuth *jwtauth.JWTAuth
	// Notifications enables the webhook when set.
	Notifications *notification.Handler
	WebhookToken  string
	// Metrics is optional.
	Metrics HTTPObserver
}

// Mount registers the media API under /api/v1 and the notification webhook
// under /internal/notifications on r.
func Mount(r chi.Router, cfg RouterConfig) {
	if cfg.Metrics != nil {
		r = r.With(Metrics(cfg.Metrics))
	}

	media := NewMediaHandler(cfg.Service)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jwtauth.Verifier(cfg.JWTAuth))
		r.Use(Authenticator)
		r.Mount("/", media.Routes())
	})

	if cfg.Notifications != nil {
		webhook := NewWebhookHandler(cfg.Notifications, cfg.WebhookToken)
		r.Mount("/internal/notifications", webhook.Routes())
	}
}
