package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"

	"parking-status-monitor/internal/model"
	"parking-status-monitor/internal/session"
	"parking-status-monitor/internal/status"
	"parking-status-monitor/internal/store"
)

// Authenticator exchanges credentials for an identity and token.
// Implemented by upstream.Client.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*model.User, string, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	sessions *session.Manager
	sync     *status.Synchronizer
	auth     Authenticator
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, sessions *session.Manager, sync *status.Synchronizer, auth Authenticator, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		sessions: sessions,
		sync:     sync,
		auth:     auth,
		webpush:  webpushOptions,
	}
}
