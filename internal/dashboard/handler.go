// Package dashboard aggregates counts from the lifecycle services into the
// stats payload the operations overview polls.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatekeep/pkg/platform/httputil"
)

// ActiveSessionCounter reports the number of live sessions.
type ActiveSessionCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// PendingRequestCounter reports the size of the approval queue.
type PendingRequestCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// ApplicationCounter reports the catalog size.
type ApplicationCounter interface {
	CountApplications(ctx context.Context) (int, error)
}

type Handler struct {
	sessions     ActiveSessionCounter
	requests     PendingRequestCounter
	applications ApplicationCounter
	logger       *slog.Logger
}

func New(sessions ActiveSessionCounter, requests PendingRequestCounter, applications ApplicationCounter, logger *slog.Logger) *Handler {
	return &Handler{
		sessions:     sessions,
		requests:     requests,
		applications: applications,
		logger:       logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/dashboard/stats", h.handleStats)
}

type stats struct {
	ActiveSessions  int `json:"activeSessions"`
	PendingRequests int `json:"pendingRequests"`
	Applications    int `json:"applications"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	activeSessions, err := h.sessions.CountActive(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pendingRequests, err := h.requests.CountPending(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	applications, err := h.applications.CountApplications(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats{
		ActiveSessions:  activeSessions,
		PendingRequests: pendingRequests,
		Applications:    applications,
	})
}
