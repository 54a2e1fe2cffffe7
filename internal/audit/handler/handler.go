package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"gatekeep/internal/audit"
	"gatekeep/pkg/platform/httputil"
	"gatekeep/pkg/requestcontext"
)

// Trail is the audit read surface the handler needs.
type Trail interface {
	ListVisibleTo(ctx context.Context, viewerID int64, limit int) ([]audit.Entry, error)
}

type Handler struct {
	trail  Trail
	logger *slog.Logger
}

func New(trail Trail, logger *slog.Logger) *Handler {
	return &Handler{trail: trail, logger: logger}
}

// Register mounts the audit routes; all of them require auth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/audit-logs", h.handleList)
}

// entryView adds a human-readable device string derived from the recorded
// User-Agent.
type entryView struct {
	audit.Entry
	Device string `json:"device,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.trail.ListVisibleTo(r.Context(), requestcontext.UserID(r.Context()), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views := make([]entryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, entryView{Entry: entry, Device: describeDevice(entry.UserAgent)})
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func describeDevice(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	default:
		return os
	}
}
