package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/platform/httputil"
	"gatekeep/pkg/requestcontext"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	inventory *Service
	logger    *slog.Logger
}

func NewHandler(inventory *Service, logger *slog.Logger) *Handler {
	return &Handler{inventory: inventory, logger: logger}
}

// Register mounts the inventory routes; all of them require auth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/applications", h.handleListApplications)
	r.Post("/api/applications", h.handleCreateApplication)
	r.Put("/api/applications/{id}", h.handleUpdateApplication)
	r.Delete("/api/applications/{id}", h.handleDeleteApplication)
	r.Get("/api/applications/{id}/resources", h.handleListResourcesByApplication)
	r.Get("/api/resources", h.handleListResources)
	r.Post("/api/resources", h.handleCreateResource)
}

func (h *Handler) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.inventory.ListApplications(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	params, ok := httputil.Decode[ApplicationParams](w, r)
	if !ok {
		return
	}

	app, err := h.inventory.CreateApplication(r.Context(), requestcontext.UserID(r.Context()), params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	params, ok := httputil.Decode[ApplicationParams](w, r)
	if !ok {
		return
	}

	app, err := h.inventory.UpdateApplication(r.Context(), requestcontext.UserID(r.Context()), id, params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.inventory.DeleteApplication(r.Context(), requestcontext.UserID(r.Context()), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "application deleted"})
}

func (h *Handler) handleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.inventory.ListResources(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resources)
}

func (h *Handler) handleListResourcesByApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	resources, err := h.inventory.ListResourcesByApplication(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resources)
}

func (h *Handler) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	params, ok := httputil.Decode[ResourceParams](w, r)
	if !ok {
		return
	}

	resource, err := h.inventory.CreateResource(r.Context(), requestcontext.UserID(r.Context()), params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resource)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid id"))
		return 0, false
	}
	return id, true
}
