package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gatekeep/internal/request/models"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/platform/httputil"
	"gatekeep/pkg/requestcontext"
)

// Service is the request-lifecycle surface the handler needs.
type Service interface {
	Submit(ctx context.Context, userID, applicationID, resourceID int64, accessType models.AccessType, durationMinutes int, justification string) (models.AccessRequest, error)
	Approve(ctx context.Context, requestID, approverID int64, durationMinutes int) (models.AccessRequest, error)
	Reject(ctx context.Context, requestID, approverID int64) (models.AccessRequest, error)
	ListVisibleTo(ctx context.Context, viewerID int64) ([]models.AccessRequest, error)
	ListPending(ctx context.Context, viewerID int64) ([]models.AccessRequest, error)
}

type Handler struct {
	requests Service
	logger   *slog.Logger
}

func New(requests Service, logger *slog.Logger) *Handler {
	return &Handler{requests: requests, logger: logger}
}

// Register mounts the access-request routes; all of them require auth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/access-requests", h.handleList)
	r.Get("/api/access-requests/pending", h.handleListPending)
	r.Post("/api/access-requests", h.handleSubmit)
	r.Post("/api/access-requests/{id}/approve", h.handleApprove)
	r.Post("/api/access-requests/{id}/reject", h.handleReject)
}

type submitRequest struct {
	ApplicationID int64  `json:"applicationId"`
	ResourceID    int64  `json:"resourceId"`
	AccessType    string `json:"accessType"`
	Duration      int    `json:"duration"`
	Justification string `json:"justification"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[submitRequest](w, r)
	if !ok {
		return
	}

	request, err := h.requests.Submit(r.Context(), requestcontext.UserID(r.Context()),
		req.ApplicationID, req.ResourceID, models.AccessType(req.AccessType), req.Duration, req.Justification)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, request)
}

type decisionRequest struct {
	Duration int `json:"duration"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// The body is optional; an empty body means no duration override.
	var override int
	if r.ContentLength > 0 {
		req, ok := httputil.Decode[decisionRequest](w, r)
		if !ok {
			return
		}
		override = req.Duration
	}

	request, err := h.requests.Approve(r.Context(), id, requestcontext.UserID(r.Context()), override)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, request)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	request, err := h.requests.Reject(r.Context(), id, requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, request)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.ListVisibleTo(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requests)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.ListPending(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requests)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid id"))
		return 0, false
	}
	return id, true
}
