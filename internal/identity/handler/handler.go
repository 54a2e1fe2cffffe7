package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatekeep/internal/identity/models"
	identityservice "gatekeep/internal/identity/service"
	dErrors "gatekeep/pkg/domain-errors"
	"gatekeep/pkg/platform/httputil"
	"gatekeep/pkg/platform/middleware"
	"gatekeep/pkg/requestcontext"
)

// Service is the identity surface the handler needs.
type Service interface {
	Login(ctx context.Context, username, password string) (models.User, string, error)
	Logout(ctx context.Context, token string) error
	CreateUser(ctx context.Context, actorID int64, params identityservice.CreateUserParams) (models.User, error)
	ListUsers(ctx context.Context, actorID int64) ([]models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
}

type Handler struct {
	identity Service
	logger   *slog.Logger
}

func New(identity Service, logger *slog.Logger) *Handler {
	return &Handler{identity: identity, logger: logger}
}

// Register mounts the public auth routes. The authenticated routes are
// registered separately so the auth middleware can wrap them.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/auth/login", h.handleLogin)
	r.Post("/api/auth/logout", h.handleLogout)
}

// RegisterProtected mounts the routes that require a signed-in user.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/api/auth/me", h.handleMe)
	r.Get("/api/users", h.handleListUsers)
	r.Post("/api/users", h.handleCreateUser)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[loginRequest](w, r)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "username and password are required"))
		return
	}

	user, token, err := h.identity.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
		return
	}
	if err := h.identity.Logout(r.Context(), token); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.FindByID(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "unknown user"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.identity.ListUsers(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Email    string `json:"email"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[createUserRequest](w, r)
	if !ok {
		return
	}

	user, err := h.identity.CreateUser(r.Context(), requestcontext.UserID(r.Context()), identityservice.CreateUserParams{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Role:     models.Role(req.Role),
		Email:    req.Email,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}
