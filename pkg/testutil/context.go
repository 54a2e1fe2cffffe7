package testutil

import (
	"net/http"
	"time"

	"gatekeep/pkg/requestcontext"
)

// WithUserID stamps the request context with an authenticated user id,
// simulating what the auth middleware does.
func WithUserID(req *http.Request, userID int64) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithTime pins the request's logical clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
