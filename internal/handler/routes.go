package handler

import (
	"net/http"
)

// Handlers groups the HTTP handlers served by the API
type Handlers struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Projects  *ProjectHandler
	Documents *DocumentHandler
	Metrics   http.Handler
}

// RegisterRoutes registers every route on mux (Go 1.22+ method patterns).
// protect wraps the routes that require a bearer token.
func RegisterRoutes(mux *http.ServeMux, h Handlers, protect func(http.Handler) http.Handler) {
	auth := func(fn http.HandlerFunc) http.Handler { return protect(fn) }

	// Public
	mux.HandleFunc("GET /health", HealthCheck)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	mux.HandleFunc("POST /auth", h.Auth.Register)
	mux.HandleFunc("POST /login", h.Auth.Login)

	// Account
	mux.Handle("GET /users/me", auth(h.Users.Me))
	mux.Handle("DELETE /users/me", auth(h.Users.DeleteMe))

	// Projects
	mux.Handle("GET /projects", auth(h.Projects.ListProjects))
	mux.Handle("POST /projects", auth(h.Projects.CreateProject))
	mux.Handle("GET /projects/{id}", auth(h.Projects.GetProject))
	mux.Handle("PUT /projects/{id}", auth(h.Projects.UpdateProject))
	mux.Handle("DELETE /projects/{id}", auth(h.Projects.DeleteProject))
	mux.Handle("POST /projects/{id}/invite", auth(h.Projects.InviteParticipant))

	// Documents
	mux.Handle("GET /projects/{id}/documents", auth(h.Documents.ListDocuments))
	mux.Handle("POST /projects/{id}/documents", auth(h.Documents.UploadDocument))
	mux.Handle("GET /projects/{id}/documents/{docID}", auth(h.Documents.GetDocument))
	mux.Handle("PUT /projects/{id}/documents/{docID}", auth(h.Documents.ReplaceDocument))
	mux.Handle("DELETE /projects/{id}/documents/{docID}", auth(h.Documents.DeleteDocument))
}
