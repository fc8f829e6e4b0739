package handler

import (
	"log/slog"
	"net/http"

	"projecthub/internal/domain/models"
	"projecthub/internal/domain/services"
	"projecthub/internal/httputil"
)

// AuthHandler handles registration and login
type AuthHandler struct {
	accounts services.AccountService
	logger   *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts services.AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logger:   logger,
	}
}

type registerResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

// Register creates an account
// POST /auth
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if httputil.IsJSON(r) {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		if err := httputil.ParseForm(w, r); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid form body")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
		req.RepeatPassword = r.PostFormValue("repeat_password")
	}

	user, err := h.accounts.Register(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, registerResponse{
		Message: "user created",
		User:    user,
	})
}

// Login exchanges credentials for a bearer token. Accepts a JSON body or an
// OAuth2-style password form.
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if httputil.IsJSON(r) {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		if err := httputil.ParseForm(w, r); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "Invalid form body")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	}

	token, err := h.accounts.Login(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, token)
}
