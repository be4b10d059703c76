package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kekarecall/apiserver/internal/services"
)

// PageHandler serves the session-scoped routes shared by both auth modes.
type PageHandler struct {
	accountService *services.AccountService
	sessions       *Sessions
}

func NewPageHandler(accountService *services.AccountService, sessions *Sessions) *PageHandler {
	return &PageHandler{accountService: accountService, sessions: sessions}
}

// PageRouter registers the home and logout routes.
func PageRouter(r chi.Router, accountService *services.AccountService, sessions *Sessions) {
	handler := NewPageHandler(accountService, sessions)

	r.With(sessions.RequireSession).Get("/", handler.Home)
	r.Get("/logout", handler.Logout)
	r.With(sessions.RequireAuth).Get("/api/me", handler.Me)
}

// Home returns the signed-in account; anonymous visitors are sent to /login.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.writeAccount(w, r, func(w http.ResponseWriter, r *http.Request) {
		h.sessions.Clear(w)
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
	})
}

// Me returns the authenticated account.
func (h *PageHandler) Me(w http.ResponseWriter, r *http.Request) {
	h.writeAccount(w, r, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func (h *PageHandler) writeAccount(w http.ResponseWriter, r *http.Request, unauthorized http.HandlerFunc) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		unauthorized(w, r)
		return
	}

	account, err := h.accountService.Get(r.Context(), identity.AccountID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			unauthorized(w, r)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

// Logout clears the session and returns to the login page.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
