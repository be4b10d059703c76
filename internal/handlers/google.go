package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kekarecall/apiserver/internal/calendar"
	"github.com/kekarecall/apiserver/internal/identity"
	"github.com/kekarecall/apiserver/internal/services"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 10 * time.Minute
	callbackPath    = "/google/callback"
)

// GoogleHandler runs the delegated sign-in flow: redirect to Google, then
// exchange the callback code, link the account and establish a session.
type GoogleHandler struct {
	provider       identity.Provider
	accountService *services.AccountService
	sessions       *Sessions
	logger         *slog.Logger
}

func NewGoogleHandler(
	provider identity.Provider,
	accountService *services.AccountService,
	sessions *Sessions,
	logger *slog.Logger,
) *GoogleHandler {
	return &GoogleHandler{
		provider:       provider,
		accountService: accountService,
		sessions:       sessions,
		logger:         logger,
	}
}

// GoogleAuthRouter registers the delegated-identity routes.
func GoogleAuthRouter(
	r chi.Router,
	provider identity.Provider,
	accountService *services.AccountService,
	sessions *Sessions,
	logger *slog.Logger,
) {
	handler := NewGoogleHandler(provider, accountService, sessions, logger)

	r.Get("/login", handler.LoginInfo)
	r.Get("/connect-google", handler.Connect)
	r.Get("/auth/google", handler.Connect)
	r.Get(callbackPath, handler.Callback)
}

// LoginInfo sends browsers straight to Google; API clients get a descriptor.
func (h *GoogleHandler) LoginInfo(w http.ResponseWriter, r *http.Request) {
	if isJSON(r) || r.Header.Get("Accept") == "application/json" {
		writeJSON(w, http.StatusOK, LoginInfoResponse{AuthMode: "google", Connect: "/connect-google"})
		return
	}
	http.Redirect(w, r, "/connect-google", http.StatusSeeOther)
}

func (h *GoogleHandler) Connect(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     callbackPath,
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

func (h *GoogleHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(query.Get("state"))) != 1 {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: callbackPath, MaxAge: -1})

	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.WarnContext(r.Context(), "google authorization denied", "error", providerErr)
		writeError(w, http.StatusBadGateway, "google sign-in failed: "+providerErr)
		return
	}
	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.WarnContext(r.Context(), "google token exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "google sign-in failed")
		return
	}
	profile, err := h.provider.Profile(r.Context(), token)
	if err != nil {
		h.logger.WarnContext(r.Context(), "google profile fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "google sign-in failed")
		return
	}

	blob, err := calendar.EncodeToken(token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}

	account, err := h.accountService.LinkExternal(r.Context(), profile, blob)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			writeError(w, http.StatusBadGateway, "google profile has no email")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to link account")
		return
	}

	if _, err := h.sessions.Establish(w, account.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
