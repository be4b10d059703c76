package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kekarecall/apiserver/internal/services"
	"github.com/kekarecall/apiserver/types"
)

const (
	defaultTokenTTL   = 24 * time.Hour
	sessionCookieName = "session"
	loginPath         = "/login"
)

// Sessions issues and verifies signed session tokens. A token is accepted
// from the session cookie or from an Authorization: Bearer header.
type Sessions struct {
	secret   []byte
	tokenTTL time.Duration
	secure   bool
}

func NewSessions(secret string, ttl time.Duration, secureCookie bool) *Sessions {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Sessions{
		secret:   []byte(secret),
		tokenTTL: ttl,
		secure:   secureCookie,
	}
}

// Establish signs a token for the account and stores it in the session cookie.
func (s *Sessions) Establish(w http.ResponseWriter, accountID int) (string, error) {
	token, err := issueToken(accountID, s.secret, s.tokenTTL)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireAuth rejects unauthenticated API calls with 401.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := s.subject(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession redirects unauthenticated page requests to the login page.
func (s *Sessions) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := s.subject(r)
		if err != nil {
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Sessions) subject(r *http.Request) (string, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		cookie, cookieErr := r.Cookie(sessionCookieName)
		if cookieErr != nil || strings.TrimSpace(cookie.Value) == "" {
			return "", err
		}
		tokenString = cookie.Value
	}
	return parseTokenSubject(tokenString, s.secret)
}

// AuthHandler provides local-password authentication endpoints.
type AuthHandler struct {
	accountService *services.AccountService
	sessions       *Sessions
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(accountService *services.AccountService, sessions *Sessions) *AuthHandler {
	return &AuthHandler{
		accountService: accountService,
		sessions:       sessions,
	}
}

// PasswordAuthRouter registers the local-password routes on the given router.
func PasswordAuthRouter(r chi.Router, accountService *services.AccountService, sessions *Sessions) {
	handler := NewAuthHandler(accountService, sessions)

	r.Get("/login", handler.LoginInfo)
	r.Post("/login", handler.Login)
	r.Get("/register", handler.LoginInfo)
	r.Post("/register", handler.Register)
	r.With(sessions.RequireAuth).Post("/api/account/password", handler.ChangePassword)
}

// LoginInfo describes how to authenticate against this deployment.
func (h *AuthHandler) LoginInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LoginInfoResponse{
		AuthMode: "password",
		Login:    "/login",
		Register: "/register",
	})
}

// Register creates a new account and establishes a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeForm(r, map[string]*string{
		"name":     &req.Name,
		"email":    &req.Email,
		"password": &req.Password,
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.accountService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, "name, email and password are required")
		case errors.Is(err, services.ErrDuplicateAccount):
			writeError(w, http.StatusConflict, "email already registered")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create account")
		}
		return
	}

	token, err := h.sessions.Establish(w, account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, Account: newAccountResponse(account)})
}

// Login verifies credentials and establishes a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeForm(r, map[string]*string{
		"email":    &req.Email,
		"password": &req.Password,
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.accountService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredential) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	token, err := h.sessions.Establish(w, account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, Account: newAccountResponse(account)})
}

// ChangePassword replaces the caller's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.accountService.ChangePassword(r.Context(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, "new password is required")
		case errors.Is(err, services.ErrInvalidCredential):
			writeError(w, http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, services.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "unauthorized")
		default:
			writeError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "password updated"})
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type LoginInfoResponse struct {
	AuthMode string `json:"authMode"`
	Login    string `json:"login,omitempty"`
	Register string `json:"register,omitempty"`
	Connect  string `json:"connect,omitempty"`
}

type AccountResponse struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	CalendarConnected bool   `json:"calendarConnected"`
}

type AuthResponse struct {
	Token   string          `json:"token"`
	Account AccountResponse `json:"account"`
}

func newAccountResponse(account types.Account) AccountResponse {
	return AccountResponse{
		ID:                account.ID,
		Name:              account.Name,
		Email:             account.Email,
		CalendarConnected: account.HasCalendarAccess(),
	}
}

func issueToken(userID int, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
