package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/kekarecall/apiserver/internal/services"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

const maxBodyBytes = 1 << 20

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges an operation without returning a record.
type MessageResponse struct {
	Message string `json:"message"`
}

// userIDFromContext reads the JWT subject stored by the session middleware.
func userIDFromContext(ctx context.Context) (int, error) {
	subject, ok := ctx.Value(contextSubjectKey).(string)
	if !ok {
		return 0, errors.New("missing subject")
	}
	id, err := strconv.Atoi(strings.TrimSpace(subject))
	if err != nil || id < 1 {
		return 0, errors.New("invalid subject")
	}
	return id, nil
}

// identityFromContext returns the caller attached by the session middleware.
func identityFromContext(ctx context.Context) (services.Identity, error) {
	id, err := userIDFromContext(ctx)
	if err != nil {
		return services.Identity{}, err
	}
	return services.Identity{AccountID: id}, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeForm fills the string fields named in dst from a JSON object body,
// or from url-encoded form fields when the request is not JSON.
func decodeForm(r *http.Request, dst map[string]*string) error {
	if isJSON(r) {
		raw := map[string]any{}
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
			return errors.New("invalid request")
		}
		for key, target := range dst {
			if value, ok := raw[key].(string); ok {
				*target = value
			}
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return errors.New("invalid request")
	}
	for key, target := range dst {
		*target = r.PostFormValue(key)
	}
	return nil
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
