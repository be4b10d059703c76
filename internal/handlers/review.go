package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kekarecall/apiserver/internal/services"
)

// ReviewHandler provides HTTP handlers for the caller's reviews.
type ReviewHandler struct {
	reviewService *services.ReviewService
}

// NewReviewHandler constructs a handler with the provided service.
func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// ReviewRouter registers review routes on the given router. Every route
// requires an authenticated caller.
func ReviewRouter(r chi.Router, reviewService *services.ReviewService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewReviewHandler(reviewService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListReviews)
	r.Post("/", handler.CreateReview)
	r.Delete("/{reviewID}", handler.DeleteReview)
}

func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reviews, err := h.reviewService.List(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}

	writeJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input := services.CreateReviewInput{
		Topic: req.Topic,
		Date:  req.Date,
		Cycle: req.Cycle,
	}
	if req.LastInterval != nil {
		input.LastInterval = *req.LastInterval
	}

	created, err := h.reviewService.Create(r.Context(), identity, input)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			writeError(w, http.StatusBadRequest, "topic and date are required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create review")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseReviewID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "review not found")
		return
	}

	if err := h.reviewService.Delete(r.Context(), identity, id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete review")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "review deleted"})
}

// CreateReviewRequest is the JSON body of POST /api/reviews.
type CreateReviewRequest struct {
	Topic        string `json:"topic"`
	Date         string `json:"date"`
	Cycle        *int   `json:"cycle"`
	LastInterval *int   `json:"lastInterval"`
}

func parseReviewID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "reviewID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid review id")
	}
	return id, nil
}
