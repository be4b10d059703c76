package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kekarecall/apiserver/internal/calendar"
	"github.com/kekarecall/apiserver/internal/store"
	"github.com/kekarecall/apiserver/types"
)

const (
	defaultCycle         = 1
	defaultNotifyTimeout = 10 * time.Second
)

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	ListByAccount(ctx context.Context, accountID int) ([]types.Review, error)
	Create(ctx context.Context, review types.Review) (types.Review, error)
	DeleteForAccount(ctx context.Context, id, accountID int) error
}

// AccountReader loads the account whose calendar receives reminders.
type AccountReader interface {
	GetByID(ctx context.Context, id int) (types.Account, error)
}

// CreateReviewInput carries the client-supplied review fields. A nil Cycle
// defaults to 1.
type CreateReviewInput struct {
	Topic        string
	Date         string
	Cycle        *int
	LastInterval int
}

// ReviewService encapsulates review use-cases. Every operation is scoped to
// the caller's identity.
type ReviewService struct {
	repo          ReviewRepository
	accounts      AccountReader
	notifier      calendar.Notifier
	logger        *slog.Logger
	notifyTimeout time.Duration
}

func NewReviewService(
	repo ReviewRepository,
	accounts AccountReader,
	notifier calendar.Notifier,
	logger *slog.Logger,
	notifyTimeout time.Duration,
) *ReviewService {
	if notifier == nil {
		notifier = calendar.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &ReviewService{
		repo:          repo,
		accounts:      accounts,
		notifier:      notifier,
		logger:        logger,
		notifyTimeout: notifyTimeout,
	}
}

func (s *ReviewService) List(ctx context.Context, identity Identity) ([]types.Review, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	return s.repo.ListByAccount(ctx, identity.AccountID)
}

// Create persists the review and then tries to put a reminder on the
// owner's calendar. Notification failures are logged, never returned.
func (s *ReviewService) Create(ctx context.Context, identity Identity, input CreateReviewInput) (types.Review, error) {
	if err := requireIdentity(identity); err != nil {
		return types.Review{}, err
	}

	var missing []string
	if strings.TrimSpace(input.Topic) == "" {
		missing = append(missing, "topic")
	}
	if strings.TrimSpace(input.Date) == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return types.Review{}, fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, " and "))
	}

	cycle := defaultCycle
	if input.Cycle != nil {
		cycle = *input.Cycle
	}

	created, err := s.repo.Create(ctx, types.Review{
		Topic:        input.Topic,
		Date:         input.Date,
		Cycle:        cycle,
		LastInterval: input.LastInterval,
		AccountID:    identity.AccountID,
	})
	if err != nil {
		return types.Review{}, fmt.Errorf("create review: %w", err)
	}

	s.notify(ctx, created)
	return created, nil
}

func (s *ReviewService) Delete(ctx context.Context, identity Identity, id int) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}
	if err := s.repo.DeleteForAccount(ctx, id, identity.AccountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

func (s *ReviewService) notify(ctx context.Context, review types.Review) {
	logger := s.logger.With("account_id", review.AccountID, "review_id", review.ID)

	account, err := s.accounts.GetByID(ctx, review.AccountID)
	if err != nil {
		logger.WarnContext(ctx, "calendar reminder skipped: load account", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	err = s.notifier.Notify(ctx, account, review.Topic, review.Date, review.Cycle)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "calendar reminder created")
	case errors.Is(err, calendar.ErrNoCredential):
		logger.DebugContext(ctx, "calendar reminder skipped: no credential")
	default:
		logger.WarnContext(ctx, "calendar reminder failed", "error", err)
	}
}
