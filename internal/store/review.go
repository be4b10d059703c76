package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kekarecall/apiserver/types"
)

// ReviewRepository handles persistence for reviews. Every read and delete
// is filtered on the owning account.
type ReviewRepository struct {
	db *sqlx.DB
}

func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) ListByAccount(ctx context.Context, accountID int) ([]types.Review, error) {
	query := r.db.Rebind(`
		SELECT id, topic, date, cycle, last_interval, account_id, created_at
		FROM reviews
		WHERE account_id = ?
		ORDER BY id`)

	reviews := make([]types.Review, 0)
	if err := r.db.SelectContext(ctx, &reviews, query, accountID); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *ReviewRepository) Create(ctx context.Context, review types.Review) (types.Review, error) {
	review.CreatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		INSERT INTO reviews (topic, date, cycle, last_interval, account_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		review.Topic,
		review.Date,
		review.Cycle,
		review.LastInterval,
		review.AccountID,
		review.CreatedAt,
	).Scan(&review.ID); err != nil {
		return types.Review{}, err
	}
	return review, nil
}

// DeleteForAccount removes the review only when accountID owns it. A review
// owned by someone else is reported as ErrNotFound.
func (r *ReviewRepository) DeleteForAccount(ctx context.Context, id, accountID int) error {
	query := r.db.Rebind(`DELETE FROM reviews WHERE id = ? AND account_id = ?`)
	result, err := r.db.ExecContext(ctx, query, id, accountID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
