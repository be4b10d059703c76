package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kekarecall/apiserver/config"
	"github.com/kekarecall/apiserver/internal/calendar"
	"github.com/kekarecall/apiserver/internal/db"
	"github.com/kekarecall/apiserver/internal/logging"
	"github.com/kekarecall/apiserver/internal/store"
	"github.com/kekarecall/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingNotifier struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (n *recordingNotifier) Notify(_ context.Context, account types.Account, topic, isoDate string, cycle int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, fmt.Sprintf("%d|%s|%s|%d", account.ID, topic, isoDate, cycle))
	return n.err
}

type fixture struct {
	accounts *AccountService
	reviews  *ReviewService
	repo     *store.AccountRepository
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := config.DatabaseConfig{SQLitePath: ":memory:"}
	conn, err := db.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.Migrate(conn, cfg))

	accountRepo := store.NewAccountRepository(conn)
	accounts := NewAccountService(accountRepo)
	accounts.hashCost = bcrypt.MinCost

	notifier := &recordingNotifier{}
	reviews := NewReviewService(store.NewReviewRepository(conn), accountRepo, notifier, logging.Discard(), 0)

	return fixture{accounts: accounts, reviews: reviews, repo: accountRepo, notifier: notifier}
}

func intPtr(v int) *int { return &v }

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.accounts.Register(ctx, "Ana", "ana@example.com", "first-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "first-pass", first.PasswordHash)

	_, err = f.accounts.Register(ctx, "Impostor", "ANA@example.com ", "second-pass")
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	stored, err := f.repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.PasswordHash, stored.PasswordHash)
	assert.Equal(t, "Ana", stored.Name)

	_, err = f.accounts.Login(ctx, "ana@example.com", "first-pass")
	assert.NoError(t, err)
	_, err = f.accounts.Login(ctx, "ana@example.com", "second-pass")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.accounts.Register(context.Background(), "", "a@b.c", "x")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.accounts.Register(context.Background(), "A", "a@b.c", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Register(ctx, "Ana", "ana@example.com", "pw")
	require.NoError(t, err)

	_, unknownErr := f.accounts.Login(ctx, "nobody@example.com", "pw")
	_, wrongErr := f.accounts.Login(ctx, "ana@example.com", "nope")
	assert.ErrorIs(t, unknownErr, ErrInvalidCredential)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredential)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestChangePasswordInvalidatesOldPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account, err := f.accounts.Register(ctx, "Ana", "ana@example.com", "old-pass")
	require.NoError(t, err)
	id := Identity{AccountID: account.ID}

	assert.ErrorIs(t, f.accounts.ChangePassword(ctx, id, "wrong", "new-pass"), ErrInvalidCredential)
	require.NoError(t, f.accounts.ChangePassword(ctx, id, "old-pass", "new-pass"))

	_, err = f.accounts.Login(ctx, "ana@example.com", "old-pass")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	_, err = f.accounts.Login(ctx, "ana@example.com", "new-pass")
	assert.NoError(t, err)

	assert.ErrorIs(t, f.accounts.ChangePassword(ctx, Identity{}, "new-pass", "x"), ErrUnauthenticated)
}

func TestLinkExternalCreatesThenUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.accounts.LinkExternal(ctx, ExternalProfile{Email: "bia@example.com", Name: "Bia"}, `{"access_token":"one"}`)
	require.NoError(t, err)
	assert.True(t, created.HasCalendarAccess())

	updated, err := f.accounts.LinkExternal(ctx, ExternalProfile{Email: "bia@example.com", Name: "Bia"}, `{"access_token":"two"}`)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	stored, err := f.repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"two"}`, stored.CalendarToken)

	// Provider-only accounts cannot log in with a password.
	_, err = f.accounts.Login(ctx, "bia@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = f.accounts.LinkExternal(ctx, ExternalProfile{Name: "No Email"}, "{}")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReviewsAreScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owners := make([]Identity, 3)
	for i := range owners {
		account, err := f.accounts.Register(ctx, fmt.Sprintf("User %d", i), fmt.Sprintf("u%d@example.com", i), "pw")
		require.NoError(t, err)
		owners[i] = Identity{AccountID: account.ID}
	}

	want := map[int][]int{}
	for i := 0; i < 9; i++ {
		owner := owners[i%len(owners)]
		created, err := f.reviews.Create(ctx, owner, CreateReviewInput{
			Topic: fmt.Sprintf("Topic %d", i),
			Date:  "2024-05-01T10:00:00Z",
			Cycle: intPtr(i),
		})
		require.NoError(t, err)
		want[owner.AccountID] = append(want[owner.AccountID], created.ID)
	}

	for _, owner := range owners {
		list, err := f.reviews.List(ctx, owner)
		require.NoError(t, err)
		var got []int
		for _, r := range list {
			assert.Equal(t, owner.AccountID, r.AccountID)
			got = append(got, r.ID)
		}
		assert.Equal(t, want[owner.AccountID], got)
	}
}

func TestCreateThenListPreservesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account, err := f.accounts.Register(ctx, "Ana", "ana@example.com", "pw")
	require.NoError(t, err)
	id := Identity{AccountID: account.ID}

	created, err := f.reviews.Create(ctx, id, CreateReviewInput{Topic: "Pharmacology", Date: "2024-05-01T10:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, 1, created.Cycle)
	assert.Equal(t, 0, created.LastInterval)

	list, err := f.reviews.List(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, "Pharmacology", list[0].Topic)
	assert.Equal(t, "2024-05-01T10:00:00Z", list[0].Date)
	assert.Equal(t, 1, list[0].Cycle)
	assert.Equal(t, 0, list[0].LastInterval)

	assert.Equal(t, []string{fmt.Sprintf("%d|Pharmacology|2024-05-01T10:00:00Z|1", account.ID)}, f.notifier.calls)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account, err := f.accounts.Register(ctx, "Ana", "ana@example.com", "pw")
	require.NoError(t, err)
	id := Identity{AccountID: account.ID}

	_, err = f.reviews.Create(ctx, id, CreateReviewInput{Date: "2024-05-01"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.reviews.Create(ctx, id, CreateReviewInput{Topic: "Anatomy", Date: "  "})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.reviews.Create(ctx, Identity{}, CreateReviewInput{Topic: "Anatomy", Date: "2024-05-01"})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.Empty(t, f.notifier.calls)
}

func TestCreateSucceedsWhenNotifierFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account, err := f.accounts.Register(ctx, "Ana", "ana@example.com", "pw")
	require.NoError(t, err)
	id := Identity{AccountID: account.ID}

	f.notifier.err = errors.New("calendar api: 503")
	created, err := f.reviews.Create(ctx, id, CreateReviewInput{Topic: "Anatomy", Date: "2024-05-01", Cycle: intPtr(2), LastInterval: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, created.LastInterval)

	f.notifier.err = calendar.ErrNoCredential
	_, err = f.reviews.Create(ctx, id, CreateReviewInput{Topic: "Histology", Date: "2024-05-02"})
	require.NoError(t, err)

	list, err := f.reviews.List(ctx, id)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Len(t, f.notifier.calls, 2)
}

func TestDeleteForeignReviewIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.accounts.Register(ctx, "A", "a@example.com", "pw")
	require.NoError(t, err)
	b, err := f.accounts.Register(ctx, "B", "b@example.com", "pw")
	require.NoError(t, err)
	idA, idB := Identity{AccountID: a.ID}, Identity{AccountID: b.ID}

	review, err := f.reviews.Create(ctx, idB, CreateReviewInput{Topic: "Owned by B", Date: "2024-05-01"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.reviews.Delete(ctx, idA, review.ID), ErrNotFound)
	assert.ErrorIs(t, f.reviews.Delete(ctx, idA, 9999), ErrNotFound)

	listB, err := f.reviews.List(ctx, idB)
	require.NoError(t, err)
	assert.Len(t, listB, 1)

	require.NoError(t, f.reviews.Delete(ctx, idB, review.ID))
	listB, err = f.reviews.List(ctx, idB)
	require.NoError(t, err)
	assert.Empty(t, listB)
}

type blockingNotifier struct {
	done chan error
}

func (n *blockingNotifier) Notify(ctx context.Context, _ types.Account, _, _ string, _ int) error {
	<-ctx.Done()
	n.done <- ctx.Err()
	return ctx.Err()
}

func TestCreateReviewBoundsNotifierCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account, err := f.accounts.Register(ctx, "Ana", "ana@example.com", "pw")
	require.NoError(t, err)

	notifier := &blockingNotifier{done: make(chan error, 1)}
	reviews := NewReviewService(f.reviews.repo, f.repo, notifier, logging.Discard(), 50*time.Millisecond)

	start := time.Now()
	created, err := reviews.Create(ctx, Identity{AccountID: account.ID}, CreateReviewInput{
		Topic: "Pharmacology",
		Date:  "2024-05-01T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, "Pharmacology", created.Topic)
	assert.NotZero(t, created.ID)

	select {
	case notifyErr := <-notifier.done:
		assert.ErrorIs(t, notifyErr, context.DeadlineExceeded)
	default:
		t.Fatal("notifier was not called")
	}
}
