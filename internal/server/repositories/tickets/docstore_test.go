package tickets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore/memory"
	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	id1 = "cs-aaaaa-00001"
	id2 = "cs-aaaaa-00002"
)

func newRepo(t *testing.T) (*DocstoreRepository, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewDocstoreRepository(store, logging.Nop()), store
}

func pending(id string, created time.Time) *models.Ticket {
	return &models.Ticket{ID: id, Status: models.StatusPending, CreatedAt: created}
}

func TestCreateGet(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, pending(id1, created)))
	assert.ErrorIs(t, repo.Create(ctx, pending(id1, created)), ErrDuplicateID)

	got, err := repo.Get(ctx, id1)
	require.NoError(t, err)
	if diff := cmp.Diff(pending(id1, created), got); diff != "" {
		t.Fatalf("ticket mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, id1)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.Get(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_CorruptRecord(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tickets/"+id1, map[string]any{"id": id1, "status": "Open", "createdAt": time.Now()}))
	_, err := repo.Get(ctx, id1)
	assert.ErrorIs(t, err, common.ErrorInternal)

	require.NoError(t, store.Set(ctx, "tickets/"+id2, pending(id1, time.Now())))
	_, err = repo.Get(ctx, id2)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestGet_ShortIDGroups(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	const short = "cs-ab-1"

	require.NoError(t, repo.Create(ctx, pending(short, time.Now().UTC())))
	got, err := repo.Get(ctx, short)
	require.NoError(t, err)
	assert.Equal(t, short, got.ID)
}

func TestGet_CancelledWithoutReason(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Set(ctx, "tickets/"+id1, &models.Ticket{
		ID: id1, Status: models.StatusCancelled, CreatedAt: now, CancelledAt: &now,
	}))
	_, err := repo.Get(ctx, id1)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestList_NewestFirstSkipsCorrupt(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()
	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, pending(id1, t0)))
	require.NoError(t, repo.Create(ctx, pending(id2, t0.Add(time.Hour))))
	require.NoError(t, store.Set(ctx, "tickets/cs-bbbbb-00003", map[string]any{"id": "cs-bbbbb-00003"}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, id2, list[0].ID)
	assert.Equal(t, id1, list[1].ID)
}

func TestTransition(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, pending(id1, time.Now().UTC())))

	now := time.Now().UTC()
	ok, err := repo.Transition(ctx, id1, models.StatusPending, map[string]any{
		"status":             models.StatusCancelled,
		"cancelledAt":        now,
		"cancellationReason": "No longer needed, thanks",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Transition(ctx, id1, models.StatusPending, map[string]any{"status": models.StatusVerified})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	_, err = repo.Transition(ctx, id2, models.StatusPending, map[string]any{"status": models.StatusVerified})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, pending(id1, time.Now().UTC())))

	require.NoError(t, repo.Delete(ctx, id1))
	require.NoError(t, repo.Delete(ctx, id1))
	_, err := repo.Get(ctx, id1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

type failingStore struct {
	docstore.Store
}

func (failingStore) UpdateIf(context.Context, string, string, string, map[string]any) (bool, error) {
	return false, errors.New("io timeout")
}

func TestTransition_StoreError(t *testing.T) {
	repo := NewDocstoreRepository(failingStore{Store: memory.New()}, nil)
	_, err := repo.Transition(context.Background(), id1, models.StatusPending, map[string]any{"status": "x"})
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.ErrorContains(t, err, "io timeout")
}
