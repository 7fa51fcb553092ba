package tickets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore"
	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
)

// Collection is the parent path of all ticket documents.
const Collection = "tickets"

type DocstoreRepository struct {
	store docstore.Store
	log   logging.Logger
}

var _ Repository = (*DocstoreRepository)(nil)

func NewDocstoreRepository(store docstore.Store, log logging.Logger) *DocstoreRepository {
	if log == nil {
		log = logging.Nop()
	}
	return &DocstoreRepository{store: store, log: log.With("module", "tickets-repo")}
}

func path(id string) string {
	return docstore.Join(Collection, id)
}

func (r *DocstoreRepository) Create(ctx context.Context, t *models.Ticket) error {
	if err := t.Validate(); err != nil {
		return err
	}
	err := r.store.Create(ctx, path(t.ID), t)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("%w: create ticket: %w", common.ErrorInternal, err)
	}
	return nil
}

func (r *DocstoreRepository) Get(ctx context.Context, id string) (*models.Ticket, error) {
	if !common.IsTicketID(id) {
		return nil, common.ErrorNotFound
	}
	t := &models.Ticket{}
	err := r.store.Get(ctx, path(id), t)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get ticket: %w", common.ErrorInternal, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.ID != id {
		return nil, fmt.Errorf("%w: ticket stored under %s claims id %s", common.ErrorInternal, id, t.ID)
	}
	return t, nil
}

func (r *DocstoreRepository) List(ctx context.Context) ([]*models.Ticket, error) {
	docs, err := r.store.List(ctx, Collection)
	if err != nil {
		return nil, fmt.Errorf("%w: list tickets: %w", common.ErrorInternal, err)
	}

	out := make([]*models.Ticket, 0, len(docs))
	for key, raw := range docs {
		t := &models.Ticket{}
		if err := docstore.Decode(raw, t); err != nil {
			r.log.Warn(ctx, "skipping undecodable ticket", "key", key, "error", err)
			continue
		}
		if err := t.Validate(); err != nil {
			r.log.Warn(ctx, "skipping corrupt ticket", "key", key, "error", err)
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *DocstoreRepository) Transition(ctx context.Context, id string, from models.TicketStatus, fields map[string]any) (bool, error) {
	if !common.IsTicketID(id) {
		return false, common.ErrorNotFound
	}
	ok, err := r.store.UpdateIf(ctx, path(id), "status", string(from), fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, common.ErrorNotFound
	}
	if err != nil {
		return false, fmt.Errorf("%w: transition ticket: %w", common.ErrorInternal, err)
	}
	return ok, nil
}

func (r *DocstoreRepository) Delete(ctx context.Context, id string) error {
	if !common.IsTicketID(id) {
		return nil
	}
	if err := r.store.Remove(ctx, path(id)); err != nil {
		return fmt.Errorf("%w: delete ticket: %w", common.ErrorInternal, err)
	}
	return nil
}
