// Package tickets declares the ticket repository contract and its
// document-store implementation.
package tickets

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
)

// ErrDuplicateID is returned by Create when the ticket id is already taken.
var ErrDuplicateID = errors.New("ticket id already exists")

// Repository defines persistence operations for tickets.
type Repository interface {
	// Create stores a new ticket. It fails with ErrDuplicateID if a ticket
	// with the same id exists.
	Create(ctx context.Context, t *models.Ticket) error

	// Get returns the ticket with id, or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.Ticket, error)

	// List returns all tickets, newest first.
	List(ctx context.Context) ([]*models.Ticket, error)

	// Transition merges fields into the ticket only while its status is
	// still from. It reports whether the write happened.
	Transition(ctx context.Context, id string, from models.TicketStatus, fields map[string]any) (bool, error)

	// Delete removes the ticket. Deleting a missing ticket is not an error.
	Delete(ctx context.Context, id string) error
}
