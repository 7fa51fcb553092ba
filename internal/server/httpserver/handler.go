// Package httpserver exposes the ticket and admin-auth services over HTTP
// using gin.
package httpserver

import (
	"context"

	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server/services"
)

// Pinger reports backend readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the handler to its services.
type Options struct {
	Admin   *services.AdminAuthService
	Tickets *services.TicketService
	Store   Pinger
	Log     logging.Logger

	// SecureCookies sets the Secure attribute on the session cookie.
	SecureCookies bool
}

// Handler holds the gin handlers for every route.
type Handler struct {
	admin         *services.AdminAuthService
	tickets       *services.TicketService
	store         Pinger
	log           logging.Logger
	secureCookies bool
}

func NewHandler(opts Options) *Handler {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		admin:         opts.Admin,
		tickets:       opts.Tickets,
		store:         opts.Store,
		log:           log.With("module", "http"),
		secureCookies: opts.SecureCookies,
	}
}
