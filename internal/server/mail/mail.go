// Package mail sends transactional email: login codes and ticket
// notifications.
package mail

import "context"

// Message is a single outgoing email with a plain-text body and an optional
// HTML alternative.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
