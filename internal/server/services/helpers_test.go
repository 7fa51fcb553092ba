package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server/auth"
	"github.com/dmitrijs2005/ticketdesk/internal/server/config"
	"github.com/dmitrijs2005/ticketdesk/internal/server/mail"
	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret"
	testPassword = "correct horse"
	adminEmail   = "owner@example.com"
)

// fakeSender records messages and optionally fails.
type fakeSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) last(t *testing.T) mail.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no email sent")
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakePublisher records published event names.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) PublishTicketEvent(_ context.Context, event string, _ *models.Ticket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = testSecret
	cfg.AdminPassword = testPassword
	cfg.OTPRecipients = []string{adminEmail, "backup@example.com"}
	return cfg
}

func testTemplates(t *testing.T) *mail.Templates {
	t.Helper()
	tpl, err := mail.NewTemplates("Chohan Space")
	require.NoError(t, err)
	return tpl
}

func newAdminService(t *testing.T, cfg *config.Config, sender mail.Sender) (*AdminAuthService, *auth.Tokens) {
	t.Helper()
	tokens := auth.NewTokens(cfg.SecretKey)
	return NewAdminAuthService(cfg, tokens, sender, testTemplates(t), logging.Nop()), tokens
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
