package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server/auth"
	"github.com/dmitrijs2005/ticketdesk/internal/server/config"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore/memory"
	"github.com/dmitrijs2005/ticketdesk/internal/server/mail"
	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
	"github.com/dmitrijs2005/ticketdesk/internal/server/repositories/tickets"
	"github.com/dmitrijs2005/ticketdesk/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "correct horse"
	adminEmail   = "owner@example.com"
)

var otpPattern = regexp.MustCompile(`\b\d{6}\b`)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

// lastCode extracts the one-time code from the most recent email.
func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	code := otpPattern.FindString(f.sent[len(f.sent)-1].Text)
	require.NotEmpty(t, code, "no code in email")
	return code
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testEnv struct {
	router  http.Handler
	admin   *services.AdminAuthService
	tickets *services.TicketService
	mailer  *fakeSender
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	fake := &fakeSender{}
	env := newTestEnvWithSender(t, mutate, fake)
	env.mailer = fake
	return env
}

// newTestEnvWithSender wires the services to sender instead of the
// recording fake; env.mailer stays nil.
func newTestEnvWithSender(t *testing.T, mutate func(*config.Config), sender mail.Sender) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.AdminPassword = testPassword
	cfg.OTPRecipients = []string{adminEmail}
	if mutate != nil {
		mutate(cfg)
	}

	tpl, err := mail.NewTemplates(cfg.BrandName)
	require.NoError(t, err)

	env := &testEnv{}
	tokens := auth.NewTokens(cfg.SecretKey)
	env.admin = services.NewAdminAuthService(cfg, tokens, sender, tpl, logging.Nop())

	repo := tickets.NewDocstoreRepository(memory.New(), logging.Nop())
	env.tickets = services.NewTicketService(repo, env.admin, sender, tpl, nil, logging.Nop(), services.TicketOptions{
		AllowManualVerify: cfg.AllowManualVerify,
	})

	env.router = NewRouter(NewHandler(Options{
		Admin:   env.admin,
		Tickets: env.tickets,
		Store:   memory.New(),
		Log:     logging.Nop(),
	}))
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	s, err := e.admin.OperatorSession("test")
	require.NoError(t, err)
	return &http.Cookie{Name: common.AuthCookieName, Value: s.Token}
}

func (e *testEnv) newTicket(t *testing.T) *models.Ticket {
	t.Helper()
	s, err := e.admin.OperatorSession("test")
	require.NoError(t, err)
	tk, err := e.tickets.Create(context.Background(), s.Token)
	require.NoError(t, err)
	return tk
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
