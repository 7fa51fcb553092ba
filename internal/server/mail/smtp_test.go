package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

func validConfig() SMTPConfig {
	return SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		User:     "mailer",
		Password: "pw",
		From:     "noreply@example.com",
		FromName: "Chohan Space Assistant",
	}
}

func withDialAndSend(t *testing.T, fn func(ctx context.Context, c *gomail.Client, msgs ...*gomail.Msg) error) {
	t.Helper()
	orig := dialAndSend
	dialAndSend = fn
	t.Cleanup(func() { dialAndSend = orig })
}

func TestSend_Misconfigured(t *testing.T) {
	called := false
	withDialAndSend(t, func(context.Context, *gomail.Client, ...*gomail.Msg) error {
		called = true
		return nil
	})

	for _, mutate := range []func(*SMTPConfig){
		func(c *SMTPConfig) { c.Host = "" },
		func(c *SMTPConfig) { c.Port = 0 },
		func(c *SMTPConfig) { c.User = "" },
		func(c *SMTPConfig) { c.Password = "" },
		func(c *SMTPConfig) { c.From = "" },
	} {
		cfg := validConfig()
		mutate(&cfg)
		err := NewSMTPSender(cfg).Send(context.Background(), Message{To: "a@example.com", Subject: "s", Text: "t"})
		assert.ErrorIs(t, err, common.ErrServerMisconfigured)
	}
	assert.False(t, called)
}

func TestSend_Success(t *testing.T) {
	var got *gomail.Msg
	withDialAndSend(t, func(_ context.Context, _ *gomail.Client, msgs ...*gomail.Msg) error {
		require.Len(t, msgs, 1)
		got = msgs[0]
		return nil
	})

	err := NewSMTPSender(validConfig()).Send(context.Background(), Message{
		To: "client@example.com", Subject: "Hello", Text: "plain", HTML: "<p>html</p>",
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	rcpts, err := got.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"client@example.com"}, rcpts)
	assert.Equal(t, []string{"Hello"}, got.GetGenHeader(gomail.HeaderSubject))
	from := got.GetFromString()
	require.Len(t, from, 1)
	assert.Contains(t, from[0], "Chohan Space Assistant")
	assert.Contains(t, from[0], "noreply@example.com")
}

func TestSend_ImplicitTLSPort(t *testing.T) {
	withDialAndSend(t, func(context.Context, *gomail.Client, ...*gomail.Msg) error { return nil })

	cfg := validConfig()
	cfg.Port = 465
	require.NoError(t, NewSMTPSender(cfg).Send(context.Background(), Message{To: "a@example.com", Subject: "s", Text: "t"}))
}

func TestSend_TransportError(t *testing.T) {
	withDialAndSend(t, func(context.Context, *gomail.Client, ...*gomail.Msg) error {
		return errors.New("connection refused")
	})

	err := NewSMTPSender(validConfig()).Send(context.Background(), Message{To: "a@example.com", Subject: "s", Text: "t"})
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.ErrorContains(t, err, "connection refused")
}

func TestSend_InvalidMessage(t *testing.T) {
	withDialAndSend(t, func(context.Context, *gomail.Client, ...*gomail.Msg) error { return nil })
	s := NewSMTPSender(validConfig())

	assert.ErrorIs(t, s.Send(context.Background(), Message{Subject: "s", Text: "t"}), common.ErrInvalidInput)
	assert.ErrorIs(t, s.Send(context.Background(), Message{To: "not an address", Subject: "s", Text: "t"}), common.ErrInvalidInput)
}
