package server

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/dmitrijs2005/ticketdesk/internal/server/config"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore/memory"
	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore/sqlstore"
	"github.com/dmitrijs2005/ticketdesk/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.HTTPAddr = "127.0.0.1:0"
	c.SecretKey = "app-secret"
	c.AdminPassword = "pw"
	return c
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	c := testConfig()
	s, err := OpenStore(ctx, c)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)

	c.StoreDriver = config.StoreSQLite
	c.DatabaseDSN = filepath.Join(t.TempDir(), "tickets.db")
	s, err = OpenStore(ctx, c)
	require.NoError(t, err)
	assert.IsType(t, &sqlstore.Store{}, s)
	require.NoError(t, MigrateStore(ctx, s))
	require.NoError(t, s.Close())

	c.StoreDriver = "floppy"
	_, err = OpenStore(ctx, c)
	assert.Error(t, err)
}

func TestNewApp_RejectsInvalidConfig(t *testing.T) {
	c := testConfig()
	c.StoreDriver = "floppy"

	_, err := NewApp(context.Background(), c, logging.Nop())
	assert.Error(t, err)
}

func TestNewApp_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	c := testConfig()
	c.StoreDriver = config.StoreSQLite
	c.DatabaseDSN = filepath.Join(t.TempDir(), "tickets.db")

	app, err := NewApp(ctx, c, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	session, err := app.Admin().OperatorSession("test")
	require.NoError(t, err)

	tk, err := app.Tickets().Create(ctx, session.Token)
	require.NoError(t, err)

	got, err := app.Tickets().Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), NewLogger(testConfig(), io.Discard))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
