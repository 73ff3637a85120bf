package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/goalkeeper/internal/auth"
	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
	"github.com/dmitrijs2005/goalkeeper/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.Storage = config.StorageMemory
	c.EndpointAddrGRPC = "127.0.0.1:0"
	return c
}

func TestIssueToken(t *testing.T) {
	now := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	tok, err := IssueToken(memoryConfig(), "owner-7", now)
	require.NoError(t, err)

	owner, err := auth.OwnerFromToken(tok, []byte("secretKey"), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "owner-7", owner)

	_, err = auth.OwnerFromToken(tok, []byte("secretKey"), now.Add(25*time.Hour))
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	app, err := newApp(context.Background(), memoryConfig(), logging.NopLogger{}, clock.Real())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewApp_PostgresOpenError(t *testing.T) {
	orig := openDatabase
	openDatabase = func(string) (*sql.DB, error) { return nil, errors.New("no driver") }
	defer func() { openDatabase = orig }()

	c := memoryConfig()
	c.Storage = config.StoragePostgres

	_, err := newApp(context.Background(), c, logging.NopLogger{}, clock.Real())
	assert.ErrorContains(t, err, "db init error")
}

func TestNewApp_PostgresMigrationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)

	orig := openDatabase
	openDatabase = func(string) (*sql.DB, error) { return db, nil }
	defer func() { openDatabase = orig }()

	c := memoryConfig()
	c.Storage = config.StoragePostgres

	_, err = newApp(context.Background(), c, logging.NopLogger{}, clock.Real())
	assert.ErrorContains(t, err, "migrations error")
}
