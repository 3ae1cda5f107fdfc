package db

import (
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirayaph/subasta-bot/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	database, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSessionRoundTrip(t *testing.T) {
	database := newTestDatabase(t)

	require.NoError(t, database.SaveSession(models.Session{
		TelegramUserID: 42,
		MarketUserID:   "user-1",
		AccessToken:    "access",
		RefreshToken:   "refresh",
	}))

	s, err := database.GetSession(42)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, int64(42), s.TelegramUserID)
	assert.Equal(t, "user-1", s.MarketUserID)
	assert.Equal(t, "access", s.AccessToken)
	assert.Equal(t, "refresh", s.RefreshToken)
}

func TestSaveSessionReplacesTokens(t *testing.T) {
	database := newTestDatabase(t)

	require.NoError(t, database.SaveSession(models.Session{TelegramUserID: 42, MarketUserID: "user-1", AccessToken: "old"}))
	require.NoError(t, database.SaveSession(models.Session{TelegramUserID: 42, MarketUserID: "user-1", AccessToken: "new"}))

	s, err := database.GetSession(42)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "new", s.AccessToken)
}

func TestGetSessionMissing(t *testing.T) {
	database := newTestDatabase(t)

	s, err := database.GetSession(999)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestDeleteSession(t *testing.T) {
	database := newTestDatabase(t)

	require.NoError(t, database.SaveSession(models.Session{TelegramUserID: 42}))
	require.NoError(t, database.DeleteSession(42))

	s, err := database.GetSession(42)
	require.NoError(t, err)
	assert.Nil(t, s)
}
