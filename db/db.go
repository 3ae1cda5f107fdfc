package db

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/hirayaph/subasta-bot/models"
)

// Database wraps the SQL database connection
type Database struct {
	db *sql.DB
}

// NewDatabase initializes the database connection and schema
func NewDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Initialize database schema
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			telegram_user_id INTEGER PRIMARY KEY,
			market_user_id TEXT,
			access_token TEXT,
			refresh_token TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}

	return &Database{db: db}, nil
}

// SaveSession stores or replaces the marketplace login for a Telegram user
func (d *Database) SaveSession(s models.Session) error {
	now := time.Now()
	_, err := d.db.Exec(
		`INSERT INTO sessions (telegram_user_id, market_user_id, access_token, refresh_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(telegram_user_id) DO UPDATE SET
			market_user_id = excluded.market_user_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at`,
		s.TelegramUserID, s.MarketUserID, s.AccessToken, s.RefreshToken, now, now,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save session")
	}
	return nil
}

// GetSession retrieves the stored login for a Telegram user, or nil when the
// user has never logged in
func (d *Database) GetSession(telegramUserID int64) (*models.Session, error) {
	var s models.Session
	err := d.db.QueryRow(
		"SELECT telegram_user_id, market_user_id, access_token, refresh_token, created_at, updated_at FROM sessions WHERE telegram_user_id = ?",
		telegramUserID,
	).Scan(&s.TelegramUserID, &s.MarketUserID, &s.AccessToken, &s.RefreshToken, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch session")
	}
	return &s, nil
}

// DeleteSession removes a stored login
func (d *Database) DeleteSession(telegramUserID int64) error {
	_, err := d.db.Exec("DELETE FROM sessions WHERE telegram_user_id = ?", telegramUserID)
	if err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}
