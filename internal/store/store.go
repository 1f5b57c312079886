package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite access for the persisted OAuth token and the source
// file registry.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS oauth_token (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			username TEXT,
			access_token TEXT,
			refresh_token TEXT,
			expires_at TIMESTAMP,
			updated_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS sources (
			key TEXT PRIMARY KEY,
			path TEXT,
			updated_at TIMESTAMP
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Token is the persisted OAuth state for the dispatch service.
type Token struct {
	Username     string    `json:"username"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SaveToken upserts the single token row. A blank username keeps the
// previously stored one so a token refresh does not lose who logged in.
func (s *Store) SaveToken(ctx context.Context, t Token) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO oauth_token(id, username, access_token, refresh_token, expires_at, updated_at)
		VALUES(1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username=CASE WHEN excluded.username='' THEN oauth_token.username ELSE excluded.username END,
			access_token=excluded.access_token,
			refresh_token=excluded.refresh_token,
			expires_at=excluded.expires_at,
			updated_at=excluded.updated_at`,
		t.Username, t.AccessToken, t.RefreshToken, t.ExpiresAt.UTC(), now)
	return err
}

// LoadToken returns the stored token, or false when none was saved.
func (s *Store) LoadToken(ctx context.Context) (Token, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT username, access_token, refresh_token, expires_at FROM oauth_token WHERE id=1`)
	var t Token
	var username, access, refresh sql.NullString
	var expires sql.NullTime
	switch err := row.Scan(&username, &access, &refresh, &expires); err {
	case nil:
		t.Username = username.String
		t.AccessToken = access.String
		t.RefreshToken = refresh.String
		if expires.Valid {
			t.ExpiresAt = expires.Time
		}
		return t, t.AccessToken != "", nil
	case sql.ErrNoRows:
		return Token{}, false, nil
	default:
		return Token{}, false, err
	}
}

func (s *Store) ClearToken(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM oauth_token WHERE id=1`)
	return err
}

// SetSource records a file path override for a source key.
func (s *Store) SetSource(ctx context.Context, key, path string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sources(key, path, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET path=excluded.path, updated_at=excluded.updated_at`,
		key, path, time.Now().UTC())
	return err
}

// Sources returns all stored source overrides keyed by source name.
func (s *Store) Sources(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, path FROM sources`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var key, path string
		if err := rows.Scan(&key, &path); err != nil {
			return nil, err
		}
		out[key] = path
	}
	return out, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
