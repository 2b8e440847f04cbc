package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLite is the default Store backend.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	// foreign_keys is a per-connection pragma, so it has to ride on the DSN
	// to cover every pooled connection.
	if !strings.Contains(dsn, "_foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite serializes writers anyway; a small pool avoids lock contention.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mappings (
			id TEXT PRIMARY KEY,
			short_code TEXT UNIQUE NOT NULL,
			original_url TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mappings_created ON mappings(created_at);`,
		`CREATE TABLE IF NOT EXISTS clicks (
			id TEXT PRIMARY KEY,
			mapping_id TEXT NOT NULL REFERENCES mappings(id) ON DELETE CASCADE,
			clicked_at DATETIME NOT NULL,
			ip TEXT,
			user_agent TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_mapping_ts ON clicks(mapping_id, clicked_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) SaveMapping(ctx context.Context, m Mapping) (Mapping, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	var exp any
	if m.ExpiresAt != nil {
		exp = m.ExpiresAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mappings(id, short_code, original_url, created_at, expires_at) VALUES(?, ?, ?, ?, ?)`,
		m.ID, m.ShortCode, m.OriginalURL, m.CreatedAt.UTC(), exp)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return Mapping{}, ErrConflict
		}
		return Mapping{}, err
	}
	return m, nil
}

func (s *SQLite) FindByCode(ctx context.Context, code string) (Mapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, short_code, original_url, created_at, expires_at FROM mappings WHERE short_code = ?`, code)
	return scanMapping(row)
}

func (s *SQLite) ListMappings(ctx context.Context) ([]Mapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, short_code, original_url, created_at, expires_at FROM mappings ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMapping removes the mapping and its clicks in one transaction.
func (s *SQLite) DeleteMapping(ctx context.Context, mappingID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clicks WHERE mapping_id = ?`, mappingID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM mappings WHERE id = ?`, mappingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLite) SaveClick(ctx context.Context, c Click) (Click, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clicks(id, mapping_id, clicked_at, ip, user_agent) VALUES(?, ?, ?, ?, ?)`,
		c.ID, c.MappingID, c.ClickedAt.UTC(), c.IP, c.UserAgent)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			// The owning mapping vanished between lookup and insert.
			return Click{}, ErrNotFound
		}
		return Click{}, err
	}
	return c, nil
}

func (s *SQLite) CountClicks(ctx context.Context, mappingID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clicks WHERE mapping_id = ?`, mappingID).Scan(&n)
	return n, err
}

func (s *SQLite) RecentClicks(ctx context.Context, mappingID string, limit int) ([]Click, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mapping_id, clicked_at, ip, user_agent FROM clicks
		 WHERE mapping_id = ? ORDER BY clicked_at DESC LIMIT ?`, mappingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Click
	for rows.Next() {
		var c Click
		var ts time.Time
		if err := rows.Scan(&c.ID, &c.MappingID, &ts, &c.IP, &c.UserAgent); err != nil {
			return nil, err
		}
		c.ClickedAt = ts.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) TopCodes(ctx context.Context, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.short_code FROM mappings m
		LEFT JOIN clicks c ON c.mapping_id = m.id
		GROUP BY m.id ORDER BY COUNT(c.id) DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		res = append(res, code)
	}
	return res, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (Mapping, error) {
	var m Mapping
	var created time.Time
	var expires sql.NullTime
	if err := row.Scan(&m.ID, &m.ShortCode, &m.OriginalURL, &created, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Mapping{}, ErrNotFound
		}
		return Mapping{}, err
	}
	m.CreatedAt = created.UTC()
	if expires.Valid {
		t := expires.Time.UTC()
		m.ExpiresAt = &t
	}
	return m, nil
}

var _ Store = (*SQLite)(nil)
