package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Postgres is the Store backend selected when DB_DSN is a postgres URL.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects via the pgx stdlib driver and applies the schema.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := migratePostgres(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func migratePostgres(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mappings (
			id TEXT PRIMARY KEY,
			short_code TEXT UNIQUE NOT NULL,
			original_url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mappings_created ON mappings(created_at)`,
		`CREATE TABLE IF NOT EXISTS clicks (
			id TEXT PRIMARY KEY,
			mapping_id TEXT NOT NULL REFERENCES mappings(id) ON DELETE CASCADE,
			clicked_at TIMESTAMPTZ NOT NULL,
			ip TEXT,
			user_agent TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_mapping_ts ON clicks(mapping_id, clicked_at)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (p *Postgres) SaveMapping(ctx context.Context, m Mapping) (Mapping, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	var exp any
	if m.ExpiresAt != nil {
		exp = m.ExpiresAt.UTC()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO mappings(id, short_code, original_url, created_at, expires_at) VALUES($1, $2, $3, $4, $5)`,
		m.ID, m.ShortCode, m.OriginalURL, m.CreatedAt.UTC(), exp)
	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return Mapping{}, ErrConflict
		}
		return Mapping{}, err
	}
	return m, nil
}

func (p *Postgres) FindByCode(ctx context.Context, code string) (Mapping, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, short_code, original_url, created_at, expires_at FROM mappings WHERE short_code = $1`, code)
	return scanMapping(row)
}

func (p *Postgres) ListMappings(ctx context.Context) ([]Mapping, error) {
	rows, err := p.db.QueryContext(ctx,
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

func (p *Postgres) DeleteMapping(ctx context.Context, mappingID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clicks WHERE mapping_id = $1`, mappingID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM mappings WHERE id = $1`, mappingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (p *Postgres) SaveClick(ctx context.Context, c Click) (Click, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO clicks(id, mapping_id, clicked_at, ip, user_agent) VALUES($1, $2, $3, $4, $5)`,
		c.ID, c.MappingID, c.ClickedAt.UTC(), c.IP, c.UserAgent)
	if err != nil {
		if pgErrCode(err) == pgForeignKeyViolation {
			return Click{}, ErrNotFound
		}
		return Click{}, err
	}
	return c, nil
}

func (p *Postgres) CountClicks(ctx context.Context, mappingID string) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clicks WHERE mapping_id = $1`, mappingID).Scan(&n)
	return n, err
}

func (p *Postgres) RecentClicks(ctx context.Context, mappingID string, limit int) ([]Click, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, mapping_id, clicked_at, ip, user_agent FROM clicks
		 WHERE mapping_id = $1 ORDER BY clicked_at DESC LIMIT $2`, mappingID, limit)
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

func (p *Postgres) TopCodes(ctx context.Context, n int) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT m.short_code FROM mappings m
		LEFT JOIN clicks c ON c.mapping_id = m.id
		GROUP BY m.id ORDER BY COUNT(c.id) DESC LIMIT $1`, n)
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

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

var _ Store = (*Postgres)(nil)
