package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no mapping exists for a code or id.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a short code is already taken. The store,
	// not the caller, enforces uniqueness at write time.
	ErrConflict = errors.New("short code already exists")
)

// Mapping is the persisted association between a short code and its
// destination URL. A nil ExpiresAt means the mapping never expires.
type Mapping struct {
	ID          string
	ShortCode   string
	OriginalURL string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}

// Expired reports whether the mapping has lapsed relative to now.
func (m Mapping) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// Click is one recorded redirect resolution.
type Click struct {
	ID        string
	MappingID string
	ClickedAt time.Time
	IP        string
	UserAgent string
}

// Store persists mappings and their click events.
//
// SaveMapping returns ErrConflict if the short code is taken. SaveClick
// returns ErrNotFound if the owning mapping no longer exists. DeleteMapping
// removes the mapping and all of its clicks in a single transaction so a
// failure leaves neither half applied.
type Store interface {
	SaveMapping(ctx context.Context, m Mapping) (Mapping, error)
	FindByCode(ctx context.Context, code string) (Mapping, error)
	ListMappings(ctx context.Context) ([]Mapping, error)
	DeleteMapping(ctx context.Context, mappingID string) error

	SaveClick(ctx context.Context, c Click) (Click, error)
	CountClicks(ctx context.Context, mappingID string) (int64, error)
	RecentClicks(ctx context.Context, mappingID string, limit int) ([]Click, error)

	TopCodes(ctx context.Context, n int) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
