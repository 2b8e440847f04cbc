// Package core implements the code allocation and resolution engine.
package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/yourname/go-shortly/internal/cache"
	"github.com/yourname/go-shortly/internal/metrics"
	"github.com/yourname/go-shortly/internal/shortid"
	"github.com/yourname/go-shortly/internal/store"
)

const (
	codeLength       = 7
	maxAllocAttempts = 10
	recentClickLimit = 100
)

var aliasRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,16}$`)

// Service orchestrates allocation, resolution, stats and deletion on top
// of the store. It holds no locks of its own: uniqueness is enforced by
// the store at write time.
type Service struct {
	store      store.Store
	cache      cache.Cache
	baseURL    string
	defaultTTL time.Duration
	sf         singleflight.Group
	gen        func(length int) string
	now        func() time.Time
}

// NewService wires the engine. defaultTTL is applied when a create request
// carries no expiry; zero or negative means links never expire by default.
func NewService(s store.Store, c cache.Cache, baseURL string, defaultTTL time.Duration) *Service {
	return &Service{
		store:      s,
		cache:      c,
		baseURL:    strings.TrimRight(baseURL, "/"),
		defaultTTL: defaultTTL,
		gen:        shortid.Generate,
		now:        time.Now,
	}
}

type ShortenRequest struct {
	OriginalURL string
	CustomAlias string
	ExpiresAt   *time.Time
}

type ShortenResult struct {
	Code      string
	ShortURL  string
	ExpiresAt *time.Time
}

type ClickInfo struct {
	ClickedAt time.Time
	IP        string
	UserAgent string
}

type StatsResult struct {
	Code        string
	OriginalURL string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	TotalClicks int64
	LastClicks  []ClickInfo
}

type ListItem struct {
	Code        string
	OriginalURL string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	TotalClicks int64
	ShortURL    string
}

// Shorten validates the destination, picks or generates a code and
// persists the mapping. A write-time conflict on a generated code retries
// the allocation; on a custom alias it surfaces as ErrAliasTaken.
func (s *Service) Shorten(ctx context.Context, req ShortenRequest) (ShortenResult, error) {
	longURL, err := normalizeURL(req.OriginalURL)
	if err != nil {
		return ShortenResult{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	now := s.now()
	expiresAt, err := s.effectiveExpiry(now, req.ExpiresAt)
	if err != nil {
		return ShortenResult{}, err
	}

	var m store.Mapping
	if alias := strings.TrimSpace(req.CustomAlias); alias != "" {
		m, err = s.createWithAlias(ctx, alias, longURL, now, expiresAt)
	} else {
		m, err = s.createGenerated(ctx, longURL, now, expiresAt)
	}
	if err != nil {
		return ShortenResult{}, err
	}

	metrics.Shortens.Inc()
	return ShortenResult{
		Code:      m.ShortCode,
		ShortURL:  s.shortURL(m.ShortCode),
		ExpiresAt: m.ExpiresAt,
	}, nil
}

func (s *Service) createWithAlias(ctx context.Context, alias, longURL string, now time.Time, expiresAt *time.Time) (store.Mapping, error) {
	if !aliasRe.MatchString(alias) {
		return store.Mapping{}, ErrInvalidAlias
	}
	if IsReserved(alias) {
		return store.Mapping{}, ErrReservedAlias
	}
	if _, err := s.store.FindByCode(ctx, alias); err == nil {
		return store.Mapping{}, ErrAliasTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.Mapping{}, fmt.Errorf("alias lookup: %w", err)
	}

	m, err := s.store.SaveMapping(ctx, store.Mapping{
		ShortCode:   alias,
		OriginalURL: longURL,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost the race against a concurrent create of the same alias.
			return store.Mapping{}, ErrAliasTaken
		}
		return store.Mapping{}, fmt.Errorf("save mapping: %w", err)
	}
	return m, nil
}

func (s *Service) createGenerated(ctx context.Context, longURL string, now time.Time, expiresAt *time.Time) (store.Mapping, error) {
	for i := 0; i < maxAllocAttempts; i++ {
		code := s.gen(codeLength)
		if IsReserved(code) {
			metrics.AllocRetries.Inc()
			continue
		}
		if _, err := s.store.FindByCode(ctx, code); err == nil {
			metrics.AllocRetries.Inc()
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return store.Mapping{}, fmt.Errorf("code lookup: %w", err)
		}

		m, err := s.store.SaveMapping(ctx, store.Mapping{
			ShortCode:   code,
			OriginalURL: longURL,
			CreatedAt:   now,
			ExpiresAt:   expiresAt,
		})
		if err == nil {
			return m, nil
		}
		if errors.Is(err, store.ErrConflict) {
			// Raced another allocation of the same code; try a fresh one.
			metrics.AllocRetries.Inc()
			continue
		}
		return store.Mapping{}, fmt.Errorf("save mapping: %w", err)
	}
	return store.Mapping{}, ErrExhausted
}

// Resolve returns the destination for code and records a click. Expired
// mappings yield ErrExpired without recording anything. The expiry check
// and the click both work off a single read of the mapping; if the click
// insert finds the mapping gone, the whole operation reports ErrNotFound.
func (s *Service) Resolve(ctx context.Context, code, ip, userAgent, referer string) (string, error) {
	m, ok := s.cache.Get(ctx, code)
	if ok {
		metrics.CacheHit.WithLabelValues("mapping").Inc()
	} else {
		metrics.CacheMiss.WithLabelValues("mapping").Inc()
		v, err, _ := s.sf.Do(code, func() (any, error) {
			return s.store.FindByCode(ctx, code)
		})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", ErrNotFound
			}
			return "", fmt.Errorf("lookup: %w", err)
		}
		m = v.(store.Mapping)
		s.cache.Set(ctx, m)
	}

	if m.Expired(s.now()) {
		return "", ErrExpired
	}

	// referer is accepted but not persisted.
	_ = referer

	if _, err := s.store.SaveClick(ctx, store.Click{
		MappingID: m.ID,
		ClickedAt: s.now(),
		IP:        ip,
		UserAgent: userAgent,
	}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Mapping was deleted under us; drop the stale cache entry.
			s.cache.Del(ctx, code)
			return "", ErrNotFound
		}
		return "", fmt.Errorf("record click: %w", err)
	}

	metrics.Redirects.Inc()
	return m.OriginalURL, nil
}

// Stats returns click totals and the most recent clicks for code. Expired
// mappings stay inspectable.
func (s *Service) Stats(ctx context.Context, code string) (StatsResult, error) {
	m, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return StatsResult{}, ErrNotFound
		}
		return StatsResult{}, fmt.Errorf("lookup: %w", err)
	}

	total, err := s.store.CountClicks(ctx, m.ID)
	if err != nil {
		return StatsResult{}, fmt.Errorf("count clicks: %w", err)
	}
	recent, err := s.store.RecentClicks(ctx, m.ID, recentClickLimit)
	if err != nil {
		return StatsResult{}, fmt.Errorf("recent clicks: %w", err)
	}

	last := make([]ClickInfo, len(recent))
	for i, c := range recent {
		last[i] = ClickInfo{ClickedAt: c.ClickedAt, IP: c.IP, UserAgent: c.UserAgent}
	}
	return StatsResult{
		Code:        m.ShortCode,
		OriginalURL: m.OriginalURL,
		CreatedAt:   m.CreatedAt,
		ExpiresAt:   m.ExpiresAt,
		TotalClicks: total,
		LastClicks:  last,
	}, nil
}

// List returns every mapping, newest first, annotated with click counts.
func (s *Service) List(ctx context.Context) ([]ListItem, error) {
	mappings, err := s.store.ListMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}

	items := make([]ListItem, len(mappings))
	for i, m := range mappings {
		total, err := s.store.CountClicks(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("count clicks for %s: %w", m.ShortCode, err)
		}
		items[i] = ListItem{
			Code:        m.ShortCode,
			OriginalURL: m.OriginalURL,
			CreatedAt:   m.CreatedAt,
			ExpiresAt:   m.ExpiresAt,
			TotalClicks: total,
			ShortURL:    s.shortURL(m.ShortCode),
		}
	}
	return items, nil
}

// Delete removes the mapping and its click history together.
func (s *Service) Delete(ctx context.Context, code string) error {
	m, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup: %w", err)
	}
	if err := s.store.DeleteMapping(ctx, m.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete mapping: %w", err)
	}
	s.cache.Del(ctx, code)
	metrics.Deletes.Inc()
	return nil
}

// PrewarmCache loads the n most-clicked mappings into the cache.
func (s *Service) PrewarmCache(ctx context.Context, n int) error {
	codes, err := s.store.TopCodes(ctx, n)
	if err != nil {
		return err
	}
	for _, code := range codes {
		m, err := s.store.FindByCode(ctx, code)
		if err != nil {
			log.Warn().Err(err).Str("code", code).Msg("prewarm lookup")
			continue
		}
		s.cache.Set(ctx, m)
	}
	return nil
}

// Ping reports store health for the readiness endpoint.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) shortURL(code string) string {
	return s.baseURL + "/" + code
}

func (s *Service) effectiveExpiry(now time.Time, requested *time.Time) (*time.Time, error) {
	if requested != nil {
		if !requested.After(now) {
			return nil, ErrInvalidExpiry
		}
		t := *requested
		return &t, nil
	}
	if s.defaultTTL <= 0 {
		return nil, nil
	}
	t := now.Add(s.defaultTTL)
	return &t, nil
}

func normalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("only http/https allowed")
	}
	if parsed.Host == "" {
		return "", errors.New("missing host")
	}
	return parsed.String(), nil
}
