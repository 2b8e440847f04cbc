package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteMappingRoundTrip(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	saved, err := s.SaveMapping(ctx, Mapping{
		ShortCode:   "abc1234",
		OriginalURL: "https://example.com/page",
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   &exp,
	})
	if err != nil {
		t.Fatalf("SaveMapping: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.FindByCode(ctx, "abc1234")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if got.OriginalURL != "https://example.com/page" {
		t.Errorf("OriginalURL = %q", got.OriginalURL)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, exp)
	}

	if _, err := s.FindByCode(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteUniqueShortCode(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	if _, err := s.SaveMapping(ctx, Mapping{ShortCode: "dup", OriginalURL: "https://a.example", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	_, err := s.SaveMapping(ctx, Mapping{ShortCode: "dup", OriginalURL: "https://b.example", CreatedAt: time.Now()})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestSQLiteClickForMissingMapping(t *testing.T) {
	s := openTestDB(t)

	_, err := s.SaveClick(context.Background(), Click{MappingID: "no-such-id", ClickedAt: time.Now()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from FK violation, got %v", err)
	}
}

func TestSQLiteRecentClicksOrderAndLimit(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	mp, err := s.SaveMapping(ctx, Mapping{ShortCode: "clicky", OriginalURL: "https://example.com", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		_, err := s.SaveClick(ctx, Click{
			MappingID: mp.ID,
			ClickedAt: base.Add(time.Duration(i) * time.Second),
			IP:        "203.0.113.9",
			UserAgent: "test-agent",
		})
		if err != nil {
			t.Fatalf("SaveClick %d: %v", i, err)
		}
	}

	n, err := s.CountClicks(ctx, mp.ID)
	if err != nil || n != 5 {
		t.Fatalf("CountClicks = %d, %v; want 5", n, err)
	}

	recent, err := s.RecentClicks(ctx, mp.ID, 3)
	if err != nil {
		t.Fatalf("RecentClicks: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	if !recent[0].ClickedAt.Equal(base.Add(4 * time.Second)) {
		t.Errorf("newest click first: got %v", recent[0].ClickedAt)
	}
	if recent[0].IP != "203.0.113.9" || recent[0].UserAgent != "test-agent" {
		t.Errorf("click metadata lost: %+v", recent[0])
	}
}

func TestSQLiteDeleteMappingCascades(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	mp, err := s.SaveMapping(ctx, Mapping{ShortCode: "gone", OriginalURL: "https://example.com", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.SaveClick(ctx, Click{MappingID: mp.ID, ClickedAt: time.Now()}); err != nil {
			t.Fatalf("click: %v", err)
		}
	}

	if err := s.DeleteMapping(ctx, mp.ID); err != nil {
		t.Fatalf("DeleteMapping: %v", err)
	}
	if _, err := s.FindByCode(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("mapping still present: %v", err)
	}
	if n, _ := s.CountClicks(ctx, mp.ID); n != 0 {
		t.Errorf("clicks survived the delete: %d", n)
	}
	if err := s.DeleteMapping(ctx, mp.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestSQLiteTopCodes(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	hot, _ := s.SaveMapping(ctx, Mapping{ShortCode: "hot", OriginalURL: "https://a.example", CreatedAt: time.Now()})
	if _, err := s.SaveMapping(ctx, Mapping{ShortCode: "cold", OriginalURL: "https://b.example", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.SaveClick(ctx, Click{MappingID: hot.ID, ClickedAt: time.Now()}); err != nil {
			t.Fatalf("click: %v", err)
		}
	}

	codes, err := s.TopCodes(ctx, 1)
	if err != nil {
		t.Fatalf("TopCodes: %v", err)
	}
	if len(codes) != 1 || codes[0] != "hot" {
		t.Errorf("TopCodes = %v, want [hot]", codes)
	}
}
