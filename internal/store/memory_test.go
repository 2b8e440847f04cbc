package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySaveMappingAssignsID(t *testing.T) {
	m := NewMemory()
	saved, err := m.SaveMapping(context.Background(), Mapping{
		ShortCode:   "abc1234",
		OriginalURL: "https://example.com",
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveMapping: %v", err)
	}
	if saved.ID == "" {
		t.Error("expected a generated id")
	}
}

func TestMemorySaveMappingConflict(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.SaveMapping(ctx, Mapping{ShortCode: "dup", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := m.SaveMapping(ctx, Mapping{ShortCode: "dup", CreatedAt: time.Now()}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestMemoryFindByCodeCaseSensitive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.SaveMapping(ctx, Mapping{ShortCode: "MiXeD", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.FindByCode(ctx, "MiXeD"); err != nil {
		t.Errorf("exact match failed: %v", err)
	}
	if _, err := m.FindByCode(ctx, "mixed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("lookup should be case-sensitive, got %v", err)
	}
}

func TestMemoryListMappingsNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now()

	for i, code := range []string{"oldest", "middle", "newest"} {
		if _, err := m.SaveMapping(ctx, Mapping{ShortCode: code, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("save %s: %v", code, err)
		}
	}

	list, err := m.ListMappings(ctx)
	if err != nil {
		t.Fatalf("ListMappings: %v", err)
	}
	want := []string{"newest", "middle", "oldest"}
	for i, mp := range list {
		if mp.ShortCode != want[i] {
			t.Errorf("position %d: got %s want %s", i, mp.ShortCode, want[i])
		}
	}
}

func TestMemoryClicks(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	mp, err := m.SaveMapping(ctx, Mapping{ShortCode: "clicky", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	base := time.Now()
	for i := 0; i < 5; i++ {
		_, err := m.SaveClick(ctx, Click{
			MappingID: mp.ID,
			ClickedAt: base.Add(time.Duration(i) * time.Second),
			IP:        "10.0.0.1",
		})
		if err != nil {
			t.Fatalf("SaveClick %d: %v", i, err)
		}
	}

	n, err := m.CountClicks(ctx, mp.ID)
	if err != nil || n != 5 {
		t.Fatalf("CountClicks = %d, %v; want 5", n, err)
	}

	recent, err := m.RecentClicks(ctx, mp.ID, 3)
	if err != nil {
		t.Fatalf("RecentClicks: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent clicks, got %d", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].ClickedAt.After(recent[i-1].ClickedAt) {
			t.Error("recent clicks not ordered newest first")
		}
	}
}

func TestMemorySaveClickMissingMapping(t *testing.T) {
	m := NewMemory()
	_, err := m.SaveClick(context.Background(), Click{MappingID: "nope", ClickedAt: time.Now()})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryDeleteCascades(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	mp, err := m.SaveMapping(ctx, Mapping{ShortCode: "gone", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.SaveClick(ctx, Click{MappingID: mp.ID, ClickedAt: time.Now()}); err != nil {
		t.Fatalf("click: %v", err)
	}

	if err := m.DeleteMapping(ctx, mp.ID); err != nil {
		t.Fatalf("DeleteMapping: %v", err)
	}
	if _, err := m.FindByCode(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("mapping still present: %v", err)
	}
	if n, _ := m.CountClicks(ctx, mp.ID); n != 0 {
		t.Errorf("clicks survived the delete: %d", n)
	}
	if err := m.DeleteMapping(ctx, mp.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestMemoryTopCodes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	hot, _ := m.SaveMapping(ctx, Mapping{ShortCode: "hot", CreatedAt: time.Now()})
	if _, err := m.SaveMapping(ctx, Mapping{ShortCode: "cold", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := m.SaveClick(ctx, Click{MappingID: hot.ID, ClickedAt: time.Now()}); err != nil {
			t.Fatalf("click: %v", err)
		}
	}

	codes, err := m.TopCodes(ctx, 1)
	if err != nil {
		t.Fatalf("TopCodes: %v", err)
	}
	if len(codes) != 1 || codes[0] != "hot" {
		t.Errorf("TopCodes = %v, want [hot]", codes)
	}
}
