package rules

import (
	"context"
	"errors"
	"testing"

	"metafields-backend/internal/config"
	"metafields-backend/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		Path:   t.TempDir(),
		Name:   "test",
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return s
}

func amethystRule() *MetafieldRule {
	return &MetafieldRule{
		CollectionTitle: "Amethyst",
		Namespace:       "custom",
		Key:             "zodiac_category",
		Type:            "single_line_text_field",
		Value:           "Pisces",
	}
}

func TestRepo_CreateAssignsID(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(testStore(t))

	first, err := repo.Create(ctx, amethystRule())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID <= 0 {
		t.Fatalf("expected assigned id, got %d", first.ID)
	}
	if first.OwnerResource != "product" {
		t.Fatalf("expected owner resource defaulted to product, got %q", first.OwnerResource)
	}

	second, err := repo.Create(ctx, amethystRule())
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected distinct ids, both got %d", first.ID)
	}

	got, err := repo.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CollectionTitle != "Amethyst" || got.Namespace != "custom" ||
		got.Key != "zodiac_category" || got.Value != "Pisces" {
		t.Fatalf("rule mangled through storage: %+v", got)
	}
}

func TestRepo_ListReturnsAllInIDOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(testStore(t))

	for _, title := range []string{"Amethyst", "Gemstones", "Quartz"} {
		rule := amethystRule()
		rule.CollectionTitle = title
		if _, err := repo.Create(ctx, rule); err != nil {
			t.Fatalf("create %q: %v", title, err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(list))
	}
	for i, want := range []string{"Amethyst", "Gemstones", "Quartz"} {
		if list[i].CollectionTitle != want {
			t.Fatalf("rule %d: expected %q, got %q", i, want, list[i].CollectionTitle)
		}
	}
}

func TestRepo_UpdateReplacesFields(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(testStore(t))

	created, err := repo.Create(ctx, amethystRule())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	changed := amethystRule()
	changed.Value = "Aquarius"
	changed.Condition = `product.title == "Crystal A"`
	updated, err := repo.Update(ctx, created.ID, changed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Value != "Aquarius" || updated.Condition != `product.title == "Crystal A"` {
		t.Fatalf("update lost fields: %+v", updated)
	}

	if _, err := repo.Update(ctx, created.ID+1000, changed); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing rule, got %v", err)
	}
}

func TestRepo_DeleteRemovesRule(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(testStore(t))

	created, err := repo.Create(ctx, amethystRule())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
