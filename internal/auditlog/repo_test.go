package auditlog

import (
	"context"
	"testing"

	"metafields-backend/internal/catalog"
	"metafields-backend/internal/config"
	"metafields-backend/internal/rules"
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

func createTestRule(t *testing.T, repo *rules.Repo) *rules.MetafieldRule {
	t.Helper()
	rule, err := repo.Create(context.Background(), &rules.MetafieldRule{
		CollectionTitle: "Amethyst",
		Namespace:       "custom",
		Key:             "zodiac_category",
		Type:            "single_line_text_field",
		Value:           "Pisces",
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	return rule
}

func TestRepo_AppendAndListRecent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	logs := NewRepo(s)
	rule := createTestRule(t, rules.NewRepo(s))

	for _, v := range []string{"Pisces", "Aries", "Gemini"} {
		input := testInput
		input.Value = v
		if err := logs.Append(ctx, rule.ID, "42", StatusSuccess, Success(input)); err != nil {
			t.Fatalf("append %q: %v", v, err)
		}
	}

	entries, err := logs.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Most recent first.
	for i, want := range []string{"Gemini", "Aries", "Pisces"} {
		out, err := entries[i].Outcome()
		if err != nil {
			t.Fatalf("entry %d outcome: %v", i, err)
		}
		if out.Input.Value != want {
			t.Fatalf("entry %d: expected value %q, got %q", i, want, out.Input.Value)
		}
	}

	entry := entries[0]
	if entry.ProductID != "42" {
		t.Fatalf("expected product id 42, got %q", entry.ProductID)
	}
	if entry.RuleID == nil || *entry.RuleID != rule.ID {
		t.Fatalf("expected entry tagged with rule %d, got %v", rule.ID, entry.RuleID)
	}
	if entry.Rule == nil || entry.Rule.CollectionTitle != "Amethyst" {
		t.Fatalf("expected live rule joined in, got %+v", entry.Rule)
	}
}

func TestRepo_DeletedRuleLeavesNullReference(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	logs := NewRepo(s)
	ruleRepo := rules.NewRepo(s)
	rule := createTestRule(t, ruleRepo)

	outcome := Failure(testInput, &catalog.APIError{Status: 502, Body: `{"errors":"bad gateway"}`})
	if err := logs.Append(ctx, rule.ID, "42", StatusFailure, outcome); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := ruleRepo.Delete(ctx, rule.ID); err != nil {
		t.Fatalf("delete rule: %v", err)
	}

	entries, err := logs.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("deleting a rule must keep its log entries, got %d", len(entries))
	}

	entry := entries[0]
	if entry.RuleID != nil {
		t.Fatalf("expected null rule reference after delete, got %d", *entry.RuleID)
	}
	if entry.Rule != nil {
		t.Fatalf("expected no joined rule after delete, got %+v", entry.Rule)
	}
	if entry.Status != StatusFailure {
		t.Fatalf("expected failure status preserved, got %s", entry.Status)
	}

	out, err := entry.Outcome()
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if out.Status != 502 || out.Body != `{"errors":"bad gateway"}` {
		t.Fatalf("failure detail lost through storage: %+v", out)
	}
}

func TestRepo_ListRecentHonorsLimit(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	logs := NewRepo(s)
	rule := createTestRule(t, rules.NewRepo(s))

	for _, v := range []string{"a", "b", "c", "d", "e"} {
		input := testInput
		input.Value = v
		if err := logs.Append(ctx, rule.ID, "42", StatusSuccess, Success(input)); err != nil {
			t.Fatalf("append %q: %v", v, err)
		}
	}

	entries, err := logs.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected limit of 2 honored, got %d entries", len(entries))
	}
	for i, want := range []string{"e", "d"} {
		out, err := entries[i].Outcome()
		if err != nil {
			t.Fatalf("entry %d outcome: %v", i, err)
		}
		if out.Input.Value != want {
			t.Fatalf("entry %d: expected newest entries first, got %q", i, out.Input.Value)
		}
	}
}
