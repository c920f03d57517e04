package engine

import (
	"testing"

	"metafields-backend/internal/catalog"
	"metafields-backend/internal/rules"
)

func TestCollectionMatcher_ExactTitle(t *testing.T) {
	m := CollectionMatcher{}
	rule := &rules.MetafieldRule{CollectionTitle: "Amethyst"}

	tests := []struct {
		name        string
		collections []string
		want        bool
	}{
		{"member", []string{"Amethyst", "Gemstones"}, true},
		{"not a member", []string{"Quartz"}, false},
		{"no collections", nil, false},
		{"case sensitive", []string{"amethyst"}, false},
		{"no normalization", []string{" Amethyst"}, false},
		{"substring is not a match", []string{"Amethyst Deluxe"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &catalog.Product{ID: "gid://shopify/Product/1", Collections: tt.collections}
			if got := m.Matches(rule, p); got != tt.want {
				t.Fatalf("Matches(%v) = %v, want %v", tt.collections, got, tt.want)
			}
		})
	}
}

func TestCollectionMatcher_WindowOfTen(t *testing.T) {
	m := CollectionMatcher{}
	rule := &rules.MetafieldRule{CollectionTitle: "Last"}

	collections := make([]string, 0, 10)
	for i := 0; i < 9; i++ {
		collections = append(collections, "Other")
	}
	collections = append(collections, "Last")

	p := &catalog.Product{Collections: collections}
	if !m.Matches(rule, p) {
		t.Fatal("expected match on the 10th collection title")
	}
}

func TestExpressionMatcher_EmptyConditionDelegates(t *testing.T) {
	m := NewExpressionMatcher(CollectionMatcher{})
	rule := &rules.MetafieldRule{CollectionTitle: "Amethyst"}

	in := &catalog.Product{Collections: []string{"Amethyst"}}
	out := &catalog.Product{Collections: []string{"Quartz"}}

	if !m.Matches(rule, in) {
		t.Fatal("expected empty condition to behave like the inner matcher (match)")
	}
	if m.Matches(rule, out) {
		t.Fatal("expected empty condition to behave like the inner matcher (no match)")
	}
}

func TestExpressionMatcher_Condition(t *testing.T) {
	m := NewExpressionMatcher(CollectionMatcher{})
	product := &catalog.Product{
		ID:          "gid://shopify/Product/42",
		Title:       "Crystal A",
		Collections: []string{"Amethyst", "Gemstones"},
	}

	tests := []struct {
		name      string
		condition string
		want      bool
	}{
		{"true condition", `product.title == "Crystal A"`, true},
		{"false condition", `product.title == "Crystal B"`, false},
		{"collection membership", `"Gemstones" in product.collections`, true},
		{"normalized id", `product.id == "42"`, true},
		{"compile error counts as no match", `product.title ==`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &rules.MetafieldRule{CollectionTitle: "Amethyst", Condition: tt.condition}
			if got := m.Matches(rule, product); got != tt.want {
				t.Fatalf("Matches with condition %q = %v, want %v", tt.condition, got, tt.want)
			}
		})
	}
}

func TestExpressionMatcher_InnerMissStillMisses(t *testing.T) {
	m := NewExpressionMatcher(CollectionMatcher{})
	rule := &rules.MetafieldRule{CollectionTitle: "Amethyst", Condition: "true"}
	p := &catalog.Product{Collections: []string{"Quartz"}}

	if m.Matches(rule, p) {
		t.Fatal("condition must not override a collection-title miss")
	}
}
