package engine

import (
	"log"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"metafields-backend/internal/catalog"
	"metafields-backend/internal/rules"
)

// Matcher decides whether a rule applies to a product. Implementations are
// pure: no side effects, no failure mode. The matcher is the extension
// point for richer targeting (tags, price, vendor); the engine never looks
// inside a rule to decide a match itself.
type Matcher interface {
	Matches(rule *rules.MetafieldRule, product *catalog.Product) bool
}

// CollectionMatcher matches a rule iff the product's collection-title list
// contains the rule's collection title under exact, case-sensitive string
// equality. No normalization.
type CollectionMatcher struct{}

func (CollectionMatcher) Matches(rule *rules.MetafieldRule, product *catalog.Product) bool {
	for _, title := range product.Collections {
		if title == rule.CollectionTitle {
			return true
		}
	}
	return false
}

// ExpressionMatcher wraps another matcher and additionally evaluates the
// rule's optional condition expression against the product. An empty
// condition gates nothing. A condition that fails to compile, fails to
// evaluate, or returns a non-boolean counts as no match; the pair never
// became a match, so no audit entry is written for it.
type ExpressionMatcher struct {
	Inner Matcher

	mu       sync.Mutex
	programs map[string]*vm.Program
}

func NewExpressionMatcher(inner Matcher) *ExpressionMatcher {
	return &ExpressionMatcher{Inner: inner, programs: make(map[string]*vm.Program)}
}

func (m *ExpressionMatcher) Matches(rule *rules.MetafieldRule, product *catalog.Product) bool {
	if !m.Inner.Matches(rule, product) {
		return false
	}
	if rule.Condition == "" {
		return true
	}

	m.mu.Lock()
	prog, ok := m.programs[rule.Condition]
	if !ok {
		var err error
		prog, err = expr.Compile(rule.Condition, expr.AsBool())
		if err != nil {
			m.mu.Unlock()
			log.Printf("ERROR: rule %d condition compile: %v", rule.ID, err)
			return false
		}
		m.programs[rule.Condition] = prog
	}
	m.mu.Unlock()

	env := map[string]any{
		"product": map[string]any{
			"id":          catalog.NormalizeProductID(product.ID),
			"title":       product.Title,
			"collections": product.Collections,
		},
	}
	result, err := expr.Run(prog, env)
	if err != nil {
		log.Printf("ERROR: rule %d condition evaluation: %v", rule.ID, err)
		return false
	}
	b, ok := result.(bool)
	return ok && b
}
