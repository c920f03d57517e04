// Package engine applies metafield rules to products: load rules, fetch
// product(s), match, mutate, and record one audit entry per attempt.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"metafields-backend/internal/auditlog"
	"metafields-backend/internal/catalog"
	"metafields-backend/internal/rules"
)

// RuleSource is the engine's read path into the rule store. Every
// invocation takes a fresh snapshot; the engine never caches rules.
type RuleSource interface {
	List(ctx context.Context) ([]rules.MetafieldRule, error)
}

// Catalog is one authenticated store session's API handle. The engine uses
// it serially within a run.
type Catalog interface {
	Product(ctx context.Context, productID string) (*catalog.Product, error)
	Products(ctx context.Context, limit int) ([]catalog.Product, error)
	SetMetafield(ctx context.Context, input catalog.MetafieldInput) error
}

// AuditSink records attempts. Append failures do not abort a run.
type AuditSink interface {
	Append(ctx context.Context, ruleID int64, productID, status string, outcome auditlog.Outcome) error
}

// Engine orchestrates one rule-application run at a time. Callers observe
// effects only through the audit log; the two entry points return an error
// solely for whole-run aborts.
type Engine struct {
	rules        RuleSource
	audit        AuditSink
	matcher      Matcher
	productLimit int
}

func New(ruleSource RuleSource, audit AuditSink, matcher Matcher, productLimit int) *Engine {
	if matcher == nil {
		matcher = CollectionMatcher{}
	}
	if productLimit <= 0 {
		productLimit = 100
	}
	return &Engine{rules: ruleSource, audit: audit, matcher: matcher, productLimit: productLimit}
}

// ApplyRulesToProduct runs every rule against a single product, typically
// on a products/update webhook. A vanished product is not an error: the
// run ends with no effect and no log entries.
func (e *Engine) ApplyRulesToProduct(ctx context.Context, cat Catalog, productID string) error {
	runID := uuid.New().String()

	ruleSet, err := e.rules.List(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if len(ruleSet) == 0 {
		log.Printf("engine: run %s: no rules configured, skipping product %s", runID, productID)
		return nil
	}

	product, err := cat.Product(ctx, productID)
	if errors.Is(err, catalog.ErrNotFound) {
		log.Printf("engine: run %s: product %s no longer exists, skipping", runID, productID)
		return nil
	}
	if err != nil {
		return err
	}

	matched := e.applyToProduct(ctx, cat, ruleSet, product)
	log.Printf("engine: run %s: product %s evaluated against %d rules, %d matched", runID, productID, len(ruleSet), matched)
	return nil
}

// ApplyRulesToAllProducts runs every rule against the catalog, bounded to
// the configured product fetch window. A failed product fetch aborts the
// whole run; there is no partial credit.
func (e *Engine) ApplyRulesToAllProducts(ctx context.Context, cat Catalog) error {
	runID := uuid.New().String()

	ruleSet, err := e.rules.List(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if len(ruleSet) == 0 {
		log.Printf("engine: run %s: no rules configured, skipping bulk apply", runID)
		return nil
	}

	products, err := cat.Products(ctx, e.productLimit)
	if err != nil {
		return err
	}

	matched := 0
	for i := range products {
		matched += e.applyToProduct(ctx, cat, ruleSet, &products[i])
	}
	log.Printf("engine: run %s: %d products evaluated against %d rules, %d pairs matched", runID, len(products), len(ruleSet), matched)
	return nil
}

// applyToProduct issues exactly one mutation attempt and one audit entry
// per matching (rule, product) pair. Pair failures are isolated: a failed
// mutation is logged and the remaining pairs still run.
func (e *Engine) applyToProduct(ctx context.Context, cat Catalog, ruleSet []rules.MetafieldRule, product *catalog.Product) int {
	bareID := catalog.NormalizeProductID(product.ID)
	matched := 0

	for i := range ruleSet {
		rule := &ruleSet[i]
		if !e.matcher.Matches(rule, product) {
			continue
		}
		matched++

		input := catalog.MetafieldInput{
			OwnerID:   catalog.ProductGID(product.ID),
			Namespace: rule.Namespace,
			Key:       rule.Key,
			Type:      rule.Type,
			Value:     rule.Value,
		}

		status := auditlog.StatusSuccess
		outcome := auditlog.Success(input)
		if err := cat.SetMetafield(ctx, input); err != nil {
			status = auditlog.StatusFailure
			outcome = auditlog.Failure(input, err)
		}

		if err := e.audit.Append(ctx, rule.ID, bareID, status, outcome); err != nil {
			// Best-effort observability: a lost audit entry must not turn
			// into a lost run.
			log.Printf("ERROR: engine: append audit entry for rule %d product %s: %v", rule.ID, bareID, err)
		}
	}
	return matched
}
