// Package rules stores the declarative metafield rules: one collection
// title mapped to one (namespace, key) metafield value.
package rules

import (
	"context"
	"fmt"
	"time"

	"metafields-backend/internal/store"
)

// MetafieldRule assigns a metafield to every product in the named
// collection. (Namespace, Key) is the functional identity of the metafield
// being written; Value is always serialized as a string. Condition is an
// optional expression that further narrows the match; empty means the
// collection title alone decides.
type MetafieldRule struct {
	ID              int64     `json:"id"`
	CollectionTitle string    `json:"collectionTitle"`
	Namespace       string    `json:"namespace"`
	Key             string    `json:"key"`
	Type            string    `json:"type"`
	Value           string    `json:"value"`
	OwnerResource   string    `json:"ownerResource"`
	Condition       string    `json:"condition,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

const ruleColumns = "id, collection_title, namespace, key, type, value, owner_resource, condition, created_at, updated_at"

// Repo reads and writes metafield_rules.
type Repo struct {
	store *store.Store
}

func NewRepo(s *store.Store) *Repo {
	return &Repo{store: s}
}

// List returns a snapshot of all rules. No caching: every engine invocation
// re-reads the full rule set.
func (r *Repo) List(ctx context.Context) ([]MetafieldRule, error) {
	rows, err := store.QueryRows(ctx, r.store.DB,
		"SELECT "+ruleColumns+" FROM metafield_rules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	result := make([]MetafieldRule, 0, len(rows))
	for _, row := range rows {
		result = append(result, ruleFromRow(row))
	}
	return result, nil
}

// Get returns one rule by id, or store.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id int64) (*MetafieldRule, error) {
	pb := r.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, r.store.DB,
		fmt.Sprintf("SELECT %s FROM metafield_rules WHERE id = %s", ruleColumns, pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return nil, err
	}
	rule := ruleFromRow(row)
	return &rule, nil
}

// Create inserts a rule and returns it with its assigned id.
func (r *Repo) Create(ctx context.Context, rule *MetafieldRule) (*MetafieldRule, error) {
	if rule.OwnerResource == "" {
		rule.OwnerResource = "product"
	}
	pb := r.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, r.store.DB,
		fmt.Sprintf(`INSERT INTO metafield_rules (collection_title, namespace, key, type, value, owner_resource, condition)
		 VALUES (%s, %s, %s, %s, %s, %s, %s) RETURNING %s`,
			pb.Add(rule.CollectionTitle), pb.Add(rule.Namespace), pb.Add(rule.Key),
			pb.Add(rule.Type), pb.Add(rule.Value), pb.Add(rule.OwnerResource), pb.Add(rule.Condition),
			ruleColumns),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", r.store.Dialect.MapError(err))
	}
	created := ruleFromRow(row)
	return &created, nil
}

// Update replaces the mutable attributes of a rule.
func (r *Repo) Update(ctx context.Context, id int64, rule *MetafieldRule) (*MetafieldRule, error) {
	if rule.OwnerResource == "" {
		rule.OwnerResource = "product"
	}
	pb := r.store.Dialect.NewParamBuilder()
	n, err := store.Exec(ctx, r.store.DB,
		fmt.Sprintf(`UPDATE metafield_rules
		 SET collection_title = %s, namespace = %s, key = %s, type = %s, value = %s, owner_resource = %s, condition = %s, updated_at = %s
		 WHERE id = %s`,
			pb.Add(rule.CollectionTitle), pb.Add(rule.Namespace), pb.Add(rule.Key),
			pb.Add(rule.Type), pb.Add(rule.Value), pb.Add(rule.OwnerResource), pb.Add(rule.Condition),
			r.store.Dialect.NowExpr(), pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("update rule %d: %w", id, r.store.Dialect.MapError(err))
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes a rule. Existing log entries keep a null rule reference.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	pb := r.store.Dialect.NewParamBuilder()
	n, err := store.Exec(ctx, r.store.DB,
		fmt.Sprintf("DELETE FROM metafield_rules WHERE id = %s", pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func ruleFromRow(row map[string]any) MetafieldRule {
	rule := MetafieldRule{
		ID:              asInt64(row["id"]),
		CollectionTitle: asString(row["collection_title"]),
		Namespace:       asString(row["namespace"]),
		Key:             asString(row["key"]),
		Type:            asString(row["type"]),
		Value:           asString(row["value"]),
		OwnerResource:   asString(row["owner_resource"]),
		Condition:       asString(row["condition"]),
	}
	if t, ok := row["created_at"].(time.Time); ok {
		rule.CreatedAt = t
	}
	if t, ok := row["updated_at"].(time.Time); ok {
		rule.UpdatedAt = t
	}
	return rule
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
