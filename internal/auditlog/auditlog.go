// Package auditlog records one append-only entry per (rule, product)
// mutation attempt. Entries are never updated or deleted.
package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"metafields-backend/internal/catalog"
	"metafields-backend/internal/rules"
	"metafields-backend/internal/store"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Outcome is the structured payload serialized into the message column.
// It always carries the attempted metafield input; failures additionally
// carry the error description and, when available, HTTP status and body.
type Outcome struct {
	Input  catalog.MetafieldInput `json:"input"`
	Error  string                 `json:"error,omitempty"`
	Status int                    `json:"status,omitempty"`
	Body   string                 `json:"body,omitempty"`
}

// Success builds the outcome for a completed mutation.
func Success(input catalog.MetafieldInput) Outcome {
	return Outcome{Input: input}
}

// Failure builds the outcome for a failed mutation, preserving whatever
// error detail the catalog client surfaced.
func Failure(input catalog.MetafieldInput, err error) Outcome {
	out := Outcome{Input: input, Error: err.Error()}
	var apiErr *catalog.APIError
	if errors.As(err, &apiErr) {
		out.Status = apiErr.Status
		out.Body = apiErr.Body
	}
	return out
}

// Entry is one recorded attempt. RuleID is nullable: deleting a rule keeps
// its log entries with a null reference.
type Entry struct {
	ID        int64                `json:"id"`
	RuleID    *int64               `json:"ruleId"`
	ProductID string               `json:"productId"`
	Status    string               `json:"status"`
	Message   *string              `json:"message"`
	CreatedAt time.Time            `json:"createdAt"`
	Rule      *rules.MetafieldRule `json:"rule,omitempty"`
}

// Outcome decodes the structured payload from the message column.
func (e *Entry) Outcome() (*Outcome, error) {
	if e.Message == nil {
		return nil, nil
	}
	var out Outcome
	if err := json.Unmarshal([]byte(*e.Message), &out); err != nil {
		return nil, fmt.Errorf("decode log message: %w", err)
	}
	return &out, nil
}

// Repo appends to and reads metafield_logs. Appends are safe under
// concurrent writers: insert-only, no update-in-place.
type Repo struct {
	store *store.Store
}

func NewRepo(s *store.Store) *Repo {
	return &Repo{store: s}
}

// Append records one attempt. The outcome is serialized at this boundary;
// display-side parsing is a presentation concern.
func (r *Repo) Append(ctx context.Context, ruleID int64, productID, status string, outcome Outcome) error {
	msgJSON, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	pb := r.store.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, r.store.DB,
		fmt.Sprintf("INSERT INTO metafield_logs (rule_id, product_id, status, message) VALUES (%s, %s, %s, %s)",
			pb.Add(ruleID), pb.Add(productID), pb.Add(status), pb.Add(string(msgJSON))),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ListRecent returns the most recent entries, newest first, each joined
// with its rule when the rule still exists.
func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	pb := r.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(ctx, r.store.DB,
		fmt.Sprintf(`SELECT l.id, l.rule_id, l.product_id, l.status, l.message, l.created_at,
		 r.id AS r_id, r.collection_title, r.namespace, r.key, r.type, r.value, r.owner_resource, r.condition
		 FROM metafield_logs l
		 LEFT JOIN metafield_rules r ON r.id = l.rule_id
		 ORDER BY l.created_at DESC, l.id DESC
		 LIMIT %s`, pb.Add(limit)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entryFromRow(row))
	}
	return entries, nil
}

func entryFromRow(row map[string]any) Entry {
	e := Entry{
		ID:        asInt64(row["id"]),
		ProductID: asString(row["product_id"]),
		Status:    asString(row["status"]),
	}
	if id, ok := toInt64(row["rule_id"]); ok {
		e.RuleID = &id
	}
	if msg, ok := row["message"].(string); ok {
		e.Message = &msg
	}
	if t, ok := row["created_at"].(time.Time); ok {
		e.CreatedAt = t
	}
	if rid, ok := toInt64(row["r_id"]); ok {
		e.Rule = &rules.MetafieldRule{
			ID:              rid,
			CollectionTitle: asString(row["collection_title"]),
			Namespace:       asString(row["namespace"]),
			Key:             asString(row["key"]),
			Type:            asString(row["type"]),
			Value:           asString(row["value"]),
			OwnerResource:   asString(row["owner_resource"]),
			Condition:       asString(row["condition"]),
		}
	}
	return e
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	n, _ := toInt64(v)
	return n
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
