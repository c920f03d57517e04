// Package catalog talks to the Shopify Admin GraphQL API: product reads
// with collection membership, and metafieldsSet writes.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("product not found")
var ErrUnauthenticated = errors.New("missing or invalid shop session")

// Session is an offline access token bound to one store.
type Session struct {
	ID          string
	Shop        string
	AccessToken string
	Scope       string
	ExpiresAt   *time.Time
}

// Product is a read-only projection of a catalog product. Collections holds
// the titles of the first collectionWindow collections the product belongs
// to; memberships beyond the window are not visible to rule matching.
type Product struct {
	ID          string   // gid://shopify/Product/<id>
	Title       string
	Collections []string
}

// MetafieldInput is one metafieldsSet entry. Value is always transmitted as
// a string regardless of the declared type.
type MetafieldInput struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// APIError is a transport-level or HTTP-level failure. The response body is
// preserved so the audit log can record a diagnosable failure.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog API error: HTTP %d: %s", e.Status, e.Body)
}

// UserError is a structured user-error returned by a mutation.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// MutationError carries the userErrors of a rejected mutation.
type MutationError struct {
	UserErrors []UserError
}

func (e *MutationError) Error() string {
	msgs := make([]string, len(e.UserErrors))
	for i, ue := range e.UserErrors {
		if len(ue.Field) > 0 {
			msgs[i] = strings.Join(ue.Field, ".") + ": " + ue.Message
		} else {
			msgs[i] = ue.Message
		}
	}
	return "metafieldsSet rejected: " + strings.Join(msgs, "; ")
}

// ProductGID builds the global id for a bare product id. Ids that already
// carry a gid scheme are passed through.
func ProductGID(id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/Product/" + id
}

// NormalizeProductID strips the gid scheme, leaving the bare identifier.
func NormalizeProductID(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
