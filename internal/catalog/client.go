package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"metafields-backend/internal/config"
)

// collectionWindow bounds how many collection memberships are fetched per
// product. Products in more collections silently miss matches beyond the
// window; this is a documented limitation of the rule model.
const collectionWindow = 10

var adminHTTPClient = &http.Client{Timeout: 30 * time.Second}

// Client issues Admin GraphQL calls for one authenticated store session.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
}

// NewClient builds a client bound to the session's store. It fails fast
// with ErrUnauthenticated when the session carries no usable token, so a
// dead session never reaches the mutation path looking like an API error.
func NewClient(cfg config.ShopifyConfig, sess *Session) (*Client, error) {
	if sess == nil || sess.AccessToken == "" {
		return nil, ErrUnauthenticated
	}
	if sess.ExpiresAt != nil && time.Now().After(*sess.ExpiresAt) {
		return nil, ErrUnauthenticated
	}
	return &Client{
		httpClient: adminHTTPClient,
		endpoint:   fmt.Sprintf("https://%s/admin/api/%s/graphql.json", sess.Shop, cfg.APIVersion),
		token:      sess.AccessToken,
	}, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// graphql posts one query and decodes the data envelope into out.
// Top-level errors and non-2xx responses surface as *APIError with the
// response body intact; 401/403 map to ErrUnauthenticated.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]any, out any) error {
	bodyJSON, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024)) // max 64KB

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("HTTP %d: %w", resp.StatusCode, ErrUnauthenticated)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if len(envelope.Errors) > 0 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

type productNode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Collections struct {
		Nodes []struct {
			Title string `json:"title"`
		} `json:"nodes"`
	} `json:"collections"`
}

func (n *productNode) toProduct() Product {
	p := Product{ID: n.ID, Title: n.Title}
	for _, c := range n.Collections.Nodes {
		p.Collections = append(p.Collections, c.Title)
	}
	return p
}

// Product fetches one product with its collection titles. Returns
// ErrNotFound when the product no longer exists.
func (c *Client) Product(ctx context.Context, productID string) (*Product, error) {
	query := fmt.Sprintf(`{
		product(id: %q) {
			id
			title
			collections(first: %d) { nodes { title } }
		}
	}`, ProductGID(productID), collectionWindow)

	var data struct {
		Product *productNode `json:"product"`
	}
	if err := c.graphql(ctx, query, nil, &data); err != nil {
		return nil, fmt.Errorf("fetch product %s: %w", productID, err)
	}
	if data.Product == nil {
		return nil, ErrNotFound
	}
	p := data.Product.toProduct()
	return &p, nil
}

// Products fetches up to limit products, each with collection titles. The
// result is materialized before matching begins; there is no live cursor.
func (c *Client) Products(ctx context.Context, limit int) ([]Product, error) {
	query := fmt.Sprintf(`{
		products(first: %d) {
			nodes {
				id
				title
				collections(first: %d) { nodes { title } }
			}
		}
	}`, limit, collectionWindow)

	var data struct {
		Products struct {
			Nodes []productNode `json:"nodes"`
		} `json:"products"`
	}
	if err := c.graphql(ctx, query, nil, &data); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	products := make([]Product, 0, len(data.Products.Nodes))
	for i := range data.Products.Nodes {
		products = append(products, data.Products.Nodes[i].toProduct())
	}
	return products, nil
}

const metafieldsSetMutation = `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
	metafieldsSet(metafields: $metafields) {
		metafields { id namespace key value type }
		userErrors { field message }
	}
}`

// SetMetafield issues one metafield write. Structured userErrors come back
// as *MutationError; transport failures as *APIError. Neither is swallowed.
func (c *Client) SetMetafield(ctx context.Context, input MetafieldInput) error {
	var data struct {
		MetafieldsSet struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	err := c.graphql(ctx, metafieldsSetMutation, map[string]any{
		"metafields": []MetafieldInput{input},
	}, &data)
	if err != nil {
		return fmt.Errorf("set metafield %s.%s: %w", input.Namespace, input.Key, err)
	}
	if len(data.MetafieldsSet.UserErrors) > 0 {
		return &MutationError{UserErrors: data.MetafieldsSet.UserErrors}
	}
	return nil
}
