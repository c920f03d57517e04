// Package sessions persists offline shop sessions and turns them into
// authenticated catalog clients.
package sessions

import (
	"context"
	"fmt"
	"time"

	"metafields-backend/internal/catalog"
	"metafields-backend/internal/config"
	"metafields-backend/internal/store"
)

// Repo reads and writes shop_sessions. Records are opaque to the engine;
// only the provider interprets them.
type Repo struct {
	store *store.Store
}

func NewRepo(s *store.Store) *Repo {
	return &Repo{store: s}
}

// Get returns the stored offline session for a shop, or store.ErrNotFound.
func (r *Repo) Get(ctx context.Context, shop string) (*catalog.Session, error) {
	pb := r.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, r.store.DB,
		fmt.Sprintf("SELECT id, shop, access_token, scope, expires_at FROM shop_sessions WHERE shop = %s", pb.Add(shop)),
		pb.Params()...)
	if err != nil {
		return nil, err
	}
	return sessionFromRow(row), nil
}

// Put stores or replaces the session for its shop.
func (r *Repo) Put(ctx context.Context, sess *catalog.Session) error {
	id := sess.ID
	if id == "" {
		id = "offline_" + sess.Shop
	}
	pb := r.store.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, r.store.DB,
		fmt.Sprintf(`INSERT INTO shop_sessions (id, shop, access_token, scope, expires_at)
		 VALUES (%s, %s, %s, %s, %s)
		 ON CONFLICT (id) DO UPDATE SET access_token = excluded.access_token, scope = excluded.scope,
		 expires_at = excluded.expires_at, updated_at = %s`,
			pb.Add(id), pb.Add(sess.Shop), pb.Add(sess.AccessToken), pb.Add(sess.Scope), pb.Add(sess.ExpiresAt),
			r.store.Dialect.NowExpr()),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("put session for %s: %w", sess.Shop, err)
	}
	return nil
}

// ClearAll deletes every stored session and returns the count removed.
func (r *Repo) ClearAll(ctx context.Context) (int64, error) {
	n, err := store.Exec(ctx, r.store.DB, "DELETE FROM shop_sessions")
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	return n, nil
}

func sessionFromRow(row map[string]any) *catalog.Session {
	sess := &catalog.Session{}
	if s, ok := row["id"].(string); ok {
		sess.ID = s
	}
	if s, ok := row["shop"].(string); ok {
		sess.Shop = s
	}
	if s, ok := row["access_token"].(string); ok {
		sess.AccessToken = s
	}
	if s, ok := row["scope"].(string); ok {
		sess.Scope = s
	}
	if t, ok := row["expires_at"].(time.Time); ok {
		sess.ExpiresAt = &t
	}
	return sess
}

// Provider yields catalog clients for shops with a stored session.
type Provider struct {
	repo *Repo
	cfg  config.ShopifyConfig
}

func NewProvider(repo *Repo, cfg config.ShopifyConfig) *Provider {
	return &Provider{repo: repo, cfg: cfg}
}

// Client loads the shop's session and builds an authenticated catalog
// client. A missing or dead session surfaces as catalog.ErrUnauthenticated.
func (p *Provider) Client(ctx context.Context, shop string) (*catalog.Client, error) {
	sess, err := p.repo.Get(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("no session for %s: %w", shop, catalog.ErrUnauthenticated)
	}
	return catalog.NewClient(p.cfg, sess)
}
