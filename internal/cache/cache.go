// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package cache is the short-lived name-to-id lookup table kept under the
// config directory. CloudAPI only addresses resources by UUID; users type
// names. The cache spares one list round-trip per invocation without ever
// being authoritative: entries expire after a short TTL and a miss is
// always answered by the server.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// DefaultTTL is used when the config does not set cacheTtlSeconds.
const DefaultTTL = 300 * time.Second

// Entry is one cached resolution.
type Entry struct {
	bun.BaseModel `bun:"table:name_ids"`

	Kind      string `bun:"kind,pk"`
	Name      string `bun:"name,pk"`
	ID        string `bun:"id,notnull"`
	ExpiresAt int64  `bun:"expires_at,notnull"`
}

// Cache is a handle to the on-disk table. The zero value is not usable;
// call Open.
type Cache struct {
	db  *bun.DB
	ttl time.Duration
	now func() time.Time
}

// Open creates or opens <configDir>/cache.db. A non-positive ttl means
// DefaultTTL.
func Open(configDir string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	sqldb, err := sql.Open("sqlite", filepath.Join(configDir, "cache.db"))
	if err != nil {
		return nil, err
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.NewCreateTable().Model((*Entry)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Lookup returns the cached id for (kind, name), or false on a miss or an
// expired entry. Lookup errors degrade to misses; the cache never blocks a
// command that could just ask the server.
func (c *Cache) Lookup(ctx context.Context, kind, name string) (string, bool) {
	var e Entry
	err := c.db.NewSelect().Model(&e).
		Where("kind = ?", kind).Where("name = ?", name).
		Limit(1).Scan(ctx)
	if err != nil {
		return "", false
	}
	if c.now().Unix() >= e.ExpiresAt {
		_ = c.Invalidate(ctx, kind, name)
		return "", false
	}
	return e.ID, true
}

// Put records a resolution, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, kind, name, id string) error {
	e := &Entry{
		Kind:      kind,
		Name:      name,
		ID:        id,
		ExpiresAt: c.now().Add(c.ttl).Unix(),
	}
	_, err := c.db.NewInsert().Model(e).
		On("CONFLICT (kind, name) DO UPDATE").
		Set("id = EXCLUDED.id").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	return err
}

// Invalidate drops a single entry; missing entries are not an error.
func (c *Cache) Invalidate(ctx context.Context, kind, name string) error {
	_, err := c.db.NewDelete().Model((*Entry)(nil)).
		Where("kind = ?", kind).Where("name = ?", name).
		Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

// Purge drops every expired entry; used opportunistically on open paths
// that already paid for a connection.
func (c *Cache) Purge(ctx context.Context) error {
	_, err := c.db.NewDelete().Model((*Entry)(nil)).
		Where("expires_at <= ?", c.now().Unix()).
		Exec(ctx)
	return err
}
