package directory

import (
	"context"
	"sync"
	"time"
)

// Cached wraps a Directory with a time-bounded cache over the hot lookups
// (category list and descriptions, which back every menu render). Any
// category write clears the cache so admin edits are visible immediately.
//
// Subscription and audience reads are never cached: a broadcast must always
// resolve recipients fresh.
type Cached struct {
	Directory

	ttl time.Duration
	now func() time.Time

	mu         sync.Mutex
	categories *listEntry
	descs      map[int64]descEntry
}

type listEntry struct {
	items   []Category
	expires time.Time
}

type descEntry struct {
	desc    string
	expires time.Time
}

func NewCached(d Directory, ttl time.Duration) *Cached {
	return &Cached{
		Directory: d,
		ttl:       ttl,
		now:       time.Now,
		descs:     map[int64]descEntry{},
	}
}

func (c *Cached) Categories(ctx context.Context) ([]Category, error) {
	now := c.now()

	c.mu.Lock()
	if e := c.categories; e != nil && now.Before(e.expires) {
		items := append([]Category(nil), e.items...)
		c.mu.Unlock()
		return items, nil
	}
	c.mu.Unlock()

	items, err := c.Directory.Categories(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.categories = &listEntry{items: append([]Category(nil), items...), expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return items, nil
}

func (c *Cached) CategoryDescription(ctx context.Context, categoryID int64) (string, error) {
	now := c.now()

	c.mu.Lock()
	if e, ok := c.descs[categoryID]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.desc, nil
	}
	c.mu.Unlock()

	desc, err := c.Directory.CategoryDescription(ctx, categoryID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.descs[categoryID] = descEntry{desc: desc, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return desc, nil
}

func (c *Cached) AddCategory(ctx context.Context, name, description string) (int64, error) {
	id, err := c.Directory.AddCategory(ctx, name, description)
	if err == nil {
		c.clear()
	}
	return id, err
}

func (c *Cached) UpdateCategoryField(ctx context.Context, categoryID int64, field CategoryField, value string) error {
	err := c.Directory.UpdateCategoryField(ctx, categoryID, field, value)
	if err == nil {
		c.clear()
	}
	return err
}

func (c *Cached) DeleteCategory(ctx context.Context, categoryID int64) error {
	err := c.Directory.DeleteCategory(ctx, categoryID)
	if err == nil {
		c.clear()
	}
	return err
}

func (c *Cached) clear() {
	c.mu.Lock()
	c.categories = nil
	c.descs = map[int64]descEntry{}
	c.mu.Unlock()
}
