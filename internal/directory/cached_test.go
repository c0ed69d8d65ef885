package directory

import (
	"context"
	"testing"
	"time"
)

// countingDirectory records how many times each lookup hits the backend.
type countingDirectory struct {
	Directory

	categories []Category
	descs      map[int64]string

	categoriesCalls int
	descCalls       int
}

func (d *countingDirectory) Categories(ctx context.Context) ([]Category, error) {
	d.categoriesCalls++
	return d.categories, nil
}

func (d *countingDirectory) CategoryDescription(ctx context.Context, id int64) (string, error) {
	d.descCalls++
	return d.descs[id], nil
}

func (d *countingDirectory) AddCategory(ctx context.Context, name, desc string) (int64, error) {
	return 42, nil
}

func (d *countingDirectory) Close() error { return nil }

func TestCachedCategoriesRespectsTTL(t *testing.T) {
	t.Parallel()
	backend := &countingDirectory{categories: []Category{{ID: 1, Name: "tech"}}}
	c := NewCached(backend, time.Hour)

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := c.Categories(ctx)
		if err != nil {
			t.Fatalf("Categories error: %v", err)
		}
		if len(got) != 1 || got[0].Name != "tech" {
			t.Fatalf("unexpected categories: %+v", got)
		}
	}
	if backend.categoriesCalls != 1 {
		t.Fatalf("backend calls = %d, want 1", backend.categoriesCalls)
	}

	// Past the TTL the next read refreshes.
	now = now.Add(time.Hour + time.Second)
	if _, err := c.Categories(ctx); err != nil {
		t.Fatalf("Categories error: %v", err)
	}
	if backend.categoriesCalls != 2 {
		t.Fatalf("backend calls = %d, want 2 after expiry", backend.categoriesCalls)
	}
}

func TestCachedDescriptionClearedOnWrite(t *testing.T) {
	t.Parallel()
	backend := &countingDirectory{descs: map[int64]string{7: "about tech"}}
	c := NewCached(backend, time.Hour)

	ctx := context.Background()
	if _, err := c.CategoryDescription(ctx, 7); err != nil {
		t.Fatalf("CategoryDescription error: %v", err)
	}
	if _, err := c.CategoryDescription(ctx, 7); err != nil {
		t.Fatalf("CategoryDescription error: %v", err)
	}
	if backend.descCalls != 1 {
		t.Fatalf("backend calls = %d, want 1", backend.descCalls)
	}

	// A category write invalidates cached lookups.
	if _, err := c.AddCategory(ctx, "new", "desc"); err != nil {
		t.Fatalf("AddCategory error: %v", err)
	}
	if _, err := c.CategoryDescription(ctx, 7); err != nil {
		t.Fatalf("CategoryDescription error: %v", err)
	}
	if backend.descCalls != 2 {
		t.Fatalf("backend calls = %d, want 2 after invalidation", backend.descCalls)
	}
}
