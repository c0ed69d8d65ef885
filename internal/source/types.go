package source

import "context"

// Item is one piece of content ready for broadcast.
type Item struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// Source delivers items that have not been broadcast yet. Implementations own
// the "seen" bookkeeping: a second FetchNew must not return items the first
// one already delivered.
type Source interface {
	FetchNew(ctx context.Context) ([]Item, error)
}

// Config selects and parameterizes a source driver.
type Config struct {
	Driver   string
	URL      string
	APIKey   string
	Function string
	Feeds    []string
}
