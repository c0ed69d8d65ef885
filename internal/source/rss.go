package source

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mmcdole/gofeed"

	logx "digestbot/pkg/logx"
)

// rssSource polls one or more feeds and returns only entries it has not seen
// before. The first poll primes the seen set without returning anything, so a
// fresh start does not broadcast the feed's entire backlog.
type rssSource struct {
	feeds  []string
	parser *gofeed.Parser
	log    logx.Logger

	mu     sync.Mutex
	primed map[string]bool
	seen   map[string]map[string]bool // feed URL -> entry GUIDs
}

func openRSS(cfg Config, log logx.Logger) (Source, error) {
	feeds := make([]string, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		if f = strings.TrimSpace(f); f != "" {
			feeds = append(feeds, f)
		}
	}
	if len(feeds) == 0 {
		return nil, errors.New("rss source needs at least one feed url")
	}
	return &rssSource{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		log:    log,
		primed: map[string]bool{},
		seen:   map[string]map[string]bool{},
	}, nil
}

func (s *rssSource) FetchNew(ctx context.Context) ([]Item, error) {
	var out []Item
	var lastErr error

	for _, url := range s.feeds {
		feed, err := s.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			// One broken feed should not starve the others.
			s.log.Warn("rss fetch failed", logx.String("feed", url), logx.Err(err))
			lastErr = err
			continue
		}
		out = append(out, s.collect(url, feed)...)
	}

	if out == nil && lastErr != nil && len(s.feeds) == 1 {
		return nil, lastErr
	}
	return out, nil
}

func (s *rssSource) collect(url string, feed *gofeed.Feed) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := s.seen[url]
	if known == nil {
		known = map[string]bool{}
		s.seen[url] = known
	}
	priming := !s.primed[url]
	s.primed[url] = true

	var items []Item
	for _, e := range feed.Items {
		id := entryID(e)
		if id == "" || known[id] {
			continue
		}
		known[id] = true
		if priming {
			continue
		}
		items = append(items, Item{
			Title:   strings.TrimSpace(e.Title),
			Summary: strings.TrimSpace(e.Description),
			URL:     strings.TrimSpace(e.Link),
		})
	}
	return items
}

func entryID(e *gofeed.Item) string {
	if e.GUID != "" {
		return e.GUID
	}
	return e.Link
}
