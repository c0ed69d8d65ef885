package source

import (
	"context"
	"fmt"
	"strings"

	"digestbot/internal/postgrest"
	logx "digestbot/pkg/logx"
)

const defaultFetchFunction = "fetch_and_update_tech_news"

// rpcSource calls a stored procedure that atomically returns the pending
// items and marks them consumed, so the server owns deduplication and a bot
// restart never replays history.
type rpcSource struct {
	client *postgrest.Client
	fn     string
	log    logx.Logger
}

func openRPC(cfg Config, log logx.Logger) (Source, error) {
	c, err := postgrest.NewClient(cfg.URL, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	fn := strings.TrimSpace(cfg.Function)
	if fn == "" {
		fn = defaultFetchFunction
	}
	return &rpcSource{client: c, fn: fn, log: log}, nil
}

func (s *rpcSource) FetchNew(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := s.client.RPC(ctx, s.fn, nil, &items); err != nil {
		return nil, fmt.Errorf("%s: %w", s.fn, err)
	}
	return items, nil
}
