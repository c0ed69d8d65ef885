package directory

import (
	"context"
	"fmt"

	"digestbot/internal/postgrest"
	logx "digestbot/pkg/logx"
)

// rpcDirectory talks to a PostgREST endpoint whose stored procedures own the
// subscription schema. Audience reads are wrapped in ResolutionError so the
// mailer can distinguish "lookup failed" from "nobody subscribed".
type rpcDirectory struct {
	client *postgrest.Client
	log    logx.Logger
}

func openRPC(cfg Config, log logx.Logger) (Directory, error) {
	c, err := postgrest.NewClient(cfg.URL, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return &rpcDirectory{client: c, log: log}, nil
}

func (d *rpcDirectory) Categories(ctx context.Context) ([]Category, error) {
	var rows []struct {
		ID   int64  `json:"id"`
		Name string `json:"category_name"`
	}
	if err := d.client.RPC(ctx, "get_all_categories", nil, &rows); err != nil {
		return nil, fmt.Errorf("get_all_categories: %w", err)
	}
	out := make([]Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, Category{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (d *rpcDirectory) CategoryDescription(ctx context.Context, categoryID int64) (string, error) {
	var desc string
	err := d.client.RPC(ctx, "get_category_description", map[string]any{"p_cat_id": categoryID}, &desc)
	if err != nil {
		return "", fmt.Errorf("get_category_description: %w", err)
	}
	return desc, nil
}

func (d *rpcDirectory) CategorySubscribers(ctx context.Context, categoryID int64) ([]int64, error) {
	var rows []struct {
		UserID int64 `json:"user_id"`
	}
	q := fmt.Sprintf("select=user_id&category_id=eq.%d", categoryID)
	if err := d.client.Select(ctx, "user_subscriptions", q, &rows); err != nil {
		return nil, &ResolutionError{Op: "category subscribers", Err: err}
	}
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.UserID)
	}
	return out, nil
}

func (d *rpcDirectory) AllRecipients(ctx context.Context) ([]int64, error) {
	var rows []struct {
		UserID int64 `json:"user_id"`
	}
	if err := d.client.RPC(ctx, "get_all_users", nil, &rows); err != nil {
		return nil, &ResolutionError{Op: "all recipients", Err: err}
	}
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.UserID)
	}
	return out, nil
}

func (d *rpcDirectory) UserSubscriptions(ctx context.Context, userID int64) ([]int64, error) {
	var rows []struct {
		CategoryID int64 `json:"category_id"`
	}
	if err := d.client.RPC(ctx, "get_user_subscriptions", map[string]any{"p_user_id": userID}, &rows); err != nil {
		return nil, fmt.Errorf("get_user_subscriptions: %w", err)
	}
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.CategoryID)
	}
	return out, nil
}

func (d *rpcDirectory) UpdateUserSubscriptions(ctx context.Context, userID int64, categoryIDs []int64) error {
	if categoryIDs == nil {
		categoryIDs = []int64{}
	}
	args := map[string]any{"p_user_id": userID, "p_category_ids": categoryIDs}
	if err := d.client.RPC(ctx, "update_user_subscriptions", args, nil); err != nil {
		return fmt.Errorf("update_user_subscriptions: %w", err)
	}
	return nil
}

func (d *rpcDirectory) AddCategory(ctx context.Context, name, description string) (int64, error) {
	var id int64
	args := map[string]any{"p_name": name, "p_description": description}
	if err := d.client.RPC(ctx, "add_new_category", args, &id); err != nil {
		return 0, fmt.Errorf("add_new_category: %w", err)
	}
	return id, nil
}

func (d *rpcDirectory) UpdateCategoryField(ctx context.Context, categoryID int64, field CategoryField, value string) error {
	args := map[string]any{"p_id": categoryID, "p_field": string(field), "p_value": value}
	if err := d.client.RPC(ctx, "update_category_field", args, nil); err != nil {
		return fmt.Errorf("update_category_field: %w", err)
	}
	return nil
}

func (d *rpcDirectory) DeleteCategory(ctx context.Context, categoryID int64) error {
	if err := d.client.RPC(ctx, "delete_category", map[string]any{"p_id": categoryID}, nil); err != nil {
		return fmt.Errorf("delete_category: %w", err)
	}
	return nil
}

func (d *rpcDirectory) SubscriberCount(ctx context.Context) (int, error) {
	var n int
	if err := d.client.RPC(ctx, "get_unique_subscribers_count", nil, &n); err != nil {
		return 0, fmt.Errorf("get_unique_subscribers_count: %w", err)
	}
	return n, nil
}

func (d *rpcDirectory) CategoryStats(ctx context.Context) ([]CategoryStat, error) {
	var rows []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := d.client.RPC(ctx, "get_categories_stats", nil, &rows); err != nil {
		return nil, fmt.Errorf("get_categories_stats: %w", err)
	}
	out := make([]CategoryStat, 0, len(rows))
	for _, r := range rows {
		out = append(out, CategoryStat{Name: r.Name, Subscribers: r.Count})
	}
	return out, nil
}

func (d *rpcDirectory) Close() error { return nil }
