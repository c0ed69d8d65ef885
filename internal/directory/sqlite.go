package directory

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "digestbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteDirectory is the self-hosted mode: the subscription schema lives in a
// local SQLite file instead of a hosted Postgres.
type sqliteDirectory struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Directory, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	d := &sqliteDirectory{db: db, log: log}
	if err := d.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *sqliteDirectory) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, string(b))
	return err
}

func (d *sqliteDirectory) Close() error { return d.db.Close() }

func (d *sqliteDirectory) Categories(ctx context.Context) ([]Category, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, description FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *sqliteDirectory) CategoryDescription(ctx context.Context, categoryID int64) (string, error) {
	var desc string
	err := d.db.QueryRowContext(ctx, `SELECT description FROM categories WHERE id = ?`, categoryID).Scan(&desc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return desc, err
}

func (d *sqliteDirectory) CategorySubscribers(ctx context.Context, categoryID int64) ([]int64, error) {
	ids, err := d.queryIDs(ctx, `SELECT user_id FROM user_subscriptions WHERE category_id = ? ORDER BY user_id`, categoryID)
	if err != nil {
		return nil, &ResolutionError{Op: "category subscribers", Err: err}
	}
	return ids, nil
}

func (d *sqliteDirectory) AllRecipients(ctx context.Context) ([]int64, error) {
	ids, err := d.queryIDs(ctx, `SELECT DISTINCT user_id FROM user_subscriptions ORDER BY user_id`)
	if err != nil {
		return nil, &ResolutionError{Op: "all recipients", Err: err}
	}
	return ids, nil
}

func (d *sqliteDirectory) UserSubscriptions(ctx context.Context, userID int64) ([]int64, error) {
	return d.queryIDs(ctx, `SELECT category_id FROM user_subscriptions WHERE user_id = ? ORDER BY category_id`, userID)
}

func (d *sqliteDirectory) UpdateUserSubscriptions(ctx context.Context, userID int64, categoryIDs []int64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_subscriptions WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, cid := range categoryIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_subscriptions(user_id, category_id) VALUES(?, ?)`, userID, cid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *sqliteDirectory) AddCategory(ctx context.Context, name, description string) (int64, error) {
	res, err := d.db.ExecContext(ctx, `INSERT INTO categories(name, description) VALUES(?, ?)`, name, description)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *sqliteDirectory) UpdateCategoryField(ctx context.Context, categoryID int64, field CategoryField, value string) error {
	switch field {
	case FieldName:
		_, err := d.db.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, value, categoryID)
		return err
	case FieldDescription:
		_, err := d.db.ExecContext(ctx, `UPDATE categories SET description = ? WHERE id = ?`, value, categoryID)
		return err
	default:
		return fmt.Errorf("unknown category field %q", field)
	}
}

func (d *sqliteDirectory) DeleteCategory(ctx context.Context, categoryID int64) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, categoryID)
	return err
}

func (d *sqliteDirectory) SubscriberCount(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT user_id) FROM user_subscriptions`).Scan(&n)
	return n, err
}

func (d *sqliteDirectory) CategoryStats(ctx context.Context) ([]CategoryStat, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT c.name, COUNT(s.user_id)
		 FROM categories c
		 LEFT JOIN user_subscriptions s ON s.category_id = c.id
		 GROUP BY c.id ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategoryStat
	for rows.Next() {
		var st CategoryStat
		if err := rows.Scan(&st.Name, &st.Subscribers); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (d *sqliteDirectory) queryIDs(ctx context.Context, q string, args ...any) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
