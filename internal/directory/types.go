package directory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Category is a topical subscription bucket users opt into.
type Category struct {
	ID          int64
	Name        string
	Description string
}

// CategoryStat is one row of the admin statistics view.
type CategoryStat struct {
	Name        string
	Subscribers int
}

// CategoryField names a mutable category attribute.
type CategoryField string

const (
	FieldName        CategoryField = "name"
	FieldDescription CategoryField = "description"
)

// ResolutionError marks a failed audience lookup. Callers treat it as
// "no recipients" after logging; it never aborts the surrounding run.
type ResolutionError struct {
	Op  string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("directory: %s: %v", e.Op, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// IsResolution reports whether err is a recipient-resolution failure.
func IsResolution(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// Directory is the category/subscription store.
//
// Recipient ids are opaque: for Telegram they happen to equal chat ids,
// but nothing in this package depends on that.
type Directory interface {
	Categories(ctx context.Context) ([]Category, error)
	CategoryDescription(ctx context.Context, categoryID int64) (string, error)

	// CategorySubscribers resolves the audience of one category.
	CategorySubscribers(ctx context.Context, categoryID int64) ([]int64, error)
	// AllRecipients resolves the full audience (admin broadcasts).
	AllRecipients(ctx context.Context) ([]int64, error)

	UserSubscriptions(ctx context.Context, userID int64) ([]int64, error)
	// UpdateUserSubscriptions replaces the user's subscription set atomically.
	UpdateUserSubscriptions(ctx context.Context, userID int64, categoryIDs []int64) error

	AddCategory(ctx context.Context, name, description string) (int64, error)
	UpdateCategoryField(ctx context.Context, categoryID int64, field CategoryField, value string) error
	DeleteCategory(ctx context.Context, categoryID int64) error

	SubscriberCount(ctx context.Context) (int, error)
	CategoryStats(ctx context.Context) ([]CategoryStat, error)

	Close() error
}

// Config configures the directory driver; see config.DirectoryConfig.
type Config struct {
	Driver      string
	URL         string
	APIKey      string
	Path        string
	BusyTimeout time.Duration
	CacheTTL    time.Duration
}
