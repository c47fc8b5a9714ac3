package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category identifies a pulse content stream with its own freshness window
// and source adapter.
type Category string

const (
	CategoryTrends    Category = "trends"
	CategoryHeadlines Category = "headlines"
)

// Categories returns all known categories in render order.
func Categories() []Category {
	return []Category{CategoryTrends, CategoryHeadlines}
}

// ParseCategory normalizes and validates a category name.
func ParseCategory(raw string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryTrends:
		return CategoryTrends, nil
	case CategoryHeadlines:
		return CategoryHeadlines, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
	}
}

func (c Category) String() string { return string(c) }

// DefaultTTL returns the built-in freshness window for the category.
func (c Category) DefaultTTL() time.Duration {
	switch c {
	case CategoryHeadlines:
		return 6 * time.Hour
	default:
		return 4 * time.Hour
	}
}
