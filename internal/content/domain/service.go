package domain

import (
	"context"
	"time"
)

// View is the read-path projection of a category's current content.
type View struct {
	Category    Category   `json:"category"`
	Items       []Item     `json:"items"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsStale     bool       `json:"is_stale"`
	Model       string     `json:"model,omitempty"`
}

// Service is the read path over cached content. Pure reads, no network.
type Service interface {
	// GetCategory returns the current view for one category, falling back to
	// the latest expired record when no fresh one exists. A category that has
	// never been fetched yields an empty view, not an error.
	GetCategory(ctx context.Context, category Category) (View, error)

	// GetAll returns views for every category in render order.
	GetAll(ctx context.Context) ([]View, error)
}
