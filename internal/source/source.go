// Package source defines the boundary to external content providers.
package source

import (
	"context"

	contentdomain "github.com/tidewater/pulse/internal/content/domain"
)

// Usage reports provider consumption for one fetch.
type Usage struct {
	Provider     string
	Model        string
	TokensInput  int64
	TokensOutput int64
}

// FetchResult is a validated payload plus the usage it cost.
type FetchResult struct {
	Payload contentdomain.Payload
	Usage   Usage
}

// Adapter produces fresh content for exactly one category. Implementations
// make at most one outbound provider call per Fetch and never retry
// internally; the caller owns the deadline.
type Adapter interface {
	Category() contentdomain.Category
	Provider() string
	Fetch(ctx context.Context) (*FetchResult, error)
}
