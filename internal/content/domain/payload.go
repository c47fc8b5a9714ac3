package domain

import (
	"fmt"
	"strings"
)

const (
	// MaxTrendsItems caps a trends payload.
	MaxTrendsItems = 5
	// MaxHeadlineItems caps a headlines payload.
	MaxHeadlineItems = 6
)

// Payload is the category-tagged document stored per record.
type Payload struct {
	Items          []Item   `json:"items"`
	QueryUsed      string   `json:"query_used,omitempty"`
	SourcesChecked []string `json:"sources_checked,omitempty"`
}

// Item carries category-specific fields; unused fields stay empty.
type Item struct {
	// trends
	Topic     string `json:"topic,omitempty"`
	Sentiment string `json:"sentiment,omitempty"`
	Relevance string `json:"relevance,omitempty"`

	// headlines
	Headline string `json:"headline,omitempty"`
	Source   string `json:"source,omitempty"`
	Tag      string `json:"category,omitempty"`

	Summary string `json:"summary"`
}

var sentiments = map[string]bool{
	"positive": true,
	"negative": true,
	"neutral":  true,
}

var headlineTags = map[string]bool{
	"development": true,
	"traffic":     true,
	"events":      true,
	"weather":     true,
	"crime":       true,
	"politics":    true,
	"business":    true,
	"community":   true,
	"military":    true,
}

// Validate checks the payload against the category's schema and normalizes
// enumerated fields in place.
func (p *Payload) Validate(category Category) error {
	if p == nil {
		return fmt.Errorf("nil payload")
	}
	if len(p.Items) == 0 {
		return fmt.Errorf("payload has no items")
	}

	switch category {
	case CategoryTrends:
		if len(p.Items) > MaxTrendsItems {
			p.Items = p.Items[:MaxTrendsItems]
		}
		for i := range p.Items {
			item := &p.Items[i]
			if strings.TrimSpace(item.Topic) == "" {
				return fmt.Errorf("trends item %d missing topic", i)
			}
			if strings.TrimSpace(item.Summary) == "" {
				return fmt.Errorf("trends item %d missing summary", i)
			}
			item.Sentiment = strings.ToLower(strings.TrimSpace(item.Sentiment))
			if !sentiments[item.Sentiment] {
				item.Sentiment = "neutral"
			}
		}
	case CategoryHeadlines:
		if len(p.Items) > MaxHeadlineItems {
			p.Items = p.Items[:MaxHeadlineItems]
		}
		for i := range p.Items {
			item := &p.Items[i]
			if strings.TrimSpace(item.Headline) == "" {
				return fmt.Errorf("headlines item %d missing headline", i)
			}
			if strings.TrimSpace(item.Summary) == "" {
				return fmt.Errorf("headlines item %d missing summary", i)
			}
			item.Tag = strings.ToLower(strings.TrimSpace(item.Tag))
			if !headlineTags[item.Tag] {
				item.Tag = "community"
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	return nil
}
