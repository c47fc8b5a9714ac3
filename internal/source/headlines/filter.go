package headlines

import (
	"strings"

	contentdomain "github.com/tidewater/pulse/internal/content/domain"
)

var obituaryMarkers = []string{
	"obituary",
	"obituaries",
	"death notice",
	"dies at",
	"dead at",
	"passes away",
}

// applyEditorialFilter enforces limits the prompt asks for but the model
// sometimes ignores: at most one crime story and no obituary-like items.
func applyEditorialFilter(items []contentdomain.Item) []contentdomain.Item {
	filtered := make([]contentdomain.Item, 0, len(items))
	crimeSeen := false
	for _, item := range items {
		if isObituaryLike(item) {
			continue
		}
		if item.Tag == "crime" {
			if crimeSeen {
				continue
			}
			crimeSeen = true
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func isObituaryLike(item contentdomain.Item) bool {
	text := strings.ToLower(item.Headline + " " + item.Summary)
	for _, marker := range obituaryMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
