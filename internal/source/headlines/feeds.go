package headlines

import (
	"strconv"
	"strings"
)

// Feed is one RSS source with a priority, lower sorts first.
type Feed struct {
	Name     string
	URL      string
	Priority int
}

func defaultFeeds() []Feed {
	return []Feed{
		{Name: "Virginian-Pilot", URL: "https://www.pilotonline.com/arc/outboundfeeds/rss/?outputType=xml", Priority: 1},
		{Name: "WAVY News 10", URL: "https://www.wavy.com/feed/", Priority: 2},
		{Name: "13 News Now", URL: "https://www.13newsnow.com/feeds/syndication/rss/news/local", Priority: 2},
		{Name: "Daily Press", URL: "https://www.dailypress.com/arc/outboundfeeds/rss/?outputType=xml", Priority: 2},
	}
}

// parseFeeds reads a "Name|URL|priority;Name|URL|priority" override string.
// A malformed or empty override keeps the built-in set.
func parseFeeds(raw string) []Feed {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultFeeds()
	}

	var feeds []Feed
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, "|")
		if len(fields) < 2 {
			continue
		}
		feed := Feed{
			Name:     strings.TrimSpace(fields[0]),
			URL:      strings.TrimSpace(fields[1]),
			Priority: 2,
		}
		if feed.Name == "" || feed.URL == "" {
			continue
		}
		if len(fields) >= 3 {
			if priority, err := strconv.Atoi(strings.TrimSpace(fields[2])); err == nil && priority > 0 {
				feed.Priority = priority
			}
		}
		feeds = append(feeds, feed)
	}
	if len(feeds) == 0 {
		return defaultFeeds()
	}
	return feeds
}
