package headlines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidewater/pulse/internal/config"
	contentdomain "github.com/tidewater/pulse/internal/content/domain"
	"github.com/tidewater/pulse/internal/source"
	"go.uber.org/zap"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>%s</title>
%s
</channel></rss>`

func rssItem(title, description string) string {
	return fmt.Sprintf("<item><title>%s</title><description>%s</description></item>", title, description)
}

func newFeedServer(t *testing.T, name string, items ...string) *httptest.Server {
	t.Helper()
	body := fmt.Sprintf(rssTemplate, name, strings.Join(items, "\n"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func messagesBody(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"model": "claude-haiku-4-5-20251001",
		"content": []map[string]any{
			{"type": "text", "text": content},
		},
		"usage": map[string]any{
			"input_tokens":  900,
			"output_tokens": 210,
		},
	})
	return body
}

func newTestAdapter(t *testing.T, anthropicURL, apiKey, feeds string) *Adapter {
	t.Helper()
	return New(Params{
		Config: config.Config{
			Headlines: config.HeadlinesConfig{
				BaseURL: anthropicURL,
				APIKey:  apiKey,
				Model:   "claude-haiku-4-5-20251001",
				Feeds:   feeds,
			},
		},
		Log: zap.NewNop(),
	})
}

func TestFetchPipeline(t *testing.T) {
	feedA := newFeedServer(t, "Pilot",
		rssItem("Bridge project finishes early", "<p>The span reopens &amp; tolls drop.</p>"),
		rssItem("Festival returns to the oceanfront", "Music all weekend"),
	)
	feedB := newFeedServer(t, "Wire",
		rssItem("New brewery opens downtown", "Taproom seats 80"),
	)

	digest := `{"items":[
		{"headline":"Bridge reopens ahead of schedule","summary":"Commutes improve","source":"Pilot","category":"development"},
		{"headline":"Oceanfront festival this weekend","summary":"Free shows","source":"Pilot","category":"events"}
	]}`

	var gotPrompt string
	anthropic := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}
		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) == 1 {
			gotPrompt = req.Messages[0].Content
		}
		w.Write(messagesBody("```json\n" + digest + "\n```"))
	}))
	defer anthropic.Close()

	feeds := fmt.Sprintf("Pilot|%s|1;Wire|%s|2", feedA.URL, feedB.URL)
	adapter := newTestAdapter(t, anthropic.URL, "test-key", feeds)

	result, err := adapter.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Payload.Items) != 2 {
		t.Fatalf("unexpected items: %+v", result.Payload.Items)
	}
	if len(result.Payload.SourcesChecked) != 2 {
		t.Fatalf("sources_checked = %v", result.Payload.SourcesChecked)
	}
	if result.Usage.TokensInput != 900 || result.Usage.TokensOutput != 210 {
		t.Fatalf("unexpected usage: %+v", result.Usage)
	}

	// HTML must be stripped from snippets before they reach the prompt.
	if strings.Contains(gotPrompt, "<p>") {
		t.Fatalf("prompt still contains HTML: %s", gotPrompt)
	}
	if !strings.Contains(gotPrompt, "tolls drop") {
		t.Fatalf("prompt missing snippet text: %s", gotPrompt)
	}
	if !strings.Contains(gotPrompt, "SOURCE: Pilot") {
		t.Fatalf("prompt missing source labels")
	}
}

func TestFetchAllFeedsDown(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer dead.Close()

	adapter := newTestAdapter(t, "http://unused", "test-key", "Dead|"+dead.URL+"|1")
	_, err := adapter.Fetch(context.Background())
	if !errors.Is(err, source.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestFetchMissingKey(t *testing.T) {
	adapter := newTestAdapter(t, "http://unused", "", "")
	_, err := adapter.Fetch(context.Background())
	if !errors.Is(err, source.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestEditorialFilter(t *testing.T) {
	items := []contentdomain.Item{
		{Headline: "Brewery opens", Summary: "Taproom", Tag: "business"},
		{Headline: "Robbery downtown", Summary: "Suspect sought", Tag: "crime"},
		{Headline: "Second robbery", Summary: "Same block", Tag: "crime"},
		{Headline: "Longtime coach dies at 88", Summary: "Community mourns", Tag: "community"},
	}
	filtered := applyEditorialFilter(items)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 items after filter, got %d: %+v", len(filtered), filtered)
	}
	crime := 0
	for _, item := range filtered {
		if item.Tag == "crime" {
			crime++
		}
		if strings.Contains(item.Headline, "dies at") {
			t.Fatalf("obituary-like item survived: %+v", item)
		}
	}
	if crime != 1 {
		t.Fatalf("expected exactly 1 crime item, got %d", crime)
	}
}

func TestParseFeeds(t *testing.T) {
	if feeds := parseFeeds(""); len(feeds) != 4 {
		t.Fatalf("empty override should keep defaults, got %d", len(feeds))
	}
	feeds := parseFeeds("A|http://a.example|1; B|http://b.example ;junk")
	if len(feeds) != 2 {
		t.Fatalf("expected 2 parsed feeds, got %d: %+v", len(feeds), feeds)
	}
	if feeds[0].Priority != 1 || feeds[1].Priority != 2 {
		t.Fatalf("priorities wrong: %+v", feeds)
	}
	if feeds := parseFeeds("|;||"); len(feeds) != 4 {
		t.Fatalf("all-junk override should fall back to defaults")
	}
}

func TestTagNormalization(t *testing.T) {
	payload := contentdomain.Payload{Items: []contentdomain.Item{
		{Headline: "Story", Summary: "Details", Tag: "Sports"},
	}}
	if err := payload.Validate(contentdomain.CategoryHeadlines); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if payload.Items[0].Tag != "community" {
		t.Fatalf("unknown tag should map to community, got %q", payload.Items[0].Tag)
	}
}
