// Package headlines builds a local-news digest: RSS feeds in, one
// Anthropic-messages summarization call out.
package headlines

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/tidewater/pulse/internal/config"
	contentdomain "github.com/tidewater/pulse/internal/content/domain"
	"github.com/tidewater/pulse/internal/source"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const providerName = "anthropic"

const anthropicVersion = "2023-06-01"

const (
	maxPoolItems    = 20
	maxItemsPerFeed = 10
	maxSnippetLen   = 300
)

const promptTemplate = `You are a local news editor for a Hampton Roads, Virginia RELOCATION GUIDE website.

Your audience is people considering moving to Hampton Roads. Select 5-6 stories that showcase the region positively while still being informative.

NEWS ITEMS:
%s

Return JSON in this exact format (no markdown, just raw JSON):
{
    "items": [
        {
            "headline": "Clear, engaging headline (rewrite if needed for clarity)",
            "summary": "1-2 sentence summary of why this matters to local residents",
            "source": "Original source name",
            "category": "development|traffic|events|weather|crime|politics|business|community|military"
        }
    ]
}

CONTENT PRIORITIES (in order):
1. Community events, festivals, things to do
2. New business openings, restaurant news, economic development
3. Military community news (this is a major military region)
4. Infrastructure/development projects
5. Weather alerts (only if significant)
6. Local politics that affect quality of life

STRICT LIMITS:
- Maximum 1 crime/accident story, and ONLY if it's a major public safety issue (not routine crime)
- NO shootings, murders, or violent crime unless it's an extraordinary regional emergency
- NO routine traffic accidents
- NO obituaries or death notices
- NO national news without strong local angle

Remember: People use this site to decide if they want to MOVE here. Show them a vibrant, welcoming community.`

type Adapter struct {
	log    *zap.Logger
	cfg    config.HeadlinesConfig
	feeds  []Feed
	parser *gofeed.Parser
	client *http.Client
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func New(p Params) *Adapter {
	return &Adapter{
		log:    p.Log.Named("source.headlines"),
		cfg:    p.Config.Headlines,
		feeds:  parseFeeds(p.Config.Headlines.Feeds),
		parser: gofeed.NewParser(),
		client: &http.Client{},
	}
}

func (a *Adapter) Category() contentdomain.Category { return contentdomain.CategoryHeadlines }

func (a *Adapter) Provider() string { return providerName }

type newsItem struct {
	Title    string
	Snippet  string
	Source   string
	Priority int
}

// Fetch pulls the RSS pool and makes one summarization call.
func (a *Adapter) Fetch(ctx context.Context) (*source.FetchResult, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not configured", source.ErrAuthenticationFailed)
	}

	pool, sources := a.fetchPool(ctx)
	if len(pool) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: no items from any feed", source.ErrProviderUnavailable)
	}

	result, err := a.summarize(ctx, pool)
	if err != nil {
		return nil, err
	}
	result.Payload.SourcesChecked = sources
	return result, nil
}

// fetchPool reads each feed, strips HTML, and keeps a priority-ordered pool.
// Individual feed failures are logged and skipped.
func (a *Adapter) fetchPool(ctx context.Context) ([]newsItem, []string) {
	var pool []newsItem
	seen := map[string]bool{}
	var sources []string

	for _, feed := range a.feeds {
		parsed, err := a.parser.ParseURLWithContext(feed.URL, ctx)
		if err != nil {
			a.log.Warn("feed fetch failed",
				zap.String("feed", feed.Name),
				zap.Error(err),
			)
			continue
		}

		count := 0
		for _, entry := range parsed.Items {
			if count >= maxItemsPerFeed {
				break
			}
			title := strings.TrimSpace(entry.Title)
			if title == "" {
				continue
			}
			snippet := entry.Description
			if snippet == "" {
				snippet = entry.Content
			}
			pool = append(pool, newsItem{
				Title:    title,
				Snippet:  truncate(stripHTML(snippet), maxSnippetLen),
				Source:   feed.Name,
				Priority: feed.Priority,
			})
			count++
		}
		if count > 0 && !seen[feed.Name] {
			seen[feed.Name] = true
			sources = append(sources, feed.Name)
		}
		a.log.Debug("feed fetched",
			zap.String("feed", feed.Name),
			zap.Int("items", count),
		)
	}

	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Priority < pool[j].Priority })
	if len(pool) > maxPoolItems {
		pool = pool[:maxPoolItems]
	}
	return pool, sources
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

func (a *Adapter) summarize(ctx context.Context, pool []newsItem) (*source.FetchResult, error) {
	var formatted strings.Builder
	for i, item := range pool {
		if i > 0 {
			formatted.WriteString("\n\n")
		}
		fmt.Fprintf(&formatted, "SOURCE: %s\nHEADLINE: %s\nSNIPPET: %s", item.Source, item.Title, item.Snippet)
	}

	body, err := json.Marshal(messagesRequest{
		Model:     a.cfg.Model,
		MaxTokens: 1000,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(promptTemplate, formatted.String())},
		},
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", source.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", source.ErrProviderUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, source.ClassifyStatus(resp.StatusCode, string(raw))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrInvalidResponseShape, err)
	}
	if len(parsed.Content) == 0 {
		return nil, fmt.Errorf("%w: empty content in response", source.ErrInvalidResponseShape)
	}

	payload, err := source.DecodePayload(parsed.Content[0].Text, contentdomain.CategoryHeadlines)
	if err != nil {
		return nil, err
	}
	payload.Items = applyEditorialFilter(payload.Items)
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("%w: every item filtered out", source.ErrInvalidResponseShape)
	}

	model := parsed.Model
	if model == "" {
		model = a.cfg.Model
	}

	a.log.Info("headlines summarized",
		zap.Int("items", len(payload.Items)),
		zap.Int64("tokens_input", parsed.Usage.InputTokens),
		zap.Int64("tokens_output", parsed.Usage.OutputTokens),
	)

	return &source.FetchResult{
		Payload: payload,
		Usage: source.Usage{
			Provider:     providerName,
			Model:        model,
			TokensInput:  parsed.Usage.InputTokens,
			TokensOutput: parsed.Usage.OutputTokens,
		},
	}, nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

func stripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, " ")))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var Module = fx.Module("source.headlines",
	fx.Provide(
		fx.Annotate(New,
			fx.As(new(source.Adapter)),
			fx.ResultTags(`group:"adapters"`),
		),
	),
)
