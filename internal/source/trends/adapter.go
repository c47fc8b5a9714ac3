// Package trends fetches trending local topics from an OpenAI-compatible
// chat-completions endpoint.
package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidewater/pulse/internal/config"
	contentdomain "github.com/tidewater/pulse/internal/content/domain"
	"github.com/tidewater/pulse/internal/source"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const providerName = "xai"

const systemPrompt = "You are a local trends analyst. Always respond with valid JSON only, no markdown."

const promptTemplate = `You are a local news analyst for Hampton Roads, Virginia.

Search X/Twitter for what people in Hampton Roads are currently talking about.
Focus on these areas and topics: %s

Return exactly 5 trending local topics in this JSON format:
{
    "items": [
        {
            "topic": "Brief topic name (2-5 words)",
            "summary": "What people are saying about this (1-2 sentences)",
            "sentiment": "positive|negative|neutral",
            "relevance": "Why this matters to HR residents (1 sentence)"
        }
    ]
}

Prioritize:
1. Breaking local news
2. Traffic/weather impacts
3. Local events and happenings
4. Community discussions
5. Military/base news

Exclude: National politics, celebrity gossip, sports scores (unless local teams like Norfolk Tides, ODU).`

var focusAreas = []string{
	"Virginia Beach", "Norfolk", "Chesapeake", "Newport News", "Hampton",
	"HRBT", "MMBT", "Downtown Tunnel",
	"Naval Station Norfolk", "Langley AFB", "Fort Eustis",
	"local events", "traffic", "weather", "Hampton Roads",
}

type Adapter struct {
	log    *zap.Logger
	cfg    config.TrendsConfig
	client *http.Client
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func New(p Params) *Adapter {
	return &Adapter{
		log:    p.Log.Named("source.trends"),
		cfg:    p.Config.Trends,
		client: &http.Client{},
	}
}

func (a *Adapter) Category() contentdomain.Category { return contentdomain.CategoryTrends }

func (a *Adapter) Provider() string { return providerName }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

// Fetch makes one chat-completions call and parses the result into a trends
// payload. The caller's context bounds the whole call.
func (a *Adapter) Fetch(ctx context.Context) (*source.FetchResult, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: XAI_API_KEY not configured", source.ErrAuthenticationFailed)
	}

	body, err := json.Marshal(chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(promptTemplate, strings.Join(focusAreas, ", "))},
		},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(a.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

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

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrInvalidResponseShape, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", source.ErrInvalidResponseShape)
	}

	payload, err := source.DecodePayload(parsed.Choices[0].Message.Content, contentdomain.CategoryTrends)
	if err != nil {
		return nil, err
	}
	payload.QueryUsed = strings.Join(focusAreas[:5], ", ")

	model := parsed.Model
	if model == "" {
		model = a.cfg.Model
	}

	a.log.Info("trends fetched",
		zap.Int("items", len(payload.Items)),
		zap.Int64("tokens_input", parsed.Usage.PromptTokens),
		zap.Int64("tokens_output", parsed.Usage.CompletionTokens),
	)

	return &source.FetchResult{
		Payload: payload,
		Usage: source.Usage{
			Provider:     providerName,
			Model:        model,
			TokensInput:  parsed.Usage.PromptTokens,
			TokensOutput: parsed.Usage.CompletionTokens,
		},
	}, nil
}

var Module = fx.Module("source.trends",
	fx.Provide(
		fx.Annotate(New,
			fx.As(new(source.Adapter)),
			fx.ResultTags(`group:"adapters"`),
		),
	),
)
