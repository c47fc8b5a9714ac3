package source

import (
	"encoding/json"
	"fmt"
	"strings"

	contentdomain "github.com/tidewater/pulse/internal/content/domain"
)

// DecodePayload parses model output into a validated payload. Models wrap
// JSON in markdown fences often enough that we strip them before parsing.
func DecodePayload(raw string, category contentdomain.Category) (contentdomain.Payload, error) {
	var payload contentdomain.Payload

	text := stripFences(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return payload, fmt.Errorf("%w: no JSON object in response", ErrInvalidResponseShape)
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrInvalidResponseShape, err)
	}
	if err := payload.Validate(category); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrInvalidResponseShape, err)
	}
	return payload, nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
