// Package pricing maps provider model identifiers to per-token rates.
package pricing

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/tidewater/pulse/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Rate holds USD prices per one million tokens.
type Rate struct {
	InputPerMTok  float64 `mapstructure:"input_per_mtok"`
	OutputPerMTok float64 `mapstructure:"output_per_mtok"`
}

// Table resolves model identifiers to rates. Lookup is exact match first,
// then longest prefix, so dated model ids resolve to their family rate.
type Table struct {
	log   *zap.Logger
	rates map[string]Rate
}

func defaultRates() map[string]Rate {
	return map[string]Rate{
		"grok-3-fast":               {InputPerMTok: 5, OutputPerMTok: 25},
		"claude-haiku-4-5-20251001": {InputPerMTok: 1, OutputPerMTok: 5},
	}
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// New builds the pricing table from built-in defaults, overlaid with the
// optional YAML file named by PULSE_PRICING_FILE.
func New(p Params) (*Table, error) {
	table := &Table{
		log:   p.Log.Named("pricing"),
		rates: defaultRates(),
	}

	path := strings.TrimSpace(p.Config.PricingFile)
	if path == "" {
		return table, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read pricing file %s: %w", path, err)
	}

	var fileRates map[string]Rate
	if err := v.UnmarshalKey("models", &fileRates); err != nil {
		return nil, fmt.Errorf("parse pricing file %s: %w", path, err)
	}
	for model, rate := range fileRates {
		table.rates[strings.ToLower(strings.TrimSpace(model))] = rate
	}

	table.log.Info("pricing table loaded",
		zap.String("file", path),
		zap.Int("models", len(table.rates)),
	)
	return table, nil
}

// Lookup returns the rate for a model id and whether one was found.
func (t *Table) Lookup(model string) (Rate, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return Rate{}, false
	}
	if rate, ok := t.rates[model]; ok {
		return rate, true
	}

	var (
		best    string
		rate    Rate
		matched bool
	)
	for key, candidate := range t.rates {
		if strings.HasPrefix(model, key) && len(key) > len(best) {
			best = key
			rate = candidate
			matched = true
		}
	}
	return rate, matched
}

// Cost computes the USD cost for a call. Unknown models cost zero; the miss
// is logged so new models show up in operations before they show up on a bill.
func (t *Table) Cost(model string, tokensInput, tokensOutput int64) float64 {
	rate, ok := t.Lookup(model)
	if !ok {
		t.log.Warn("no pricing for model, recording zero cost", zap.String("model", model))
		return 0
	}
	cost := float64(tokensInput)/1_000_000*rate.InputPerMTok +
		float64(tokensOutput)/1_000_000*rate.OutputPerMTok
	if cost < 0 {
		return 0
	}
	return cost
}

var Module = fx.Module("pricing",
	fx.Provide(New),
)
