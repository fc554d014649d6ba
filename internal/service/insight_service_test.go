package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle() SignalBundle {
	return SignalBundle{
		Meta: SignalMeta{Exchange: "binance", Symbol: "BTCUSDT", Timeframe: "1h", Rows: 60},
		Technicals: IndicatorSnapshot{
			Price: 50000, EMATrend: 120, SMATrend: 80, RSI: 62,
			MACD: 15, MACDSignal: 10, BBPosition: 0.7, VolumeRatio: 1.3, Volatility: 0.02,
		},
		Sentiment: SentimentAggregate{Compound: 0.4, Buzz: 12},
		Regime: Regime{
			CompositeScore: 0.31, Recommendation: RecommendationLong,
		},
		PriceHistory: PriceHistorySummary{
			Current: 50000, Open: 49000, High: 50500, Low: 48800,
			ChangePct: 2.04, Trend: "up", VolumeTrend: "up",
		},
	}
}

func TestRenderInsightPrompt(t *testing.T) {
	prompt := renderInsightPrompt(sampleBundle())

	assert.Contains(t, prompt, "BTCUSDT")
	assert.Contains(t, prompt, "binance")
	assert.Contains(t, prompt, "LONG")
	assert.Contains(t, prompt, "0.3100")
	assert.NotContains(t, prompt, "{{", "all placeholders must be substituted")
}

func TestParseInsightText_PlainJSON(t *testing.T) {
	text := `{"recommendation": "SHORT", "rationale": "momentum is fading",
		"risks": ["squeeze risk"], "key_levels": {"support": 48800, "resistance": 50500}}`

	result, err := parseInsightText(text, sampleBundle())
	require.NoError(t, err)

	assert.Equal(t, RecommendationShort, result.Recommendation)
	assert.Equal(t, "momentum is fading", result.Rationale)
	assert.Equal(t, []string{"squeeze risk"}, result.Risks)
	assert.Equal(t, []string{"resistance: 50500.00", "support: 48800.00"}, result.KeyLevels)
}

func TestParseInsightText_KeyLevelsAsObjectArray(t *testing.T) {
	text := `{"recommendation": "LONG", "rationale": "r",
		"key_levels": [
			{"type": "support", "value": 48800},
			{"type": "resistance", "value": 50500, "description": "prior swing high"}
		]}`

	result, err := parseInsightText(text, sampleBundle())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"support: 48800.00",
		"resistance: 50500.00 - prior swing high",
	}, result.KeyLevels)
}

func TestParseInsightText_KeyLevelsAsStringArray(t *testing.T) {
	text := `{"recommendation": "LONG", "rationale": "r",
		"key_levels": ["support near 48800", "resistance around 50500"]}`

	result, err := parseInsightText(text, sampleBundle())
	require.NoError(t, err)
	assert.Equal(t, []string{"support near 48800", "resistance around 50500"}, result.KeyLevels)
}

func TestParseInsightText_KeyLevelsAsSingleObject(t *testing.T) {
	text := `{"recommendation": "LONG", "rationale": "r",
		"key_levels": {"type": "support", "price": "48750.5"}}`

	result, err := parseInsightText(text, sampleBundle())
	require.NoError(t, err)
	assert.Equal(t, []string{"support: 48750.50"}, result.KeyLevels)
}

func TestParseInsightText_FencedAndNoisy(t *testing.T) {
	text := "```json\n{\"recommendation\": \"long\", \"rationale\": \"r\", \"risks\": [], \"key_levels\": {}}\n```"

	result, err := parseInsightText(text, sampleBundle())
	require.NoError(t, err)
	assert.Equal(t, RecommendationLong, result.Recommendation)
}

func TestParseInsightText_RisksAsSingleString(t *testing.T) {
	text := `{"recommendation": "NEUTRAL", "rationale": "r", "risks": "one big risk"}`

	result, err := parseInsightText(text, sampleBundle())
	require.NoError(t, err)
	assert.Equal(t, []string{"one big risk"}, result.Risks)
}

func TestParseInsightText_KeyLevelsAsNameMap(t *testing.T) {
	text := `{"recommendation": "LONG", "rationale": "r", "key_levels": {"Support": "48750.5", "Resistance": 50500}}`

	result, err := parseInsightText(text, sampleBundle())
	require.NoError(t, err)
	assert.Equal(t, []string{"resistance: 50500.00", "support: 48750.50"}, result.KeyLevels)
}

func TestParseInsightText_UnknownRecommendationFallsBackToRegime(t *testing.T) {
	text := `{"recommendation": "HODL", "rationale": "r"}`

	result, err := parseInsightText(text, sampleBundle())
	require.NoError(t, err)
	assert.Equal(t, RecommendationLong, result.Recommendation)
}

func TestParseInsightText_NoJSONIsError(t *testing.T) {
	_, err := parseInsightText("sorry, I cannot help with that", sampleBundle())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no JSON object"))
}

func TestHeuristicInsight(t *testing.T) {
	bundle := sampleBundle()
	result := heuristicInsight(bundle, "no API key")

	assert.Equal(t, bundle.Regime.Recommendation, result.Recommendation)
	assert.Equal(t, "fallback", result.Backend)
	assert.Contains(t, result.Rationale, "no API key")
	assert.NotEmpty(t, result.Risks)
	assert.Equal(t, []string{"support: 48500.00", "resistance: 51500.00"}, result.KeyLevels)
}
