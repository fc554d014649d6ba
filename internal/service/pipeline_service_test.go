package service

import (
	"context"
	"testing"

	"github.com/gurtprime/merlinCLI/internal/config"
	"github.com/gurtprime/merlinCLI/pkg/exchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubMarket struct {
	candles   []exchange.Candle
	synthetic bool
}

func (s stubMarket) FetchOHLCV(context.Context, string, string, int) ([]exchange.Candle, bool) {
	return s.candles, s.synthetic
}

// recordingMarket 记录收到的请求参数
type recordingMarket struct {
	candles   []exchange.Candle
	timeframe string
	limit     int
}

func (s *recordingMarket) FetchOHLCV(_ context.Context, _ string, timeframe string, limit int) ([]exchange.Candle, bool) {
	s.timeframe = timeframe
	s.limit = limit
	return s.candles, false
}

type stubDocuments struct {
	docs []Document
}

func (s stubDocuments) FetchDocuments(context.Context) []Document {
	return s.docs
}

type stubInsight struct{}

func (stubInsight) Generate(_ context.Context, bundle SignalBundle) *InsightResult {
	return heuristicInsight(bundle, "stub")
}

func newTestPipeline(market MarketDataSource, documents DocumentSource) *PipelineService {
	logger := zap.NewNop()
	return NewPipelineService(
		config.MarketConf{Exchange: "binance", Symbol: "BTCUSDT", Timeframe: "1h", Limit: 500},
		market,
		documents,
		NewSeriesService(logger),
		NewIndicatorService(),
		NewSentimentService(),
		NewAnalysisService(),
		stubInsight{},
		logger,
	)
}

func TestPipeline_AscendingMarketWithPositiveNews(t *testing.T) {
	pipeline := newTestPipeline(
		stubMarket{candles: rampCandles(60, 100, 160, 10)},
		stubDocuments{docs: []Document{
			{Source: "test", Text: "market looks strong"},
			{Source: "test", Text: "bulls in control"},
		}},
	)

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "BTCUSDT", result.Meta.Symbol)
	assert.Equal(t, 60, result.Meta.Rows)
	assert.False(t, result.Meta.Synthetic)

	assert.Greater(t, result.Technicals.EMATrend, 0.0)
	assert.GreaterOrEqual(t, result.Technicals.SMATrend, 0.0)
	assert.Greater(t, result.Sentiment.Compound, 0.0)
	assert.Greater(t, result.Regime.CompositeScore, 0.0)
	assert.NotEqual(t, RecommendationShort, result.Regime.Recommendation)

	require.NotNil(t, result.Insight)
	assert.Equal(t, "fallback", result.Insight.Backend)
	assert.Len(t, result.Frame, 60)
}

func TestPipeline_DescendingMarketWithNegativeNews(t *testing.T) {
	pipeline := newTestPipeline(
		stubMarket{candles: rampCandles(60, 160, 100, 10)},
		stubDocuments{docs: []Document{
			{Source: "test", Text: "bears dominate, heavy losses"},
			{Source: "test", Text: "panic selling hits the market"},
		}},
	)

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, result.Technicals.EMATrend, 0.0)
	assert.Less(t, result.Sentiment.Compound, 0.0)
	assert.Less(t, result.Regime.CompositeScore, 0.0)
	assert.NotEqual(t, RecommendationLong, result.Regime.Recommendation)
}

func TestPipeline_TooFewCandlesIsFatal(t *testing.T) {
	pipeline := newTestPipeline(
		stubMarket{candles: rampCandles(10, 100, 110, 10)},
		stubDocuments{},
	)

	_, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indicator computation failed")
}

func TestPipeline_NoCandlesIsFatal(t *testing.T) {
	pipeline := newTestPipeline(stubMarket{}, stubDocuments{})

	_, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable candles")
}

func TestPipeline_RunWithOverrides(t *testing.T) {
	market := &recordingMarket{candles: rampCandles(60, 100, 160, 10)}
	pipeline := newTestPipeline(market, stubDocuments{})

	result, err := pipeline.RunWith(context.Background(), RunOverrides{Timeframe: "4h", Limit: 60})
	require.NoError(t, err)

	assert.Equal(t, "4h", market.timeframe)
	assert.Equal(t, 60, market.limit)
	assert.Equal(t, "4h", result.Meta.Timeframe)
}

func TestPipeline_RunUsesConfiguredParams(t *testing.T) {
	market := &recordingMarket{candles: rampCandles(60, 100, 160, 10)}
	pipeline := newTestPipeline(market, stubDocuments{})

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1h", market.timeframe)
	assert.Equal(t, 500, market.limit)
	assert.Equal(t, "1h", result.Meta.Timeframe)
}

func TestPipeline_EmptyNewsStillCompletes(t *testing.T) {
	pipeline := newTestPipeline(
		stubMarket{candles: rampCandles(60, 100, 160, 10), synthetic: true},
		stubDocuments{},
	)

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Meta.Synthetic)
	assert.Equal(t, 0, result.Sentiment.Buzz)
	assert.Nil(t, result.Sentiment.Bias)
	// 无文档时情绪分量为零，市况仍然完整产出
	assert.Equal(t, 0.0, result.Regime.Sentiment)
}
