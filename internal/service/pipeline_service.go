package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gurtprime/merlinCLI/internal/config"
	"github.com/gurtprime/merlinCLI/pkg/exchange"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// frameTailRows 随结果返回的指标帧尾部行数，供图表渲染
const frameTailRows = 200

// MarketDataSource 行情来源，synthetic 标记返回的是兜底合成数据
type MarketDataSource interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) (candles []exchange.Candle, synthetic bool)
}

// DocumentSource 情绪文档来源
type DocumentSource interface {
	FetchDocuments(ctx context.Context) []Document
}

// InsightGenerator 洞察生成器，实现方自带降级，不允许失败
type InsightGenerator interface {
	Generate(ctx context.Context, bundle SignalBundle) *InsightResult
}

// RunResult 一次流水线运行的完整产出
type RunResult struct {
	ID string `json:"id"`

	SignalBundle

	Insight *InsightResult `json:"insight"`
	Frame   []IndicatorRow `json:"frame"`
}

// PipelineService 信号流水线编排：
// 取行情 → 清洗 → 算指标 → 取文档 → 聚合情绪 → 市况评分 → 装配信号包 → 生成洞察
// 单线路顺序执行，自身不做重试，只有指标阶段的失败是致命的
type PipelineService struct {
	logger *zap.Logger
	conf   config.MarketConf

	market     MarketDataSource
	documents  DocumentSource
	series     *SeriesService
	indicators *IndicatorService
	sentiment  *SentimentService
	analysis   *AnalysisService
	insight    InsightGenerator
}

// NewPipelineService 创建流水线服务
func NewPipelineService(
	conf config.MarketConf,
	market MarketDataSource,
	documents DocumentSource,
	series *SeriesService,
	indicators *IndicatorService,
	sentiment *SentimentService,
	analysis *AnalysisService,
	insight InsightGenerator,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		logger:     logger,
		conf:       conf,
		market:     market,
		documents:  documents,
		series:     series,
		indicators: indicators,
		sentiment:  sentiment,
		analysis:   analysis,
		insight:    insight,
	}
}

// RunOverrides 单次运行的参数覆盖，零值字段沿用配置
type RunOverrides struct {
	Timeframe string
	Limit     int
}

// Run 以配置参数执行一次完整流水线
func (s *PipelineService) Run(ctx context.Context) (*RunResult, error) {
	return s.RunWith(ctx, RunOverrides{})
}

// RunWith 执行一次完整流水线，返回完整结果或单个致命错误，不产出半成品
// 调用方负责校验覆盖参数的合法性
func (s *PipelineService) RunWith(ctx context.Context, overrides RunOverrides) (*RunResult, error) {
	started := time.Now()

	conf := s.conf
	if overrides.Timeframe != "" {
		conf.Timeframe = overrides.Timeframe
	}
	if overrides.Limit > 0 {
		conf.Limit = overrides.Limit
	}

	raw, synthetic := s.market.FetchOHLCV(ctx, conf.Symbol, conf.Timeframe, conf.Limit)

	normalized := s.series.PrepareOHLCV(raw, conf.Timeframe)
	if len(normalized) == 0 {
		return nil, fmt.Errorf("no usable candles for %s %s after normalization", conf.Symbol, conf.Timeframe)
	}

	bundleResult, err := s.indicators.Compute(normalized)
	if err != nil {
		return nil, fmt.Errorf("indicator computation failed: %w", err)
	}

	docs := s.documents.FetchDocuments(ctx)
	aggregate := s.sentiment.Aggregate(docs)

	regime := s.analysis.ScoreRegime(bundleResult.Snapshot, aggregate)

	bundle := SignalBundle{
		Meta: SignalMeta{
			Exchange:    conf.Exchange,
			Symbol:      conf.Symbol,
			Timeframe:   conf.Timeframe,
			Rows:        len(normalized),
			Synthetic:   synthetic,
			Windows:     bundleResult.Frame.Windows,
			GeneratedAt: time.Now().UTC(),
		},
		Technicals:   bundleResult.Snapshot,
		Sentiment:    aggregate,
		Regime:       regime,
		PriceHistory: s.analysis.SummarizePriceHistory(normalized),
	}

	insight := s.insight.Generate(ctx, bundle)

	s.logger.Info("signal pipeline completed",
		zap.String("symbol", conf.Symbol),
		zap.String("timeframe", conf.Timeframe),
		zap.Int("rows", len(normalized)),
		zap.Bool("synthetic", synthetic),
		zap.Int("buzz", aggregate.Buzz),
		zap.Float64("composite_score", regime.CompositeScore),
		zap.String("recommendation", string(regime.Recommendation)),
		zap.Duration("elapsed", time.Since(started)))

	return &RunResult{
		ID:           ulid.Make().String(),
		SignalBundle: bundle,
		Insight:      insight,
		Frame:        bundleResult.Frame.Tail(frameTailRows),
	}, nil
}
