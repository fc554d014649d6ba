package service

import (
	"math"
	"time"

	"github.com/gurtprime/merlinCLI/pkg/exchange"
	"github.com/gurtprime/merlinCLI/pkg/ta"
)

// Recommendation 三值方向建议
type Recommendation string

const (
	RecommendationLong    Recommendation = "LONG"
	RecommendationShort   Recommendation = "SHORT"
	RecommendationNeutral Recommendation = "NEUTRAL"
)

// 组合评分的固定策略常量，来源上无推导依据，按原值保留为命名常量
const (
	trendNormalization = 1000.0

	weightTrend     = 0.4
	weightMomentum  = 0.2
	weightSentiment = 0.2
	weightMACDBias  = 0.1
	weightVolume    = 0.1

	longThreshold  = 0.2
	shortThreshold = -0.2
)

const (
	priceHistoryWindow = 24
	trendLookback      = 10
)

// Regime 市况评分，每次运行重新推导，产出后不再修改
type Regime struct {
	CompositeScore float64        `json:"composite_score"`
	TrendScore     float64        `json:"trend_score"`
	Momentum       float64        `json:"momentum"`
	Sentiment      float64        `json:"sentiment"`
	VolumePressure float64        `json:"volume_pressure"`
	MACDBias       float64        `json:"macd_bias"`
	Recommendation Recommendation `json:"recommendation"`
}

// PriceHistorySummary 近期价格行为摘要，供提示词与展示层使用
type PriceHistorySummary struct {
	Current     float64 `json:"current"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	ChangePct   float64 `json:"change_pct"`
	Trend       string  `json:"trend"`
	VolumeTrend string  `json:"volume_trend"`
}

// SignalMeta 一次运行的元信息
type SignalMeta struct {
	Exchange    string           `json:"exchange"`
	Symbol      string           `json:"symbol"`
	Timeframe   string           `json:"timeframe"`
	Rows        int              `json:"rows"`
	Synthetic   bool             `json:"synthetic"`
	Windows     IndicatorWindows `json:"windows"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// SignalBundle 交给洞察生成器与展示层的完整信号包
type SignalBundle struct {
	Meta         SignalMeta          `json:"meta"`
	Technicals   IndicatorSnapshot   `json:"technicals"`
	Sentiment    SentimentAggregate  `json:"sentiment"`
	Regime       Regime              `json:"regime"`
	PriceHistory PriceHistorySummary `json:"price_history"`
}

// AnalysisService 市况评分与信号包装配，纯计算无 I/O
type AnalysisService struct{}

// NewAnalysisService 创建评分服务
func NewAnalysisService() *AnalysisService {
	return &AnalysisService{}
}

// ScoreRegime 由指标快照与情绪聚合推导市况
// 各分量先以未舍入值计算组合分与建议，输出时统一保留三位小数
func (s *AnalysisService) ScoreRegime(snapshot IndicatorSnapshot, sentiment SentimentAggregate) Regime {
	trendScore := clampFloat((snapshot.EMATrend+snapshot.SMATrend)/trendNormalization, -1, 1)
	momentum := (snapshot.RSI - 50) / 50
	macdBias := snapshot.MACD - snapshot.MACDSignal
	volPressure := snapshot.VolumeRatio - 1
	sent := sentiment.Compound

	composite := weightTrend*trendScore +
		weightMomentum*momentum +
		weightSentiment*sent +
		weightMACDBias*macdBias +
		weightVolume*volPressure

	return Regime{
		CompositeScore: round3(composite),
		TrendScore:     round3(trendScore),
		Momentum:       round3(momentum),
		Sentiment:      round3(sent),
		VolumePressure: round3(volPressure),
		MACDBias:       round3(macdBias),
		Recommendation: recommendationFor(composite),
	}
}

// recommendationFor 组合分的纯函数，阈值为固定策略
func recommendationFor(composite float64) Recommendation {
	switch {
	case composite > longThreshold:
		return RecommendationLong
	case composite < shortThreshold:
		return RecommendationShort
	default:
		return RecommendationNeutral
	}
}

// SummarizePriceHistory 统计尾窗内的价格行为
func (s *AnalysisService) SummarizePriceHistory(candles []exchange.Candle) PriceHistorySummary {
	if len(candles) == 0 {
		return PriceHistorySummary{Trend: "flat", VolumeTrend: "flat"}
	}

	start := len(candles) - priceHistoryWindow
	if start < 0 {
		start = 0
	}
	window := candles[start:]

	closes := make([]float64, len(window))
	volumes := make([]float64, len(window))
	for i, c := range window {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	summary := PriceHistorySummary{
		Current: ta.Last(closes, 0),
		Open:    window[0].Open,
		High:    ta.Highest(hlValues(window, true), len(window)),
		Low:     ta.Lowest(hlValues(window, false), len(window)),
	}
	if summary.Open != 0 {
		summary.ChangePct = round3((summary.Current - summary.Open) / summary.Open * 100)
	}
	summary.Trend = trendDirection(closes)
	summary.VolumeTrend = trendDirection(volumes)

	return summary
}

// trendDirection 尾段均值对比前段均值的方向
func trendDirection(values []float64) string {
	if len(values) < 2 {
		return "flat"
	}

	split := len(values) - trendLookback
	if split < 1 {
		split = len(values) / 2
	}

	prior := ta.Mean(values[:split])
	recent := ta.Mean(values[split:])
	switch {
	case recent > prior:
		return "up"
	case recent < prior:
		return "down"
	default:
		return "flat"
	}
}

func hlValues(candles []exchange.Candle, high bool) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		if high {
			out[i] = c.High
		} else {
			out[i] = c.Low
		}
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
