package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/gurtprime/merlinCLI/pkg/exchange"
	"go.uber.org/zap"
)

const (
	// resampleMinRows 行数不超过该值时跳过重采样，避免稀疏短序列被网格吞掉
	resampleMinRows = 100
	// resampleMinStep 低于 5 分钟的时间框架不做网格对齐，网格会丢弃过多真实数据
	resampleMinStep = 5 * time.Minute
	// resampleRetention 重采样后行数低于去重前的该比例时放弃重采样结果
	resampleRetention = 0.80
	// resampleMaxExpansion 网格点数超过原始行数的该倍数时视为时间框架与数据不匹配
	resampleMaxExpansion = 10
)

// SeriesService 序列清洗与重采样
type SeriesService struct {
	logger *zap.Logger
}

// NewSeriesService 创建序列清洗服务
func NewSeriesService(logger *zap.Logger) *SeriesService {
	return &SeriesService{logger: logger}
}

// PrepareOHLCV 清洗原始K线：去无效行、按时间排序、时间戳去重（保留后写入）
// 满足条件时再对齐到规则时间网格并前向填充，数据损失超限则回退到去重后的序列
func (s *SeriesService) PrepareOHLCV(candles []exchange.Candle, timeframe string) []exchange.Candle {
	clean := make([]exchange.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Valid() {
			clean = append(clean, c)
		}
	}
	if len(clean) == 0 {
		return clean
	}

	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Timestamp.Before(clean[j].Timestamp)
	})

	deduped := dedupeKeepLast(clean)

	step := exchange.TimeframeDuration(timeframe)
	if len(deduped) <= resampleMinRows || step < resampleMinStep {
		return deduped
	}

	resampled, err := resampleToGrid(deduped, step)
	if err != nil {
		s.logger.Warn("resample failed, keeping deduplicated series",
			zap.String("timeframe", timeframe),
			zap.Error(err))
		return deduped
	}

	// 行数只许减少不许增加：低于保留率说明网格丢行过多，
	// 高于原行数说明空洞填充在凭空造数据，两者都回退
	if float64(len(resampled)) < resampleRetention*float64(len(deduped)) || len(resampled) > len(deduped) {
		s.logger.Warn("resample would distort data, keeping deduplicated series",
			zap.String("timeframe", timeframe),
			zap.Int("before", len(deduped)),
			zap.Int("after", len(resampled)))
		return deduped
	}

	return resampled
}

// dedupeKeepLast 输入已按时间排序，相同时间戳保留最后一次出现
func dedupeKeepLast(candles []exchange.Candle) []exchange.Candle {
	out := make([]exchange.Candle, 0, len(candles))
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(c.Timestamp) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// resampleToGrid 从首行时间戳起按 step 铺设网格
// 恰好落在网格点上的行保留，网格空洞由上一个网格值前向填充，脱离网格的行被丢弃
func resampleToGrid(candles []exchange.Candle, step time.Duration) ([]exchange.Candle, error) {
	if step <= 0 {
		return nil, fmt.Errorf("invalid resample step %s", step)
	}

	first := candles[0].Timestamp
	last := candles[len(candles)-1].Timestamp
	points := int(last.Sub(first)/step) + 1
	if points <= 0 || points > resampleMaxExpansion*len(candles) {
		return nil, fmt.Errorf("grid of %d points does not fit %d rows", points, len(candles))
	}

	byTimestamp := make(map[int64]exchange.Candle, len(candles))
	for _, c := range candles {
		byTimestamp[c.Timestamp.UnixNano()] = c
	}

	out := make([]exchange.Candle, 0, points)
	prev := candles[0]
	for i := 0; i < points; i++ {
		ts := first.Add(step * time.Duration(i))
		if c, ok := byTimestamp[ts.UnixNano()]; ok {
			prev = c
			out = append(out, c)
			continue
		}
		filled := prev
		filled.Timestamp = ts
		out = append(out, filled)
	}
	return out, nil
}
