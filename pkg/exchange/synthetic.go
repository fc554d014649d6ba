package exchange

import (
	"math"
	"math/rand"
	"time"
)

const (
	syntheticBasePrice = 30000.0
	syntheticSeed      = 42
)

// SyntheticCandles 生成形状确定的合成K线序列
// 行情获取失败时的降级数据：围绕固定基准价的随机游走，
// 固定种子保证同样的参数产出同样的序列
func SyntheticCandles(limit int, timeframe string) []Candle {
	if limit <= 0 {
		return nil
	}

	step := TimeframeDuration(timeframe)
	end := time.Now().UTC().Truncate(step)
	rng := rand.New(rand.NewSource(syntheticSeed))

	candles := make([]Candle, 0, limit)
	price := syntheticBasePrice
	for i := 0; i < limit; i++ {
		price += rng.NormFloat64() * 50

		open := price + rng.NormFloat64()
		closePrice := price + rng.NormFloat64()
		high := math.Max(open, closePrice) + rng.Float64()*30
		low := math.Min(open, closePrice) - rng.Float64()*30
		volume := math.Abs(rng.NormFloat64()) * 100

		candles = append(candles, Candle{
			Timestamp: end.Add(-step * time.Duration(limit-1-i)),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	return candles
}
