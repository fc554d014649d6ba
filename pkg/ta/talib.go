package ta

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// go-talib 在预热区间内返回 0，无法与真实的 0 值区分。
// 这里统一把预热区间标记为 NaN，调用方通过 Defined 判断某行是否可用。

// Defined 判断指标值是否已经脱离预热区间
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// Undefined 整段序列均为 NaN
func Undefined(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func markWarmup(s []float64, lookback int) []float64 {
	if lookback > len(s) {
		lookback = len(s)
	}
	for i := 0; i < lookback; i++ {
		s[i] = math.NaN()
	}
	return s
}

// EMA 指数移动平均，前 period-1 个值为 NaN
func EMA(values []float64, period int) []float64 {
	if len(values) < period {
		return Undefined(len(values))
	}
	return markWarmup(talib.Ema(values, period), period-1)
}

// SMA 简单移动平均，前 period-1 个值为 NaN
func SMA(values []float64, period int) []float64 {
	if len(values) < period {
		return Undefined(len(values))
	}
	return markWarmup(talib.Sma(values, period), period-1)
}

// RSI 相对强弱指标，前 period 个值为 NaN
func RSI(values []float64, period int) []float64 {
	if len(values) < period+1 {
		return Undefined(len(values))
	}
	return markWarmup(talib.Rsi(values, period), period)
}

// MACD 返回 (macd线, 信号线, 柱状图)
// macd线预热 slow-1，信号线与柱状图预热 slow+signal-2
func MACD(values []float64, fast, slow, signal int) ([]float64, []float64, []float64) {
	if len(values) < slow+signal {
		n := len(values)
		return Undefined(n), Undefined(n), Undefined(n)
	}
	macd, sig, hist := talib.Macd(values, fast, slow, signal)
	markWarmup(macd, slow-1)
	markWarmup(sig, slow+signal-2)
	markWarmup(hist, slow+signal-2)
	return macd, sig, hist
}

// BBands 布林带，返回 (上轨, 中轨, 下轨)，前 period-1 个值为 NaN
func BBands(values []float64, period int, dev float64) ([]float64, []float64, []float64) {
	if len(values) < period {
		n := len(values)
		return Undefined(n), Undefined(n), Undefined(n)
	}
	upper, middle, lower := talib.BBands(values, period, dev, dev, talib.SMA)
	markWarmup(upper, period-1)
	markWarmup(middle, period-1)
	markWarmup(lower, period-1)
	return upper, middle, lower
}

// PctChange 逐期涨跌幅，首个值为 NaN
func PctChange(values []float64) []float64 {
	out := Undefined(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out[i] = (values[i] - values[i-1]) / values[i-1]
	}
	return out
}

// RollingStd 滚动标准差，窗口内任一输入为 NaN 时输出 NaN
func RollingStd(values []float64, period int) []float64 {
	out := Undefined(len(values))
	if period < 2 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean, ok := windowMean(window)
		if !ok {
			continue
		}
		var sum float64
		for _, v := range window {
			d := v - mean
			sum += d * d
		}
		out[i] = math.Sqrt(sum / float64(period-1))
	}
	return out
}

func windowMean(window []float64) (float64, bool) {
	var sum float64
	for _, v := range window {
		if math.IsNaN(v) {
			return 0, false
		}
		sum += v
	}
	return sum / float64(len(window)), true
}
