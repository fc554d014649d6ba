package service

import (
	"fmt"
	"math"
	"time"

	"github.com/gurtprime/merlinCLI/pkg/exchange"
	"github.com/gurtprime/merlinCLI/pkg/ta"
)

// 自适应窗口边界。窗口是行数的纯函数，且永远不会超过可用行数
const (
	minIndicatorRows = 20

	emaShortMin, emaShortMax = 10, 21
	emaLongMin, emaLongMax   = 21, 55
	smaShortMin, smaShortMax = 20, 50
	smaLongMin, smaLongMax   = 50, 200
	smaLongHeadroom          = 10

	rsiPeriod = 14

	macdStandardMinRows                                    = 26
	macdFastDefault, macdSlowDefault, macdSignalDefault    = 12, 26, 9
	macdFastMin, macdSlowMin, macdSignalMin                = 5, 10, 3

	bollingerMin, bollingerMax = 10, 20
	bollingerDev               = 2.0

	volatilityMin, volatilityMax = 10, 20
)

// IndicatorService 技术指标计算服务
type IndicatorService struct{}

// NewIndicatorService 创建技术指标服务
func NewIndicatorService() *IndicatorService {
	return &IndicatorService{}
}

// IndicatorWindows 按行数选定的实际窗口
type IndicatorWindows struct {
	EMAShort   int `json:"ema_short"`
	EMALong    int `json:"ema_long"`
	SMAShort   int `json:"sma_short"`
	SMALong    int `json:"sma_long"`
	MACDFast   int `json:"macd_fast"`
	MACDSlow   int `json:"macd_slow"`
	MACDSignal int `json:"macd_signal"`
	Bollinger  int `json:"bollinger"`
	Volatility int `json:"volatility"`
}

// IndicatorFrame 指标帧：每根输入K线一行，预热区间为 NaN
// 各指标为显式命名字段，不依赖生成的列名
type IndicatorFrame struct {
	Candles []exchange.Candle

	EMAShort   []float64
	EMALong    []float64
	SMAShort   []float64
	SMALong    []float64
	RSI        []float64
	MACD       []float64
	MACDSignal []float64
	MACDHist   []float64
	BBUpper    []float64
	BBMiddle   []float64
	BBLower    []float64
	VolumeSMA  []float64
	Volatility []float64

	Windows IndicatorWindows
}

// IndicatorSnapshot 最新一行的标量特征，所有键恒定存在并带默认值
type IndicatorSnapshot struct {
	Price       float64 `json:"price"`
	EMATrend    float64 `json:"ema_trend"`
	SMATrend    float64 `json:"sma_trend"`
	RSI         float64 `json:"rsi"`
	MACD        float64 `json:"macd"`
	MACDSignal  float64 `json:"macd_signal"`
	BBPosition  float64 `json:"bb_position"`
	VolumeRatio float64 `json:"volume_ratio"`
	Volatility  float64 `json:"volatility"`
}

// IndicatorBundle 一次计算的产出：完整指标帧加一份快照
type IndicatorBundle struct {
	Frame    *IndicatorFrame
	Snapshot IndicatorSnapshot
}

// WindowsForRows 按可用行数计算自适应窗口
func WindowsForRows(rows int) IndicatorWindows {
	w := IndicatorWindows{
		EMAShort:   capAtRows(clampInt(rows/4, emaShortMin, emaShortMax), rows),
		EMALong:    capAtRows(clampInt(rows/2, emaLongMin, emaLongMax), rows),
		SMAShort:   capAtRows(clampInt(rows/4, smaShortMin, smaShortMax), rows),
		SMALong:    capAtRows(clampInt(rows-smaLongHeadroom, smaLongMin, smaLongMax), rows),
		Bollinger:  capAtRows(clampInt(rows/5, bollingerMin, bollingerMax), rows),
		Volatility: capAtRows(clampInt(rows/5, volatilityMin, volatilityMax), rows),
	}

	if rows >= macdStandardMinRows {
		w.MACDFast = macdFastDefault
		w.MACDSlow = macdSlowDefault
		w.MACDSignal = macdSignalDefault
	} else {
		w.MACDFast = capAtRows(clampInt(rows/3, macdFastMin, macdFastDefault), rows)
		w.MACDSlow = capAtRows(clampInt(rows/2, macdSlowMin, macdSlowDefault), rows)
		w.MACDSignal = capAtRows(clampInt(rows/5, macdSignalMin, macdSignalDefault), rows)
	}

	return w
}

// Compute 计算指标帧与快照，输入为清洗后的K线序列
func (s *IndicatorService) Compute(candles []exchange.Candle) (*IndicatorBundle, error) {
	rows := len(candles)
	if rows < minIndicatorRows {
		return nil, fmt.Errorf(
			"insufficient data for indicator calculation: need at least %d candles, got %d"+
				" (increase the fetch limit or use a longer timeframe)",
			minIndicatorRows, rows)
	}

	closes := make([]float64, rows)
	volumes := make([]float64, rows)
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	w := WindowsForRows(rows)

	frame := &IndicatorFrame{
		Candles:  candles,
		EMAShort: ta.EMA(closes, w.EMAShort),
		EMALong:  ta.EMA(closes, w.EMALong),
		SMAShort: ta.SMA(closes, w.SMAShort),
		SMALong:  ta.SMA(closes, w.SMALong),
		RSI:      ta.RSI(closes, rsiPeriod),
		Windows:  w,
	}
	frame.MACD, frame.MACDSignal, frame.MACDHist = ta.MACD(closes, w.MACDFast, w.MACDSlow, w.MACDSignal)
	frame.BBUpper, frame.BBMiddle, frame.BBLower = ta.BBands(closes, w.Bollinger, bollingerDev)
	frame.VolumeSMA = ta.SMA(volumes, w.Volatility)

	volStd := ta.RollingStd(ta.PctChange(closes), w.Volatility)
	frame.Volatility = make([]float64, rows)
	for i, v := range volStd {
		frame.Volatility[i] = v * math.Sqrt(float64(w.Volatility))
	}

	snapshot, err := frame.snapshot()
	if err != nil {
		return nil, err
	}

	return &IndicatorBundle{Frame: frame, Snapshot: snapshot}, nil
}

// snapshot 取最近一个核心字段齐备的行；尾部全部未定义时先前向填充再找，
// 仍找不到则视为致命错误
func (f *IndicatorFrame) snapshot() (IndicatorSnapshot, error) {
	required := [][]float64{f.EMAShort, f.EMALong, f.RSI}

	idx := lastCompleteRow(required)
	if idx < 0 {
		for _, col := range required {
			forwardFill(col)
		}
		idx = lastCompleteRow(required)
	}
	if idx < 0 {
		return IndicatorSnapshot{}, fmt.Errorf(
			"indicator frame has no valid rows (available data: %d rows)", len(f.Candles))
	}

	candle := f.Candles[idx]

	snap := IndicatorSnapshot{
		Price:       candle.Close,
		EMATrend:    f.EMAShort[idx] - f.EMALong[idx],
		RSI:         defaultIfNaN(f.RSI[idx], 50.0),
		MACD:        defaultIfNaN(f.MACD[idx], 0.0),
		MACDSignal:  defaultIfNaN(f.MACDSignal[idx], 0.0),
		Volatility:  defaultIfNaN(f.Volatility[idx], 0.0),
		VolumeRatio: 1.0,
	}

	if ta.Defined(f.SMAShort[idx]) && ta.Defined(f.SMALong[idx]) {
		snap.SMATrend = f.SMAShort[idx] - f.SMALong[idx]
	}

	if ta.Defined(f.BBUpper[idx]) && ta.Defined(f.BBLower[idx]) {
		if width := f.BBUpper[idx] - f.BBLower[idx]; width != 0 {
			snap.BBPosition = (candle.Close - f.BBLower[idx]) / width
		}
	}

	if ta.Defined(f.VolumeSMA[idx]) && f.VolumeSMA[idx] > 0 {
		snap.VolumeRatio = candle.Volume / f.VolumeSMA[idx]
	}

	return snap, nil
}

// IndicatorRow 供渲染层使用的一行指标，未定义值序列化为 null
type IndicatorRow struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`

	EMAShort *float64 `json:"ema_short"`
	EMALong  *float64 `json:"ema_long"`
	SMAShort *float64 `json:"sma_short"`
	SMALong  *float64 `json:"sma_long"`
	BBUpper  *float64 `json:"bb_upper"`
	BBLower  *float64 `json:"bb_lower"`
	RSI      *float64 `json:"rsi"`
	MACD     *float64 `json:"macd"`
}

// Tail 最近 n 行指标
func (f *IndicatorFrame) Tail(n int) []IndicatorRow {
	start := len(f.Candles) - n
	if start < 0 {
		start = 0
	}

	rows := make([]IndicatorRow, 0, len(f.Candles)-start)
	for i := start; i < len(f.Candles); i++ {
		c := f.Candles[i]
		rows = append(rows, IndicatorRow{
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			EMAShort:  nullableFloat(f.EMAShort[i]),
			EMALong:   nullableFloat(f.EMALong[i]),
			SMAShort:  nullableFloat(f.SMAShort[i]),
			SMALong:   nullableFloat(f.SMALong[i]),
			BBUpper:   nullableFloat(f.BBUpper[i]),
			BBLower:   nullableFloat(f.BBLower[i]),
			RSI:       nullableFloat(f.RSI[i]),
			MACD:      nullableFloat(f.MACD[i]),
		})
	}
	return rows
}

func lastCompleteRow(columns [][]float64) int {
	if len(columns) == 0 || len(columns[0]) == 0 {
		return -1
	}
	for i := len(columns[0]) - 1; i >= 0; i-- {
		complete := true
		for _, col := range columns {
			if !ta.Defined(col[i]) {
				complete = false
				break
			}
		}
		if complete {
			return i
		}
	}
	return -1
}

func forwardFill(col []float64) {
	last := math.NaN()
	for i, v := range col {
		if ta.Defined(v) {
			last = v
			continue
		}
		col[i] = last
	}
}

func defaultIfNaN(v, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return v
}

func nullableFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func capAtRows(v, rows int) int {
	if v > rows {
		return rows
	}
	return v
}
