package exchange

import "context"

// MarketDataProvider 行情数据源接口
// 信号管线只依赖该接口，便于替换交易所或在测试中注入桩实现
type MarketDataProvider interface {
	FetchOHLCV(ctx context.Context, symbol string, timeframe string, limit int) ([]Candle, error)
}
