package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
)

// BinanceClient Binance现货行情客户端
type BinanceClient struct {
	client *binance.Client
}

// NewBinanceClient 创建Binance客户端
// 行情接口为公开接口，API密钥可以为空
func NewBinanceClient(apiKey, secretKey, proxyURL string, testnet bool) *BinanceClient {
	var client *binance.Client
	if proxyURL != "" {
		client = binance.NewProxiedClient(apiKey, secretKey, proxyURL)
	} else {
		client = binance.NewClient(apiKey, secretKey)
	}

	if testnet {
		binance.UseTestnet = true
	}

	return &BinanceClient{client: client}
}

var _ MarketDataProvider = (*BinanceClient)(nil)

// FetchOHLCV 获取K线数据
func (b *BinanceClient) FetchOHLCV(ctx context.Context, symbol string, timeframe string, limit int) ([]Candle, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get klines: %w", err)
	}

	result := make([]Candle, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		result = append(result, Candle{
			Timestamp: time.UnixMilli(k.OpenTime).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	return result, nil
}
