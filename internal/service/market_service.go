package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gurtprime/merlinCLI/internal/config"
	"github.com/gurtprime/merlinCLI/pkg/exchange"
	"go.uber.org/zap"
)

const (
	ohlcvCacheTTL = 300 * time.Second

	fetchAttempts     = 3
	fetchRetryBackoff = 2 * time.Second
)

// MarketService 行情获取：缓存优先，网络失败时退回合成序列，保证流水线总能拿到数据
type MarketService struct {
	logger   *zap.Logger
	conf     config.MarketConf
	provider exchange.MarketDataProvider
	cache    *CacheService
}

// NewMarketService 创建行情服务
func NewMarketService(conf config.MarketConf, provider exchange.MarketDataProvider, cache *CacheService, logger *zap.Logger) *MarketService {
	return &MarketService{
		logger:   logger,
		conf:     conf,
		provider: provider,
		cache:    cache,
	}
}

// ohlcvCacheKey 由请求参数确定性生成
func ohlcvCacheKey(exchangeName, symbol, timeframe string, limit int) string {
	return fmt.Sprintf("ohlcv::%s::%s::%s::%d", exchangeName, symbol, timeframe, limit)
}

// FetchOHLCV 获取K线：先查缓存，未命中则带重试地请求交易所，
// 全部失败时返回确定形状的合成序列并标记 synthetic
func (s *MarketService) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) (candles []exchange.Candle, synthetic bool) {
	key := ohlcvCacheKey(s.conf.Exchange, symbol, timeframe, limit)

	var cached []exchange.Candle
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("ohlcv cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit && len(cached) > 0 {
		return cached, false
	}

	fetched, err := s.fetchWithRetry(ctx, symbol, timeframe, limit)
	if err != nil {
		s.logger.Warn("exchange fetch failed, using synthetic candles",
			zap.String("symbol", symbol),
			zap.String("timeframe", timeframe),
			zap.Error(err))
		return exchange.SyntheticCandles(limit, timeframe), true
	}

	if err := s.cache.Set(ctx, key, fetched, ohlcvCacheTTL); err != nil {
		s.logger.Warn("failed to cache ohlcv", zap.String("key", key), zap.Error(err))
	}
	return fetched, false
}

func (s *MarketService) fetchWithRetry(ctx context.Context, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		candles, err := s.provider.FetchOHLCV(ctx, symbol, timeframe, limit)
		if err == nil && len(candles) > 0 {
			return candles, nil
		}
		if err == nil {
			err = fmt.Errorf("exchange returned no candles for %s %s", symbol, timeframe)
		}
		lastErr = err
		s.logger.Debug("ohlcv fetch attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < fetchAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(fetchRetryBackoff * time.Duration(attempt)):
			}
		}
	}
	return nil, lastErr
}
