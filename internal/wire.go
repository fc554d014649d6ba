//go:build wireinject
// +build wireinject

package internal

import (
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/gurtprime/merlinCLI/pkg/exchange"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gurtprime/merlinCLI/internal/config"
	"github.com/gurtprime/merlinCLI/internal/handler"
	"github.com/gurtprime/merlinCLI/internal/service"
	"github.com/gurtprime/merlinCLI/internal/telegram"
)

const telegramHTTPTimeout = 10 * time.Second

var (
	handlerSet = wire.NewSet(
		handler.NewAnalysisHandler,
	)

	pipelineSet = wire.NewSet(
		provideBinanceClient,
		wire.Bind(new(exchange.MarketDataProvider), new(*exchange.BinanceClient)),
		service.NewCacheService,
		service.NewSeriesService,
		service.NewIndicatorService,
		service.NewSentimentService,
		service.NewAnalysisService,
		service.NewMarketService,
		wire.Bind(new(service.MarketDataSource), new(*service.MarketService)),
		service.NewNewsService,
		wire.Bind(new(service.DocumentSource), new(*service.NewsService)),
		provideInsightBackend,
		service.NewInsightService,
		wire.Bind(new(service.InsightGenerator), new(*service.InsightService)),
		service.NewPipelineService,
		service.NewAnalysisLoop,
	)

	confSet = wire.NewSet(
		provideMarketConf,
		provideSentimentConf,
	)
)

// InitializeApp 初始化应用
func InitializeApp(logger *zap.Logger, db *gorm.DB, conf *config.Config) (*AppComponents, error) {
	wire.Build(
		handlerSet,
		pipelineSet,
		confSet,
		provideTelegram,
		wire.Struct(new(AppComponents), "*"),
	)
	return nil, nil
}

func provideMarketConf(conf *config.Config) config.MarketConf {
	return conf.Market
}

func provideSentimentConf(conf *config.Config) config.SentimentConf {
	return conf.Sentiment
}

// provideTelegram provides telegram instance
func provideTelegram(logger *zap.Logger, conf *config.Config) *telegram.Telegram {
	if !conf.Telegram.Enabled {
		return nil
	}

	httpClient := &http.Client{Timeout: telegramHTTPTimeout}

	tg, err := telegram.NewTelegram(logger, telegram.Settings{
		Token:  conf.Telegram.Token,
		Client: httpClient,
	})
	if err != nil {
		logger.Error("failed to init telegram", zap.Error(err))
		return nil
	}

	return tg
}

// provideBinanceClient provides Binance client
func provideBinanceClient(conf *config.Config, logger *zap.Logger) *exchange.BinanceClient {
	client := exchange.NewBinanceClient(
		conf.Market.APIKey,
		conf.Market.Secret,
		conf.Market.ProxyURL,
		conf.Market.Testnet,
	)

	logger.Info("Binance client initialized",
		zap.Bool("testnet", conf.Market.Testnet),
		zap.Bool("has_credentials", conf.Market.APIKey != "" && conf.Market.Secret != ""),
	)
	return client
}

// provideInsightBackend provides the configured insight backend
func provideInsightBackend(conf *config.Config, logger *zap.Logger) service.InsightBackend {
	backend := service.NewInsightBackend(conf.LLM, logger)

	logger.Info("insight backend initialized",
		zap.String("backend", backend.Name()),
		zap.String("model", backend.Model()),
	)
	return backend
}
