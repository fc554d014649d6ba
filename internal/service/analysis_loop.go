package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gurtprime/merlinCLI/internal/config"
	"github.com/gurtprime/merlinCLI/internal/telegram"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AnalysisLoop 定时刷新调度器：周期性重跑流水线，持有最近一次结果，
// 方向建议变化时推送通知
type AnalysisLoop struct {
	logger   *zap.Logger
	conf     config.ServerConf
	tgConf   config.TelegramConf
	pipeline *PipelineService
	cache    *CacheService
	tg       *telegram.Telegram

	mu        sync.RWMutex
	latest    *RunResult
	isRunning bool
	cron      *cron.Cron
}

// NewAnalysisLoop 创建刷新调度器，tg 可为 nil 表示不推送
func NewAnalysisLoop(
	conf *config.Config,
	pipeline *PipelineService,
	cache *CacheService,
	tg *telegram.Telegram,
	logger *zap.Logger,
) *AnalysisLoop {
	return &AnalysisLoop{
		logger:   logger,
		conf:     conf.Server,
		tgConf:   conf.Telegram,
		pipeline: pipeline,
		cache:    cache,
		tg:       tg,
	}
}

// Start 启动定时刷新，RefreshMinutes 为 0 时不调度
func (t *AnalysisLoop) Start(ctx context.Context) error {
	if t.isRunning {
		return fmt.Errorf("analysis loop is already running")
	}
	if t.conf.RefreshMinutes <= 0 {
		t.logger.Info("periodic refresh disabled")
		return nil
	}

	t.isRunning = true

	// 每 N 分钟的整点执行，例如 interval=10: "*/10 * * * *"
	cronExpr := fmt.Sprintf("*/%d * * * *", t.conf.RefreshMinutes)

	t.logger.Info("analysis loop started",
		zap.Int("interval_minutes", t.conf.RefreshMinutes),
		zap.String("cron_expression", cronExpr))

	t.cron = cron.New()
	_, err := t.cron.AddFunc(cronExpr, func() {
		if err := t.ExecuteCycle(context.Background()); err != nil {
			t.logger.Error("refresh cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		t.isRunning = false
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	t.cron.Start()

	// 启动时先跑一轮，避免首个整点前无数据
	go func() {
		if err := t.ExecuteCycle(ctx); err != nil {
			t.logger.Error("initial refresh failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop 停止定时刷新
func (t *AnalysisLoop) Stop() {
	if t.cron != nil {
		t.cron.Stop()
	}
	t.isRunning = false
}

// ExecuteCycle 执行一轮刷新并更新最近结果
func (t *AnalysisLoop) ExecuteCycle(ctx context.Context) error {
	started := time.Now()

	if err := t.cache.PurgeExpired(ctx); err != nil {
		t.logger.Warn("failed to purge expired cache entries", zap.Error(err))
	}

	result, err := t.pipeline.Run(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	previous := t.latest
	t.latest = result
	t.mu.Unlock()

	t.logger.Info("refresh cycle completed",
		zap.String("recommendation", string(result.Regime.Recommendation)),
		zap.Duration("elapsed", time.Since(started)))

	if previous != nil && previous.Regime.Recommendation != result.Regime.Recommendation {
		t.notifyChange(previous, result)
	}
	return nil
}

// Latest 最近一次运行结果，尚未运行过时返回 nil
func (t *AnalysisLoop) Latest() *RunResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// SetLatest 外部触发的单次运行也计入最近结果
func (t *AnalysisLoop) SetLatest(result *RunResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = result
}

func (t *AnalysisLoop) notifyChange(previous, current *RunResult) {
	if t.tg == nil || !t.tgConf.Enabled || t.tgConf.ChatID == "" {
		return
	}

	msg := fmt.Sprintf("%s %s signal changed: %s -> %s (composite %.3f, price %.2f)",
		current.Meta.Symbol,
		current.Meta.Timeframe,
		previous.Regime.Recommendation,
		current.Regime.Recommendation,
		current.Regime.CompositeScore,
		current.Technicals.Price)

	if err := t.tg.NotifyPlain(t.tgConf.ChatID, msg); err != nil {
		t.logger.Warn("failed to send telegram notification", zap.Error(err))
	}
}
