package handler

import (
	"net/http"

	"github.com/gurtprime/merlinCLI/internal/config"
	"github.com/gurtprime/merlinCLI/internal/service"
	"github.com/gurtprime/merlinCLI/internal/xe"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const (
	defaultInsightLimit = 20

	// maxRunLimit 与配置中 limit 的上限一致
	maxRunLimit = 1500
)

// AnalysisHandler 信号分析HTTP处理器
type AnalysisHandler struct {
	pipeline       *service.PipelineService
	analysisLoop   *service.AnalysisLoop
	cacheService   *service.CacheService
	insightService *service.InsightService
	logger         *zap.Logger
}

// NewAnalysisHandler 创建分析处理器
func NewAnalysisHandler(
	pipeline *service.PipelineService,
	analysisLoop *service.AnalysisLoop,
	cacheService *service.CacheService,
	insightService *service.InsightService,
	logger *zap.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		pipeline:       pipeline,
		analysisLoop:   analysisLoop,
		cacheService:   cacheService,
		insightService: insightService,
		logger:         logger,
	}
}

// RegisterRoutes 注册路由
func (h *AnalysisHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/analysis", h.RunAnalysis)
	g.GET("/analysis/latest", h.GetLatest)
	g.GET("/insights/recent", h.GetRecentInsights)
	g.DELETE("/cache", h.ClearCache)
}

// RunAnalysis 立即执行一次流水线，timeframe/limit 查询参数可覆盖本次运行的配置
// GET /api/analysis
func (h *AnalysisHandler) RunAnalysis(c echo.Context) error {
	ctx := c.Request().Context()

	overrides, err := parseRunOverrides(c)
	if err != nil {
		return err
	}

	result, err := h.pipeline.RunWith(ctx, overrides)
	if err != nil {
		h.logger.Error("pipeline run failed", zap.Error(err))
		return xe.ErrPipelineFailure
	}

	h.analysisLoop.SetLatest(result)
	return c.JSON(http.StatusOK, result)
}

// parseRunOverrides 解析单次运行的查询参数覆盖，非法值拒绝而不是静默忽略
func parseRunOverrides(c echo.Context) (service.RunOverrides, error) {
	var overrides service.RunOverrides

	if tf := c.QueryParam("timeframe"); tf != "" {
		if !config.IsValidTimeframe(tf) {
			return overrides, xe.ErrInvalidParams
		}
		overrides.Timeframe = tf
	}

	if raw := c.QueryParam("limit"); raw != "" {
		v, err := cast.ToIntE(raw)
		if err != nil || v < 1 || v > maxRunLimit {
			return overrides, xe.ErrInvalidParams
		}
		overrides.Limit = v
	}

	return overrides, nil
}

// GetLatest 获取最近一次结果，不触发新运行
// GET /api/analysis/latest
func (h *AnalysisHandler) GetLatest(c echo.Context) error {
	result := h.analysisLoop.Latest()
	if result == nil {
		return xe.ErrNoAnalysis
	}
	return c.JSON(http.StatusOK, result)
}

// GetRecentInsights 获取最近的洞察记录
// GET /api/insights/recent
func (h *AnalysisHandler) GetRecentInsights(c echo.Context) error {
	ctx := c.Request().Context()

	limit := defaultInsightLimit
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := cast.ToIntE(raw)
		if err != nil || v <= 0 || v > 100 {
			return xe.ErrInvalidParams
		}
		limit = v
	}

	logs, err := h.insightService.FindRecent(ctx, limit)
	if err != nil {
		h.logger.Error("failed to load insight logs", zap.Error(err))
		return err
	}
	return c.JSON(http.StatusOK, logs)
}

// ClearCache 清空缓存
// DELETE /api/cache
func (h *AnalysisHandler) ClearCache(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.cacheService.Clear(ctx); err != nil {
		h.logger.Error("failed to clear cache", zap.Error(err))
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cleared": true,
	})
}
