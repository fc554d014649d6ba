package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/gurtprime/merlinCLI/internal/config"
	"github.com/gurtprime/merlinCLI/internal/handler"
	"github.com/gurtprime/merlinCLI/internal/models"
	"github.com/gurtprime/merlinCLI/internal/service"
	"github.com/gurtprime/merlinCLI/internal/telegram"
	"github.com/gurtprime/merlinCLI/pkg/nostd"
	"github.com/gurtprime/merlinCLI/web"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// AppComponents 装配完成的应用组件
type AppComponents struct {
	AnalysisHandler *handler.AnalysisHandler

	Pipeline       *service.PipelineService
	AnalysisLoop   *service.AnalysisLoop
	CacheService   *service.CacheService
	InsightService *service.InsightService

	Telegram *telegram.Telegram
}

// Bootstrap 加载配置、初始化日志与存储并装配全部组件
func Bootstrap(configPath string) (*AppComponents, *config.Config, *zap.Logger, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := NewLogger()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	db, err := OpenDatabase(conf)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	components, err := InitializeApp(logger, db, conf)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	return components, conf, logger, nil
}

// NewLogger 构造进程级日志器
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// OpenDatabase 打开缓存库并迁移表结构
func OpenDatabase(conf *config.Config) (*gorm.DB, error) {
	if err := os.MkdirAll(conf.Storage.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(conf.Storage.SqlitePath()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(models.CacheEntry{}, models.InsightLog{}); err != nil {
		return nil, fmt.Errorf("database auto migrate failed: %w", err)
	}
	return db, nil
}

// RunServer 启动仪表盘服务与定时刷新
func RunServer(configPath string) error {
	components, conf, logger, err := Bootstrap(configPath)
	if err != nil {
		return err
	}

	logger.Info("=================================================")
	logger.Info("Merlin Signal Dashboard Starting...")
	logger.Info("=================================================")

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true

	e.Use(middleware.Gzip())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper:      middleware.DefaultSkipper,
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			sugar := logger.Sugar()
			sugar.Error(fmt.Sprintf("[PANIC RECOVER] %v %s\n", err, stack))
			return err
		},
	}))
	e.Use(WithErrorHandler(logger))

	customValidator := nostd.CustomValidator{Validator: validator.New()}
	if err := customValidator.TransInit(); err != nil {
		logger.Sugar().Fatal("failed to init custom validator", zap.Error(err))
	}
	e.Validator = &customValidator

	e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().RequestURI
			return strings.HasPrefix(path, "/api")
		},
		Root:       "",
		Index:      "index.html",
		HTML5:      true,
		Browse:     false,
		IgnoreBase: false,
		Filesystem: http.FS(web.Assets()),
	}))

	api := e.Group("/api")
	{
		components.AnalysisHandler.RegisterRoutes(api)
	}

	if err := components.AnalysisLoop.Start(context.Background()); err != nil {
		logger.Error("analysis loop error", zap.Error(err))
	}
	if components.Telegram != nil {
		components.Telegram.Start()
	}

	logger.Info("dashboard listening", zap.String("addr", conf.Server.Addr))
	return e.Start(conf.Server.Addr)
}
