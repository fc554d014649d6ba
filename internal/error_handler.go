package internal

import (
	"errors"
	"net/http"

	"github.com/go-orz/orz"
	"github.com/gurtprime/merlinCLI/internal/xe"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func WithErrorHandler(logger *zap.Logger) func(next echo.HandlerFunc) echo.HandlerFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					return c.JSON(he.Code, orz.Map{
						"code":    he.Code,
						"message": err.Error(),
					})
				}

				var oe *orz.Error
				if errors.As(err, &oe) {
					var code = http.StatusBadRequest
					if errors.Is(err, xe.ErrNoAnalysis) {
						code = http.StatusNotFound
					}
					if errors.Is(err, xe.ErrPipelineFailure) || errors.Is(err, xe.ErrCacheCorrupted) {
						code = http.StatusInternalServerError
					}
					return c.JSON(code, orz.Map{
						"code":    oe.Code,
						"message": err.Error(),
					})
				}

				logger.Sugar().Error("api", zap.Error(err))

				return c.JSON(http.StatusInternalServerError, orz.Map{
					"code":    500,
					"message": err.Error(),
				})
			}
			return nil
		}
	}
}
