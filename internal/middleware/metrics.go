package middleware

import (
	"crypto/subtle"
	"strconv"
	"time"

	"mentor-api/internal/ctx"
	"mentor-api/internal/metrics"
	"mentor-api/internal/shared"

	"github.com/aidarkhanov/nanoid"
	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func NewTrackMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID, _ := nanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 28)
			reqID = "req_" + reqID
			externalID := c.Request().Header.Get("X-Request-Id")
			logger := log.With("request_id", reqID)

			cc := &ctx.Context{
				Context: c,
				Log:     logger,
				Reqid:   reqID,
				LogValues: &ctx.ContextLogValues{
					RequestID:  reqID,
					ExternalID: externalID,
					StartTime:  time.Now(),
					Path:       c.Path(),
				},
			}
			c.Response().Header().Set("X-Request-Id", reqID)

			err := next(cc)
			if err != nil {
				// Let echo write the error response so the status code below is final
				cc.Error(err)
				cc.LogValues.AddError(err)
			}

			cc.LogValues.RequestDuration = time.Since(cc.LogValues.StartTime)
			cc.LogValues.StatusCode = cc.Response().Status
			status := strconv.Itoa(cc.Response().Status)
			metrics.ResponseCodes.WithLabelValues(cc.Path(), status).Inc()

			switch {
			case cc.LogValues.LogLevel == "ERROR" || cc.Response().Status >= 500:
				logger.Errorw("end_of_request", "request", cc.LogValues)
			case cc.LogValues.LogLevel == "WARN" || cc.Response().Status >= 400:
				logger.Warnw("end_of_request", "request", cc.LogValues)
			default:
				logger.Infow("end_of_request", "request", cc.LogValues)
			}
			return nil
		}
	}
}

func NewRecoverMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return emw.RecoverWithConfig(emw.RecoverConfig{
		StackSize: 1 << 10, // 1 KB
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			defer func() {
				_ = log.Sync()
			}()
			log.Errorw("Api Panic", "error", err.Error(), "stack", string(stack))
			if cc, ok := c.(*ctx.Context); ok {
				cc.LogValues.AddError(err)
				cc.LogValues.LogLevel = "ERROR"
			}
			return c.String(500, shared.ErrInternalServerError.Err.Error())
		},
	})
}

// NewMetricsAuthMiddleware guards /metrics with a bearer key. An empty key
// leaves the endpoint open.
func NewMetricsAuthMiddleware(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return next(c)
			}
			key, err := shared.ExtractAPIKey(c)
			if err != nil {
				return c.String(401, "Missing or invalid API key")
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				return c.String(401, "Unauthorized API key")
			}
			return next(c)
		}
	}
}
