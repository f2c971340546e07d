package logger

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	apperrors "github.com/wekeepgrowing/carservice-backend/pkg/errors"
	"go.uber.org/zap"
)

// NewEchoRequestLogger returns a request logging middleware writing to logger.
func NewEchoRequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	config := middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		BeforeNextFunc: func(c echo.Context) {
			c.Set("request-start-time", time.Now())
		},
		HandleError: true,

		LogLatency:       true,
		LogProtocol:      true,
		LogRemoteIP:      true,
		LogHost:          true,
		LogMethod:        true,
		LogURI:           true,
		LogURIPath:       true,
		LogRoutePath:     true,
		LogRequestID:     true,
		LogUserAgent:     true,
		LogStatus:        true,
		LogError:         true,
		LogContentLength: true,
		LogResponseSize:  true,

		LogHeaders:     []string{"Content-Type", "Authorization", "Idempotency-Key"},
		LogQueryParams: []string{"page", "page_size", "status"},

		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			startTime, _ := c.Get("request-start-time").(time.Time)

			fields := []zap.Field{
				zap.String("request.remote_ip", v.RemoteIP),
				zap.String("request.host", v.Host),
				zap.String("request.protocol", v.Protocol),
				zap.String("request.method", v.Method),
				zap.String("request.uri", v.URI),
				zap.String("request.path", v.URIPath),
				zap.String("request.route", v.RoutePath),
				zap.String("request.user_agent", v.UserAgent),
				zap.String("request.request_id", v.RequestID),
				zap.String("request.content_length", v.ContentLength),
				zap.Int("response.status", v.Status),
				zap.Duration("response.latency", v.Latency),
				zap.Duration("response.elapsed_since_before_next", time.Since(startTime)),
				zap.Int64("response.response_size", v.ResponseSize),
			}

			if len(v.Headers) > 0 {
				headers := make(map[string]string, len(v.Headers))
				for k, values := range v.Headers {
					if len(values) == 0 {
						continue
					}
					headers[k] = values[0]
					if k == "Authorization" {
						headers[k] = maskToken(values[0])
					}
				}
				fields = append(fields, zap.Any("request.headers", headers))
			}

			if len(v.QueryParams) > 0 {
				fields = append(fields, zap.Any("request.query_params", v.QueryParams))
			}

			switch {
			case v.Error != nil:
				fields = append(fields, zap.Error(v.Error))
				if v.Status >= 500 {
					logger.Error("Request failed", fields...)
				} else {
					logger.Warn("Request rejected", fields...)
				}
			case v.Status >= 500:
				logger.Error("Server error", fields...)
			case v.Status >= 400:
				logger.Warn("Client error", fields...)
			default:
				logger.Info("Request completed", fields...)
			}
			return nil
		},
	}

	return middleware.RequestLoggerWithConfig(config)
}

func maskToken(val string) string {
	if len(val) > 15 {
		return val[:10] + "..." + val[len(val)-5:]
	}
	return "[MASKED]"
}

// WithEchoLogger installs the zap logger and an error handler that renders coded errors.
func WithEchoLogger(e *echo.Echo, logger *zap.Logger) {
	e.Logger = NewEchoZapLogger(logger)

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		httpErr := apperrors.ToHTTPError(err)

		if httpErr.Code >= http.StatusInternalServerError {
			apperrors.LogError(logger, err, "HTTP error",
				zap.Int("status", httpErr.Code),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("ip", c.RealIP()),
			)
		}

		if c.Response().Committed {
			return
		}

		var sendErr error
		switch body := httpErr.Message.(type) {
		case apperrors.ErrorBody:
			sendErr = c.JSON(httpErr.Code, body)
		case string:
			sendErr = c.JSON(httpErr.Code, apperrors.ErrorBody{Error: body, Code: http.StatusText(httpErr.Code)})
		default:
			sendErr = c.JSON(httpErr.Code, apperrors.ErrorBody{Error: http.StatusText(httpErr.Code)})
		}
		if c.Request().Method == http.MethodHead {
			sendErr = c.NoContent(httpErr.Code)
		}
		if sendErr != nil {
			logger.Error("Failed to send error response", zap.Error(sendErr))
		}
	}
}

// EchoZapLogger adapts zap to echo.Logger.
type EchoZapLogger struct {
	Logger *zap.Logger
}

func NewEchoZapLogger(logger *zap.Logger) *EchoZapLogger {
	return &EchoZapLogger{Logger: logger.Named("echo")}
}

func (l *EchoZapLogger) Output() io.Writer {
	return &zapWriter{logger: l.Logger}
}

// The following setters are no-ops; zap owns level and output.
func (l *EchoZapLogger) SetOutput(w io.Writer) {}
func (l *EchoZapLogger) Level() log.Lvl { return log.INFO }
func (l *EchoZapLogger) SetLevel(v log.Lvl) {}
func (l *EchoZapLogger) SetHeader(h string) {}
func (l *EchoZapLogger) Prefix() string { return "" }
func (l *EchoZapLogger) SetPrefix(p string) {}

func (l *EchoZapLogger) Print(i ...interface{}) { l.Logger.Sugar().Info(i...) }
func (l *EchoZapLogger) Printf(format string, i ...interface{}) { l.Logger.Sugar().Infof(format, i...) }
func (l *EchoZapLogger) Printj(j log.JSON) { l.Logger.Info("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Debug(i ...interface{}) { l.Logger.Sugar().Debug(i...) }
func (l *EchoZapLogger) Debugf(format string, i ...interface{}) { l.Logger.Sugar().Debugf(format, i...) }
func (l *EchoZapLogger) Debugj(j log.JSON) { l.Logger.Debug("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Info(i ...interface{}) { l.Logger.Sugar().Info(i...) }
func (l *EchoZapLogger) Infof(format string, i ...interface{}) { l.Logger.Sugar().Infof(format, i...) }
func (l *EchoZapLogger) Infoj(j log.JSON) { l.Logger.Info("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Warn(i ...interface{}) { l.Logger.Sugar().Warn(i...) }
func (l *EchoZapLogger) Warnf(format string, i ...interface{}) { l.Logger.Sugar().Warnf(format, i...) }
func (l *EchoZapLogger) Warnj(j log.JSON) { l.Logger.Warn("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Error(i ...interface{}) { l.Logger.Sugar().Error(i...) }
func (l *EchoZapLogger) Errorf(format string, i ...interface{}) { l.Logger.Sugar().Errorf(format, i...) }
func (l *EchoZapLogger) Errorj(j log.JSON) { l.Logger.Error("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Fatal(i ...interface{}) { l.Logger.Sugar().Fatal(i...) }
func (l *EchoZapLogger) Fatalf(format string, i ...interface{}) { l.Logger.Sugar().Fatalf(format, i...) }
func (l *EchoZapLogger) Fatalj(j log.JSON) { l.Logger.Fatal("json_message", zap.Any("json", j)) }
func (l *EchoZapLogger) Panic(i ...interface{}) { l.Logger.Sugar().Panic(i...) }
func (l *EchoZapLogger) Panicf(format string, i ...interface{}) { l.Logger.Sugar().Panicf(format, i...) }
func (l *EchoZapLogger) Panicj(j log.JSON) { l.Logger.Panic("json_message", zap.Any("json", j)) }

type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Write(p []byte) (n int, err error) {
	w.logger.Info(string(p))
	return len(p), nil
}
