// Package logger wraps log/slog behind small package-level helpers so call
// sites never thread a *Logger through every function signature.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with convenience methods.
type Logger struct {
	*slog.Logger
}

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	defaultLogger *Logger
	currentLevel  = LevelInfo
)

// Init initializes the global logger at the given level ("debug",
// "warn"/"warning", "error"; anything else defaults to info).
func Init(level string) {
	switch strings.ToLower(level) {
	case "debug":
		currentLevel = LevelDebug
	case "warn", "warning":
		currentLevel = LevelWarn
	case "error":
		currentLevel = LevelError
	default:
		currentLevel = LevelInfo
	}

	var slogLevel slog.Level
	switch currentLevel {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     slogLevel,
		AddSource: false,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{Key: a.Key, Value: slog.StringValue(a.Value.Time().Format("15:04:05"))}
			}
			if a.Key == slog.LevelKey {
				switch a.Value.Any().(slog.Level) {
				case slog.LevelDebug:
					a.Value = slog.StringValue("DEBUG")
				case slog.LevelInfo:
					a.Value = slog.StringValue("INFO ")
				case slog.LevelWarn:
					a.Value = slog.StringValue("WARN ")
				case slog.LevelError:
					a.Value = slog.StringValue("ERROR")
				}
			}
			return a
		},
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	defaultLogger = &Logger{slog.New(handler)}
}

// Get returns the default logger instance, initializing it from LOG_LEVEL
// if Init hasn't run yet.
func Get() *Logger {
	if defaultLogger == nil {
		Init(os.Getenv("LOG_LEVEL"))
	}
	return defaultLogger
}

func GetLevel() LogLevel { return currentLevel }

func Debug(msg string, args ...any) {
	if currentLevel <= LevelDebug {
		Get().Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if currentLevel <= LevelInfo {
		Get().Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if currentLevel <= LevelWarn {
		Get().Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if currentLevel <= LevelError {
		Get().Error(msg, args...)
	}
}

func WithContext(key string, value any) *Logger {
	return &Logger{Get().With(key, value)}
}

// WorkerInfo logs a worker lifecycle event for one job at DEBUG.
func WorkerInfo(workerID int, jobID, event string, args ...any) {
	Debug("worker event", append([]any{"worker_id", workerID, "job_id", jobID, "event", event}, args...)...)
}

// JobTransition logs a status transition for one job.
func JobTransition(jobID string, from, to string) {
	Info("job status transition", "job_id", jobID, "from", from, "to", to)
}

// GinLogger is a minimal request logger: terse at INFO, detailed at
// DEBUG, and silent for noisy polling endpoints so status-polling clients
// don't flood the log.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		if currentLevel <= LevelInfo && strings.HasPrefix(c.Request.URL.Path, "/status") {
			return
		}

		status := c.Writer.Status()
		if currentLevel <= LevelDebug {
			Debug("http request",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"duration", fmt.Sprintf("%.2fms", float64(duration.Nanoseconds())/1e6),
				"ip", c.ClientIP())
			return
		}

		fmt.Printf("INFO  %s %s %s %s%d%s %s\n",
			time.Now().Format("15:04:05"),
			c.Request.Method,
			path,
			statusColor(status),
			status,
			"\033[0m",
			fmt.Sprintf("%.2fms", float64(duration.Nanoseconds())/1e6))
	}
}

func statusColor(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "\033[32m"
	case status >= 300 && status < 400:
		return "\033[33m"
	case status >= 400 && status < 500:
		return "\033[31m"
	case status >= 500:
		return "\033[35m"
	default:
		return "\033[37m"
	}
}

// SetGinOutput suppresses gin's own default request logging in favor of
// GinLogger above.
func SetGinOutput() {
	gin.DefaultWriter = io.Discard
}
