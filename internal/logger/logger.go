// Package logger wraps a process-wide logrus instance.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger 全局日志实例
var Logger *logrus.Logger

// Config 日志配置
type Config struct {
	// Level: debug, info, warn, error, fatal, panic
	Level string `mapstructure:"level"`
	// Format: json or text
	Format string `mapstructure:"format"`
	// Output: console, file or both
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfig 返回默认日志配置
func DefaultConfig() *Config {
	return &Config{
		Level:    "info",
		Format:   "text",
		Output:   "console",
		FilePath: "logs/filevault.log",
	}
}

// Init 初始化日志系统
// A nil config falls back to DefaultConfig. Unknown level or format values
// are logged and replaced with info/text rather than rejected.
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
		l.Warnf("invalid log level %q, falling back to info", config.Level)
	}
	l.SetLevel(level)

	switch config.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
		l.Warnf("invalid log format %q, falling back to text", config.Format)
	}

	out, err := openOutput(config)
	if err != nil {
		return err
	}
	l.SetOutput(out)

	Logger = l
	setupGinLogger()
	return nil
}

func openOutput(config *Config) (io.Writer, error) {
	switch config.Output {
	case "file", "both":
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		if config.Output == "file" {
			return f, nil
		}
		return io.MultiWriter(os.Stdout, f), nil
	default:
		return os.Stdout, nil
	}
}

// setupGinLogger routes gin's own debug and error output through logrus.
func setupGinLogger() {
	w := &ginLogWriter{logger: Logger}
	gin.DefaultWriter = w
	gin.DefaultErrorWriter = w
}

type ginLogWriter struct {
	logger *logrus.Logger
}

func (w *ginLogWriter) Write(p []byte) (int, error) {
	w.logger.Info(string(p))
	return len(p), nil
}

// GetLogger returns the shared logger, initialising it with defaults on first use.
func GetLogger() *logrus.Logger {
	if Logger == nil {
		if err := Init(nil); err != nil {
			return logrus.StandardLogger()
		}
	}
	return Logger
}

func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }

func Info(args ...interface{}) { GetLogger().Info(args...) }

func Infof(format string, args ...interface{}) { GetLogger().Infof(format, args...) }

func Warnf(format string, args ...interface{}) { GetLogger().Warnf(format, args...) }

func Error(args ...interface{}) { GetLogger().Error(args...) }

func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }

func Fatalf(format string, args ...interface{}) { GetLogger().Fatalf(format, args...) }

// WithField 添加字段到日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields 添加多个字段到日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithError attaches err under logrus' standard error key.
func WithError(err error) *logrus.Entry {
	return GetLogger().WithError(err)
}
