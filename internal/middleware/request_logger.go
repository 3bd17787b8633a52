package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/filevault/internal/logger"
	"github.com/weiwangfds/filevault/internal/response"
)

// bodyCaptureWriter 捕获响应体的写入器
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body  *bytes.Buffer
	limit int
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	if room := w.limit - w.body.Len(); room > 0 {
		if len(b) > room {
			w.body.Write(b[:room])
		} else {
			w.body.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// RequestLoggerConfig 请求日志中间件配置
type RequestLoggerConfig struct {
	Enabled     bool
	SkipPaths   []string
	MaxBodySize int
}

// DefaultRequestLoggerConfig 默认配置
func DefaultRequestLoggerConfig() *RequestLoggerConfig {
	return &RequestLoggerConfig{
		Enabled:     gin.Mode() == gin.DebugMode,
		SkipPaths:   []string{"/health", "/ready", "/metrics", "/favicon.ico"},
		MaxBodySize: 64 * 1024,
	}
}

// RequestLogger 记录请求与响应体的调试日志
// 文件上传（multipart）和下载（octet-stream）的内容从不缓存或记录
func RequestLogger(cfg *RequestLoggerConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultRequestLoggerConfig()
	}
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		var requestBody interface{}
		if isLoggable(c.ContentType()) && c.Request.Body != nil {
			requestBody = readRequestBody(c, cfg.MaxBodySize)
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}, limit: cfg.MaxBodySize}
		c.Writer = writer

		c.Next()

		fields := logrus.Fields{
			"type":        "request_log",
			"request_id":  response.RequestID(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"query":       c.Request.URL.Query(),
			"status_code": writer.Status(),
			"size":        writer.Size(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if requestBody != nil {
			fields["body"] = requestBody
		}
		if isLoggable(writer.Header().Get("Content-Type")) && writer.body.Len() > 0 {
			fields["response_body"] = parseBody(writer.body.Bytes())
		}
		logger.WithFields(fields).Debug("[REQUEST_LOG]")
	}
}

// isLoggable rejects file payloads.
func isLoggable(contentType string) bool {
	ct := strings.ToLower(contentType)
	return !strings.HasPrefix(ct, "multipart/") && !strings.HasPrefix(ct, "application/octet-stream")
}

// readRequestBody 读取请求体并重置，以便后续处理器读取
func readRequestBody(c *gin.Context, maxSize int) interface{} {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(maxSize)))
	if err != nil {
		return map[string]string{"error": "failed to read request body"}
	}
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
	if len(body) == 0 {
		return nil
	}
	return parseBody(body)
}

func parseBody(body []byte) interface{} {
	var jsonBody interface{}
	if err := json.Unmarshal(body, &jsonBody); err == nil {
		return jsonBody
	}
	return string(body)
}
