// Package response 统一HTTP响应格式
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/filevault/internal/errors"
	"github.com/weiwangfds/filevault/internal/logger"
)

// ErrorBody 错误响应结构体
type ErrorBody struct {
	Timestamp time.Time `json:"timestamp"`
	// 业务错误码，如 error.same.file
	Code   string `json:"code"`
	Status int    `json:"status"`
	Path   string `json:"path"`
	// 错误类别，如 ValidationError
	Error string `json:"error"`
	// 字符串，或校验失败时的 {字段: 消息}
	Message interface{} `json:"message"`
}

// now is replaced in tests.
var now = time.Now

// Success 成功响应，直接返回数据
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error 错误响应
// AppError 按其类别映射状态码；其他错误一律视为内部错误，原始信息只写日志
func Error(c *gin.Context, err error) {
	appErr, ok := errors.GetAppError(err)
	if !ok {
		appErr = errors.Internal(err)
	}

	status := appErr.Status()
	fields := logrus.Fields{
		"code":   appErr.Code,
		"status": status,
		"path":   c.Request.URL.Path,
	}
	if id := RequestID(c); id != "" {
		fields["request_id"] = id
	}
	if status >= http.StatusInternalServerError {
		logger.WithFields(fields).WithError(appErr.OriginalError).Error(appErr.Message)
	} else {
		logger.WithFields(fields).Debug(appErr.Message)
	}

	var message interface{} = appErr.Message
	if appErr.Details != nil {
		message = appErr.Details
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorBody{
		Timestamp: now().UTC(),
		Code:      appErr.Code,
		Status:    status,
		Path:      c.Request.URL.Path,
		Error:     appErr.Kind.String(),
		Message:   message,
	})
}

// RequestID 获取请求ID
func RequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// RequestIDKey is the gin context key and response header for request ids.
const RequestIDKey = "X-Request-ID"
