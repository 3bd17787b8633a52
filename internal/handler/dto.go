package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/weiwangfds/filevault/internal/model"
)

// FileResponse 文件元数据响应
type FileResponse struct {
	ID           uuid.UUID        `json:"id"`
	Filename     string           `json:"filename"`
	UserID       uuid.UUID        `json:"userId"`
	Tags         []string         `json:"tags"`
	Size         int64            `json:"size"`
	Visibility   model.Visibility `json:"visibility"`
	ContentType  string           `json:"contentType"`
	DownloadLink string           `json:"downloadLink"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// UploadForm 上传表单
type UploadForm struct {
	UserID     string   `form:"userId" binding:"required,uuid"`
	Visibility string   `form:"visibility" binding:"required,oneof=PUBLIC PRIVATE"`
	Tags       []string `form:"tags"`
}

// RenameRequest 重命名请求
type RenameRequest struct {
	NewFilename string `json:"newFilename" binding:"required,min=1,max=50"`
	UserID      string `json:"userId" binding:"required,uuid"`
}

// SuccessResponse 操作结果
type SuccessResponse struct {
	Success bool `json:"success"`
}
