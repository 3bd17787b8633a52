package handler

import (
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/filevault/internal/errors"
	"github.com/weiwangfds/filevault/internal/logger"
	"github.com/weiwangfds/filevault/internal/model"
	"github.com/weiwangfds/filevault/internal/response"
	fileservice "github.com/weiwangfds/filevault/internal/service/file"
	tagservice "github.com/weiwangfds/filevault/internal/service/tag"
	"github.com/weiwangfds/filevault/internal/tags"
)

// FileHandler 文件处理器
// @Description 文件管理相关的HTTP处理器
type FileHandler struct {
	fileService   fileservice.FileService
	tagService    tagservice.TagService
	maxUploadSize int64
}

// NewFileHandler 创建文件处理器实例
// maxUploadSize 为0时不限制请求体大小
func NewFileHandler(fileService fileservice.FileService, tagService tagservice.TagService, maxUploadSize int64) *FileHandler {
	return &FileHandler{
		fileService:   fileService,
		tagService:    tagService,
		maxUploadSize: maxUploadSize,
	}
}

// UploadFile 上传文件
// @Summary 上传文件
// @Description 上传文件到存储，同一用户的重复文件会被拒绝
// @Tags 文件管理
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "要上传的文件"
// @Param userId formData string true "用户ID"
// @Param visibility formData string true "PUBLIC 或 PRIVATE"
// @Param tags formData []string false "标签，最多5个"
// @Success 200 {object} FileResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 500 {object} response.ErrorBody
// @Router /api/v1/files/upload [post]
func (h *FileHandler) UploadFile(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	file, err := c.FormFile("file")
	if err != nil {
		if stderrors.Is(err, http.ErrMissingFile) {
			response.Error(c, errors.Validation(errors.CodeFileAbsent, "required part 'file' is not present"))
			return
		}
		var maxBytes *http.MaxBytesError
		if stderrors.As(err, &maxBytes) {
			response.Error(c, bindError(c, err))
			return
		}
		response.Error(c, errors.Wrap(errors.KindValidation, errors.CodeMultipartParsing, "failed to parse multipart request", err))
		return
	}

	var form UploadForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, bindError(c, err))
		return
	}
	ownerID := uuid.MustParse(form.UserID)

	src, err := file.Open()
	if err != nil {
		response.Error(c, errors.Wrap(errors.KindValidation, errors.CodeMultipartParsing, "failed to read uploaded file", err))
		return
	}
	defer src.Close()

	rec, err := h.fileService.UploadFile(c.Request.Context(), fileservice.UploadRequest{
		OwnerID:     ownerID,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Visibility:  model.Visibility(form.Visibility),
		Tags:        tags.Split(form.Tags),
		Content:     src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.tagService.Register(c.Request.Context(), rec.Tags)

	logger.WithFields(logrus.Fields{
		"file_id":  rec.FileID,
		"filename": file.Filename,
		"user_id":  ownerID,
	}).Info("file uploaded to storage")
	response.Success(c, h.toResponse(*rec))
}

// DownloadFile 下载文件
// @Summary 下载文件
// @Description 通过直链下载文件，仅文件所有者可访问
// @Tags 文件管理
// @Produce application/octet-stream
// @Param fileId path string true "文件ID"
// @Param userId path string true "用户ID"
// @Success 200 {file} file "文件内容"
// @Failure 404 {object} response.ErrorBody
// @Router /api/v1/files/{fileId}/users/{userId} [get]
func (h *FileHandler) DownloadFile(c *gin.Context) {
	fileID, err := uuidParam(c, "fileId")
	if err != nil {
		response.Error(c, err)
		return
	}
	ownerID, err := uuidParam(c, "userId")
	if err != nil {
		response.Error(c, err)
		return
	}

	rec, content, err := h.fileService.GetFile(c.Request.Context(), ownerID, fileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer content.Close()

	logger.WithFields(logrus.Fields{"file_id": fileID, "user_id": ownerID}).Info("retrieving file from storage")
	c.DataFromReader(http.StatusOK, rec.Size, "application/octet-stream", content, map[string]string{
		"Content-Disposition": contentDisposition(rec.Filename),
	})
}

// contentDisposition quotes ASCII names and falls back to RFC 5987 encoding
// for everything else.
func contentDisposition(name string) string {
	for _, r := range name {
		if r > 0x7e || r < 0x20 {
			return "attachment; filename*=UTF-8''" + url.PathEscape(name)
		}
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name)
	return `attachment; filename="` + escaped + `"`
}

// ListPublicFiles 公开文件列表
// @Summary 公开文件列表
// @Tags 文件管理
// @Produce json
// @Param tags query []string false "标签过滤，命中任一即可"
// @Param page query int false "页码，从0开始"
// @Param size query int false "每页数量"
// @Param sort query string false "排序，如 filename,desc"
// @Success 200 {object} model.Page[FileResponse]
// @Router /api/v1/files/public [get]
func (h *FileHandler) ListPublicFiles(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.fileService.ListPublicFiles(c.Request.Context(), tags.Split(c.QueryArray("tags")), page)
	if err != nil {
		response.Error(c, err)
		return
	}

	logger.Infof("retrieved public files, total: %d", result.TotalElements)
	response.Success(c, model.MapPage(result, h.toResponse))
}

// ListUserFiles 用户文件列表
// @Summary 用户文件列表
// @Tags 文件管理
// @Produce json
// @Param userId path string true "用户ID"
// @Param tags query []string false "标签过滤"
// @Success 200 {object} model.Page[FileResponse]
// @Router /api/v1/files/users/{userId} [get]
func (h *FileHandler) ListUserFiles(c *gin.Context) {
	ownerID, err := uuidParam(c, "userId")
	if err != nil {
		response.Error(c, err)
		return
	}
	page, err := pageRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.fileService.ListUserFiles(c.Request.Context(), ownerID, tags.Split(c.QueryArray("tags")), page)
	if err != nil {
		response.Error(c, err)
		return
	}

	logger.WithField("user_id", ownerID).Infof("retrieved user files, total: %d", result.TotalElements)
	response.Success(c, model.MapPage(result, h.toResponse))
}

// RenameFile 重命名文件
// @Summary 重命名文件
// @Tags 文件管理
// @Accept json
// @Produce json
// @Param fileId path string true "文件ID"
// @Param body body RenameRequest true "新文件名与用户ID"
// @Success 200 {object} FileResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /api/v1/files/{fileId}/rename [put]
func (h *FileHandler) RenameFile(c *gin.Context) {
	fileID, err := uuidParam(c, "fileId")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(c, err))
		return
	}
	ownerID := uuid.MustParse(req.UserID)

	rec, err := h.fileService.RenameFile(c.Request.Context(), ownerID, fileID, req.NewFilename)
	if err != nil {
		response.Error(c, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"file_id":      fileID,
		"new_filename": req.NewFilename,
		"user_id":      ownerID,
	}).Info("file renamed")
	response.Success(c, h.toResponse(*rec))
}

// DeleteFile 删除文件
// @Summary 删除文件
// @Description 先删除存储中的对象，再删除元数据
// @Tags 文件管理
// @Produce json
// @Param fileId path string true "文件ID"
// @Param userId path string true "用户ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} response.ErrorBody
// @Router /api/v1/files/{fileId}/users/{userId} [delete]
func (h *FileHandler) DeleteFile(c *gin.Context) {
	fileID, err := uuidParam(c, "fileId")
	if err != nil {
		response.Error(c, err)
		return
	}
	ownerID, err := uuidParam(c, "userId")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.fileService.DeleteFile(c.Request.Context(), ownerID, fileID); err != nil {
		response.Error(c, err)
		return
	}

	logger.WithFields(logrus.Fields{"file_id": fileID, "user_id": ownerID}).Info("file deleted from storage")
	response.Success(c, SuccessResponse{Success: true})
}

func (h *FileHandler) toResponse(rec model.FileRecord) FileResponse {
	fileTags := rec.Tags
	if fileTags == nil {
		fileTags = []string{}
	}
	return FileResponse{
		ID:           rec.FileID,
		Filename:     rec.Filename,
		UserID:       rec.OwnerID,
		Tags:         fileTags,
		Size:         rec.Size,
		Visibility:   rec.Visibility,
		ContentType:  rec.ContentType,
		DownloadLink: h.fileService.DownloadLink(&rec),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}
