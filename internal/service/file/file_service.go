// Package service 提供文件管理相关的业务逻辑服务
// Uploads are staged to a temp file, fingerprinted, written to the object
// store and only then recorded in the metadata store.
package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/filevault/internal/errors"
	"github.com/weiwangfds/filevault/internal/filename"
	"github.com/weiwangfds/filevault/internal/logger"
	"github.com/weiwangfds/filevault/internal/model"
	"github.com/weiwangfds/filevault/internal/repository"
	"github.com/weiwangfds/filevault/internal/storage"
	"github.com/weiwangfds/filevault/internal/tags"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filevault_uploads_total",
		Help: "Uploads by outcome (success, duplicate, error).",
	}, []string{"result"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filevault_upload_bytes_total",
		Help: "Bytes accepted by successful uploads.",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filevault_downloads_total",
		Help: "Download requests by outcome.",
	}, []string{"result"})
)

// MaxFilenameLength bounds the name given on rename.
const MaxFilenameLength = 50

// FileService 文件服务接口
type FileService interface {
	// UploadFile stores new content for req.OwnerID. Duplicate uploads by the
	// same owner fail with a DuplicateFile error.
	UploadFile(ctx context.Context, req UploadRequest) (*model.FileRecord, error)

	// GetFile returns the record and an open content stream. Only the owner
	// may read; any other caller gets the same NotFound as for a missing id.
	// The caller closes the stream.
	GetFile(ctx context.Context, ownerID, fileID uuid.UUID) (*model.FileRecord, io.ReadCloser, error)

	// RenameFile changes the display name, keeping the extension.
	RenameFile(ctx context.Context, ownerID, fileID uuid.UUID, newName string) (*model.FileRecord, error)

	// DeleteFile removes the object first and the metadata second.
	DeleteFile(ctx context.Context, ownerID, fileID uuid.UUID) error

	ListPublicFiles(ctx context.Context, tagFilter []string, page model.PageRequest) (*model.Page[model.FileRecord], error)
	ListUserFiles(ctx context.Context, ownerID uuid.UUID, tagFilter []string, page model.PageRequest) (*model.Page[model.FileRecord], error)

	// DownloadLink is the absolute URL clients use to fetch rec.
	DownloadLink(rec *model.FileRecord) string
}

// UploadRequest 上传请求
type UploadRequest struct {
	OwnerID  uuid.UUID
	Filename string
	// ContentType is detected from the content when empty.
	ContentType string
	Visibility  model.Visibility
	Tags        []string
	Content     io.Reader
}

// Config 文件服务配置
type Config struct {
	// TempDir receives staged uploads; created on demand.
	TempDir string
	// Domain prefixes download links, without a trailing slash.
	Domain string
}

type fileService struct {
	files   repository.FileRepository
	storage storage.ObjectStorage
	config  Config
	now     func() time.Time
}

// NewFileService 创建文件服务实例
func NewFileService(files repository.FileRepository, store storage.ObjectStorage, cfg Config) FileService {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	cfg.Domain = strings.TrimRight(cfg.Domain, "/")
	return &fileService{
		files:   files,
		storage: store,
		config:  cfg,
		now:     time.Now,
	}
}

func (s *fileService) UploadFile(ctx context.Context, req UploadRequest) (*model.FileRecord, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, errors.Validation(errors.CodeFilenameAbsent, "filename is absent")
	}
	if req.Content == nil {
		return nil, errors.Validation(errors.CodeFileAbsent, "file is absent")
	}
	if _, ok := model.ParseVisibility(string(req.Visibility)); !ok {
		return nil, errors.Validation(errors.CodeValidationFailed, "visibility must be PUBLIC or PRIVATE")
	}
	if tags.CountDistinct(req.Tags) > tags.MaxPerFile {
		return nil, errors.Validation(errors.CodeValidationFailed,
			fmt.Sprintf("a file may carry at most %d tags", tags.MaxPerFile))
	}
	normalized := tags.Normalize(req.Tags)

	fileID := uuid.New()
	log := logger.WithFields(logrus.Fields{
		"file_id":  fileID,
		"owner_id": req.OwnerID,
		"filename": req.Filename,
	})

	staged, err := s.stage(req.Filename, req.Content)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, errors.Storage(errors.CodeFileUpload, "failed to receive file content", err)
	}
	defer staged.remove()

	contentType := req.ContentType
	if contentType == "" {
		if mt, err := mimetype.DetectFile(staged.path); err == nil {
			contentType = mt.String()
		} else {
			contentType = "application/octet-stream"
		}
	}

	mapping, err := filename.BuildWithSniffer(fileID.String(), req.Filename, func() (string, error) {
		mt, err := mimetype.DetectFile(staged.path)
		if err != nil {
			return "", err
		}
		return mt.String(), nil
	})
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, errors.Internal(fmt.Errorf("detect content type: %w", err))
	}

	// Records hold the mapped name, so a name without an extension is
	// compared after sniffing.
	existing, err := s.files.FindByFilenameAndOwner(ctx, mapping.DisplayName, req.OwnerID)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, errors.MetadataStore(errors.CodeMetadataStore, "failed to check for duplicates", err)
	}
	if existing != nil {
		uploadsTotal.WithLabelValues("duplicate").Inc()
		if existing.Filename == mapping.DisplayName {
			log.Info("upload rejected, filename already in use")
			return nil, errors.DuplicateFile(errors.DuplicateFilename)
		}
		if existing.Checksum == staged.checksum {
			log.Info("upload rejected, identical content")
			return nil, errors.DuplicateFile(errors.DuplicateContent)
		}
	}

	if err := s.putStaged(ctx, staged, mapping.StorageKey, contentType); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		log.WithError(err).Error("failed to store object")
		return nil, storageError(errors.CodeFileUpload, "failed to upload file", err)
	}

	now := s.now().UTC()
	rec := &model.FileRecord{
		FileID:      fileID,
		OwnerID:     req.OwnerID,
		Filename:    mapping.DisplayName,
		Checksum:    staged.checksum,
		StorageKey:  mapping.StorageKey,
		Tags:        normalized,
		Size:        staged.size,
		Visibility:  req.Visibility,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.files.Create(ctx, rec); err != nil {
		s.discardObject(ctx, mapping.StorageKey)
		if stderrors.Is(err, repository.ErrDuplicateKey) {
			uploadsTotal.WithLabelValues("duplicate").Inc()
			log.Info("upload lost a race with an identical upload")
			return nil, errors.DuplicateFile(errors.DuplicateFilename)
		}
		uploadsTotal.WithLabelValues("error").Inc()
		log.WithError(err).Error("failed to save file metadata")
		return nil, errors.MetadataStore(errors.CodeMetadataStore, "failed to save file metadata", err)
	}

	uploadsTotal.WithLabelValues("success").Inc()
	uploadBytesTotal.Add(float64(staged.size))
	log.WithFields(logrus.Fields{"size": staged.size, "key": rec.StorageKey}).Info("file uploaded")
	return rec, nil
}

func (s *fileService) putStaged(ctx context.Context, staged *stagedFile, key, contentType string) error {
	f, err := os.Open(staged.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.storage.Put(ctx, key, f, staged.size, contentType)
}

// discardObject undoes a Put whose metadata could not be saved. It runs even
// if the request was cancelled.
func (s *fileService) discardObject(ctx context.Context, key string) {
	if err := s.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.WithFields(logrus.Fields{"key": key, "error": err}).Warn("failed to remove orphaned object")
	}
}

func (s *fileService) GetFile(ctx context.Context, ownerID, fileID uuid.UUID) (*model.FileRecord, io.ReadCloser, error) {
	rec, err := s.findOwned(ctx, ownerID, fileID)
	if err != nil {
		downloadsTotal.WithLabelValues("not_found").Inc()
		return nil, nil, err
	}

	rc, err := s.storage.Get(ctx, rec.StorageKey)
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		logger.WithFields(logrus.Fields{"file_id": fileID, "key": rec.StorageKey, "error": err}).Error("failed to open object")
		return nil, nil, storageError(errors.CodeStorageUnexpected, "failed to read file", err)
	}
	downloadsTotal.WithLabelValues("success").Inc()
	return rec, rc, nil
}

func (s *fileService) RenameFile(ctx context.Context, ownerID, fileID uuid.UUID, newName string) (*model.FileRecord, error) {
	if newName == "" || len([]rune(newName)) > MaxFilenameLength {
		return nil, errors.Validation(errors.CodeValidationFailed,
			fmt.Sprintf("new filename must be between 1 and %d characters", MaxFilenameLength))
	}

	rec, err := s.findOwned(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	mapping := filename.Rename(fileID.String(), rec.Filename, newName)
	rec.Filename = mapping.DisplayName

	updated := s.now().UTC()
	if !updated.After(rec.UpdatedAt) {
		updated = rec.UpdatedAt.Add(time.Millisecond)
	}
	rec.UpdatedAt = updated

	if err := s.files.Update(ctx, rec); err != nil {
		switch {
		case stderrors.Is(err, repository.ErrNotFound):
			return nil, errors.NotFound()
		case stderrors.Is(err, repository.ErrDuplicateKey):
			return nil, errors.DuplicateFile(errors.DuplicateFilename)
		}
		return nil, errors.MetadataStore(errors.CodeMetadataStore, "failed to rename file", err)
	}

	logger.WithFields(logrus.Fields{"file_id": fileID, "filename": rec.Filename}).Info("file renamed")
	return rec, nil
}

func (s *fileService) DeleteFile(ctx context.Context, ownerID, fileID uuid.UUID) error {
	rec, err := s.findOwned(ctx, ownerID, fileID)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, rec.StorageKey); err != nil {
		logger.WithFields(logrus.Fields{"file_id": fileID, "key": rec.StorageKey, "error": err}).Error("failed to delete object")
		return storageError(errors.CodeDeleteFromStorage, "failed to delete file from storage", err)
	}

	if err := s.files.Delete(ctx, fileID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound()
		}
		logger.WithFields(logrus.Fields{"file_id": fileID, "error": err}).Error("object deleted but metadata remains")
		return errors.MetadataStore(errors.CodeDeleteFromDB, "failed to delete file metadata", err)
	}

	logger.WithField("file_id", fileID).Info("file deleted")
	return nil
}

func (s *fileService) ListPublicFiles(ctx context.Context, tagFilter []string, page model.PageRequest) (*model.Page[model.FileRecord], error) {
	public := model.VisibilityPublic
	return s.list(ctx, model.FileFilter{Visibility: &public}, tagFilter, page)
}

func (s *fileService) ListUserFiles(ctx context.Context, ownerID uuid.UUID, tagFilter []string, page model.PageRequest) (*model.Page[model.FileRecord], error) {
	return s.list(ctx, model.FileFilter{OwnerID: &ownerID}, tagFilter, page)
}

func (s *fileService) list(ctx context.Context, filter model.FileFilter, tagFilter []string, page model.PageRequest) (*model.Page[model.FileRecord], error) {
	if err := page.Validate(model.FileSortFields); err != nil {
		return nil, errors.Validation(errors.CodeValidationFailed, err.Error())
	}
	if normalized := tags.Normalize(tagFilter); len(normalized) > 0 {
		filter.AnyTags = normalized
	}

	result, err := s.files.List(ctx, filter, page)
	if err != nil {
		return nil, errors.MetadataStore(errors.CodeMetadataStore, "failed to list files", err)
	}
	return result, nil
}

func (s *fileService) DownloadLink(rec *model.FileRecord) string {
	return fmt.Sprintf("%s/api/v1/files/%s/users/%s", s.config.Domain, rec.FileID, rec.OwnerID)
}

func (s *fileService) findOwned(ctx context.Context, ownerID, fileID uuid.UUID) (*model.FileRecord, error) {
	rec, err := s.files.FindByFileIDAndOwner(ctx, fileID, ownerID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound()
		}
		return nil, errors.MetadataStore(errors.CodeMetadataStore, "failed to load file metadata", err)
	}
	return rec, nil
}

// storageError picks the security code for credential failures so operators
// can tell them apart from outages.
func storageError(code, message string, err error) *errors.AppError {
	if stderrors.Is(err, storage.ErrAccessDenied) {
		code = errors.CodeStorageSecurity
	}
	return errors.Storage(code, message, err)
}
