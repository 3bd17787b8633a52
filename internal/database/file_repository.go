package database

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/weiwangfds/filevault/internal/model"
	"github.com/weiwangfds/filevault/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var fileSortColumns = map[string]string{
	model.SortFilename:    "filename",
	model.SortSize:        "size",
	model.SortCreatedAt:   "created_at",
	model.SortUpdatedAt:   "updated_at",
	model.SortContentType: "content_type",
	model.SortVisibility:  "visibility",
}

type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建基于GORM的文件元数据仓库
func NewFileRepository(db *gorm.DB) repository.FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, rec *model.FileRecord) error {
	if err := r.db.WithContext(ctx).Create(fromModel(rec)).Error; err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *fileRepository) Update(ctx context.Context, rec *model.FileRecord) error {
	res := r.db.WithContext(ctx).
		Model(&FileRecord{}).
		Where("file_id = ?", rec.FileID.String()).
		Updates(map[string]interface{}{
			"filename":   rec.Filename,
			"updated_at": rec.UpdatedAt,
		})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return repository.ErrDuplicateKey
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *fileRepository) Delete(ctx context.Context, fileID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID.String()).Delete(&FileTag{}).Error; err != nil {
			return err
		}
		res := tx.Where("file_id = ?", fileID.String()).Delete(&FileRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *fileRepository) FindByFileIDAndOwner(ctx context.Context, fileID, ownerID uuid.UUID) (*model.FileRecord, error) {
	var row FileRecord
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Where("file_id = ? AND owner_id = ?", fileID.String(), ownerID.String()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	rec := row.toModel()
	return &rec, nil
}

func (r *fileRepository) FindByFilenameAndOwner(ctx context.Context, filename string, ownerID uuid.UUID) (*model.FileRecord, error) {
	var row FileRecord
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Where("filename = ? AND owner_id = ?", filename, ownerID.String()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rec := row.toModel()
	return &rec, nil
}

func (r *fileRepository) List(ctx context.Context, filter model.FileFilter, page model.PageRequest) (*model.Page[model.FileRecord], error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.OwnerID != nil {
			db = db.Where("owner_id = ?", filter.OwnerID.String())
		}
		if filter.Visibility != nil {
			db = db.Where("visibility = ?", string(*filter.Visibility))
		}
		if len(filter.AnyTags) > 0 {
			db = db.Where("file_id IN (?)",
				r.db.Model(&FileTag{}).Select("file_id").Where("tag IN ?", filter.AnyTags))
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&FileRecord{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Scopes(scope).Preload("Tags")
	q = orderBy(q, page.Sort, fileSortColumns)

	var rows []FileRecord
	if err := q.Offset(page.Offset()).Limit(page.Size).Find(&rows).Error; err != nil {
		return nil, err
	}

	content := make([]model.FileRecord, 0, len(rows))
	for i := range rows {
		content = append(content, rows[i].toModel())
	}
	return model.NewPage(content, page, total), nil
}

// orderBy applies the requested ordering, falling back to insertion order so
// that paging is stable.
func orderBy(q *gorm.DB, sorts []model.SortOrder, columns map[string]string) *gorm.DB {
	for _, s := range sorts {
		col, ok := columns[s.Field]
		if !ok {
			continue
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: s.Desc})
	}
	return q.Order("id")
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
