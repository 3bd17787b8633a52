package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weiwangfds/filevault/internal/logger"
	"github.com/weiwangfds/filevault/internal/model"
	"github.com/weiwangfds/filevault/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tagSortColumns = map[string]string{
	model.SortTagName:   "tag_name",
	model.SortCreatedAt: "created_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type tagRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTagRepository 创建基于GORM的标签仓库
func NewTagRepository(db *gorm.DB) repository.TagRepository {
	return &tagRepository{db: db, now: time.Now}
}

// Upsert inserts each name on its own so that one failure does not stop the
// rest; all failures are returned joined.
func (r *tagRepository) Upsert(ctx context.Context, names []string) error {
	now := r.now().UTC()
	var errs []error
	for _, name := range names {
		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tag_name"}}, DoNothing: true}).
			Create(&TagRecord{TagName: name, CreatedAt: now}).Error
		if err != nil {
			logger.WithFields(map[string]interface{}{"tag": name, "error": err}).Warn("failed to register tag")
			errs = append(errs, fmt.Errorf("tag %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *tagRepository) Search(ctx context.Context, query string, page model.PageRequest) (*model.Page[string], error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if query == "" {
			return db
		}
		pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
		return db.Where(`LOWER(tag_name) LIKE ? ESCAPE '\'`, pattern)
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&TagRecord{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Model(&TagRecord{}).Scopes(scope)
	q = orderBy(q, page.Sort, tagSortColumns)

	var names []string
	if err := q.Offset(page.Offset()).Limit(page.Size).Pluck("tag_name", &names).Error; err != nil {
		return nil, err
	}
	return model.NewPage(names, page, total), nil
}
