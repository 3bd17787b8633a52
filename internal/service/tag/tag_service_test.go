package tag

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/filevault/config"
	"github.com/weiwangfds/filevault/internal/database"
	"github.com/weiwangfds/filevault/internal/errors"
	"github.com/weiwangfds/filevault/internal/model"
	"github.com/weiwangfds/filevault/internal/repository"
)

// setupTagService 设置测试服务
func setupTagService(t *testing.T) (TagService, repository.TagRepository) {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	repo := database.NewTagRepository(db)
	return NewTagService(repo), repo
}

func firstPage() model.PageRequest {
	return model.PageRequest{Page: 0, Size: 20, Sort: []model.SortOrder{{Field: model.SortTagName}}}
}

func TestRegisterAndSearch(t *testing.T) {
	svc, _ := setupTagService(t)
	ctx := context.Background()

	svc.Register(ctx, []string{"Work", "news", "work"})
	svc.Register(ctx, []string{"NEWS", "homework"})
	svc.Register(ctx, nil)

	t.Run("空关键词返回全部", func(t *testing.T) {
		page, err := svc.SearchTags(ctx, "", firstPage())
		require.NoError(t, err)
		assert.Equal(t, []string{"homework", "news", "work"}, page.Content)
		assert.Equal(t, int64(3), page.TotalElements)
	})

	t.Run("忽略大小写的子串匹配", func(t *testing.T) {
		page, err := svc.SearchTags(ctx, " WOR ", firstPage())
		require.NoError(t, err)
		assert.Equal(t, []string{"homework", "work"}, page.Content)
	})

	t.Run("无匹配", func(t *testing.T) {
		page, err := svc.SearchTags(ctx, "zzz", firstPage())
		require.NoError(t, err)
		assert.Empty(t, page.Content)
		assert.Equal(t, 0, page.TotalPages)
	})

	t.Run("非法排序字段", func(t *testing.T) {
		_, err := svc.SearchTags(ctx, "", model.PageRequest{Size: 20, Sort: []model.SortOrder{{Field: "size"}}})
		assert.True(t, errors.IsKind(err, errors.KindValidation))
	})
}

type brokenTags struct{}

func (brokenTags) Upsert(context.Context, []string) error { return stderrors.New("store down") }

func (brokenTags) Search(context.Context, string, model.PageRequest) (*model.Page[string], error) {
	return nil, stderrors.New("store down")
}

func TestStoreFailures(t *testing.T) {
	svc := NewTagService(brokenTags{})
	ctx := context.Background()

	assert.NotPanics(t, func() { svc.Register(ctx, []string{"a"}) })

	_, err := svc.SearchTags(ctx, "a", firstPage())
	assert.True(t, errors.IsKind(err, errors.KindMetadataStore))
}
