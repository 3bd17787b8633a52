package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/filevault/config"
	"github.com/weiwangfds/filevault/internal/model"
	"github.com/weiwangfds/filevault/internal/repository"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Init(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func newRecord(owner uuid.UUID, name string, vis model.Visibility, tags ...string) *model.FileRecord {
	id := uuid.New()
	now := time.Now().UTC()
	return &model.FileRecord{
		FileID:      id,
		OwnerID:     owner,
		Filename:    name,
		Checksum:    "0123456789abcdef0123456789abcdef",
		StorageKey:  id.String() + ".txt",
		Tags:        tags,
		Size:        5,
		Visibility:  vis,
		ContentType: "text/plain",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestFileRepository_CreateAndFind(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()

	rec := newRecord(owner, "a.txt", model.VisibilityPrivate, "news", "work")
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.FindByFileIDAndOwner(ctx, rec.FileID, owner)
	require.NoError(t, err)
	assert.Equal(t, rec.FileID, got.FileID)
	assert.Equal(t, "a.txt", got.Filename)
	assert.Equal(t, []string{"news", "work"}, got.Tags)
	assert.Equal(t, rec.StorageKey, got.StorageKey)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = repo.FindByFileIDAndOwner(ctx, rec.FileID, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	byName, err := repo.FindByFilenameAndOwner(ctx, "a.txt", owner)
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, rec.FileID, byName.FileID)

	missing, err := repo.FindByFilenameAndOwner(ctx, "b.txt", owner)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFileRepository_CreateDuplicate(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, repo.Create(ctx, newRecord(owner, "a.txt", model.VisibilityPublic)))
	err := repo.Create(ctx, newRecord(owner, "a.txt", model.VisibilityPublic))
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	// same name and checksum under a different owner is fine
	assert.NoError(t, repo.Create(ctx, newRecord(uuid.New(), "a.txt", model.VisibilityPublic)))
}

func TestFileRepository_UpdateAndDelete(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()

	rec := newRecord(owner, "a.txt", model.VisibilityPrivate, "x")
	require.NoError(t, repo.Create(ctx, rec))

	rec.Filename = "b.txt"
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Second)
	require.NoError(t, repo.Update(ctx, rec))

	got, err := repo.FindByFileIDAndOwner(ctx, rec.FileID, owner)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", got.Filename)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	require.NoError(t, repo.Delete(ctx, rec.FileID))
	_, err = repo.FindByFileIDAndOwner(ctx, rec.FileID, owner)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, rec.FileID), repository.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, rec), repository.ErrNotFound)
}

func TestFileRepository_List(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, repo.Create(ctx, newRecord(alice, "c.txt", model.VisibilityPublic, "news")))
	require.NoError(t, repo.Create(ctx, newRecord(alice, "a.txt", model.VisibilityPrivate, "work")))
	require.NoError(t, repo.Create(ctx, newRecord(bob, "b.txt", model.VisibilityPublic, "work", "news")))
	require.NoError(t, repo.Create(ctx, newRecord(bob, "d.txt", model.VisibilityPublic)))

	public := model.VisibilityPublic
	byName := []model.SortOrder{{Field: model.SortFilename}}

	t.Run("public only", func(t *testing.T) {
		page, err := repo.List(ctx, model.FileFilter{Visibility: &public}, model.PageRequest{Page: 0, Size: 10, Sort: byName})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.TotalElements)
		assert.Equal(t, []string{"b.txt", "c.txt", "d.txt"}, filenames(page.Content))
	})

	t.Run("any of tags", func(t *testing.T) {
		page, err := repo.List(ctx, model.FileFilter{Visibility: &public, AnyTags: []string{"news", "work"}},
			model.PageRequest{Page: 0, Size: 10, Sort: byName})
		require.NoError(t, err)
		assert.Equal(t, []string{"b.txt", "c.txt"}, filenames(page.Content))
	})

	t.Run("owner sees private files", func(t *testing.T) {
		page, err := repo.List(ctx, model.FileFilter{OwnerID: &alice},
			model.PageRequest{Page: 0, Size: 10, Sort: []model.SortOrder{{Field: model.SortFilename, Desc: true}}})
		require.NoError(t, err)
		assert.Equal(t, []string{"c.txt", "a.txt"}, filenames(page.Content))
	})

	t.Run("paging", func(t *testing.T) {
		page, err := repo.List(ctx, model.FileFilter{Visibility: &public}, model.PageRequest{Page: 1, Size: 2, Sort: byName})
		require.NoError(t, err)
		assert.Equal(t, []string{"d.txt"}, filenames(page.Content))
		assert.Equal(t, 2, page.TotalPages)

		past, err := repo.List(ctx, model.FileFilter{Visibility: &public}, model.PageRequest{Page: 5, Size: 2, Sort: byName})
		require.NoError(t, err)
		assert.Empty(t, past.Content)
		assert.Equal(t, int64(3), past.TotalElements)
	})
}

func TestTagRepository(t *testing.T) {
	repo := NewTagRepository(setupTestDB(t)).(*tagRepository)
	ctx := context.Background()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return first }
	require.NoError(t, repo.Upsert(ctx, []string{"news", "work"}))

	repo.now = func() time.Time { return first.Add(time.Hour) }
	require.NoError(t, repo.Upsert(ctx, []string{"news", "new_ideas"}))

	var news TagRecord
	require.NoError(t, repo.db.Where("tag_name = ?", "news").First(&news).Error)
	assert.True(t, first.Equal(news.CreatedAt.UTC()), "creation time must not change on re-register")

	byName := model.PageRequest{Page: 0, Size: 10, Sort: []model.SortOrder{{Field: model.SortTagName}}}

	all, err := repo.Search(ctx, "", byName)
	require.NoError(t, err)
	assert.Equal(t, []string{"new_ideas", "news", "work"}, all.Content)

	matched, err := repo.Search(ctx, "NEW", byName)
	require.NoError(t, err)
	assert.Equal(t, []string{"new_ideas", "news"}, matched.Content)

	// "_" is a LIKE wildcard and must be matched literally
	literal, err := repo.Search(ctx, "_", byName)
	require.NoError(t, err)
	assert.Equal(t, []string{"new_ideas"}, literal.Content)

	none, err := repo.Search(ctx, "zzz", byName)
	require.NoError(t, err)
	assert.Empty(t, none.Content)
	assert.Equal(t, int64(0), none.TotalElements)
}

func filenames(recs []model.FileRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Filename)
	}
	return out
}
