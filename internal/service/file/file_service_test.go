package service

import (
	"context"
	stderrors "errors"
	"io"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/filevault/config"
	"github.com/weiwangfds/filevault/internal/checksum"
	"github.com/weiwangfds/filevault/internal/database"
	"github.com/weiwangfds/filevault/internal/errors"
	"github.com/weiwangfds/filevault/internal/model"
	"github.com/weiwangfds/filevault/internal/repository"
	"github.com/weiwangfds/filevault/internal/storage"
)

// setupService 使用内存SQLite和内存对象存储创建服务
func setupService(t *testing.T) (*fileService, *storage.MemoryStorage, repository.FileRepository) {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	files := database.NewFileRepository(db)
	store := storage.NewMemoryStorage()
	svc := NewFileService(files, store, Config{
		TempDir: t.TempDir(),
		Domain:  "http://localhost:8080/",
	}).(*fileService)
	return svc, store, files
}

func upload(owner uuid.UUID, name, content string, vis model.Visibility, tags ...string) UploadRequest {
	return UploadRequest{
		OwnerID:    owner,
		Filename:   name,
		Visibility: vis,
		Tags:       tags,
		Content:    strings.NewReader(content),
	}
}

func appErr(t *testing.T, err error) *errors.AppError {
	t.Helper()
	appErr, ok := errors.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestUploadFile(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	owner := uuid.New()

	rec, err := svc.UploadFile(ctx, upload(owner, "report.txt", "hello world", model.VisibilityPublic, "Work", "work", "news"))
	require.NoError(t, err)

	assert.Equal(t, "report.txt", rec.Filename)
	assert.Equal(t, rec.FileID.String()+".txt", rec.StorageKey)
	assert.Equal(t, int64(11), rec.Size)
	assert.Equal(t, []string{"news", "work"}, rec.Tags)
	assert.Equal(t, model.VisibilityPublic, rec.Visibility)
	assert.True(t, strings.HasPrefix(rec.ContentType, "text/plain"))
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	expected, err := checksum.Compute("report.txt", strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, expected, rec.Checksum)

	ok, err := store.Exists(ctx, rec.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := os.ReadDir(svc.config.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged upload should be removed")
}

func TestUploadFile_ExtensionFromContent(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	png := "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"
	rec, err := svc.UploadFile(ctx, upload(uuid.New(), "picture", png, model.VisibilityPrivate))
	require.NoError(t, err)
	assert.Equal(t, "picture.png", rec.Filename)
	assert.Equal(t, rec.FileID.String()+".png", rec.StorageKey)
	assert.Equal(t, "image/png", rec.ContentType)
}

func TestUploadFile_KeepsGivenContentType(t *testing.T) {
	svc, _, _ := setupService(t)
	req := upload(uuid.New(), "data.csv", "a,b\n1,2\n", model.VisibilityPrivate)
	req.ContentType = "text/csv"

	rec, err := svc.UploadFile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", rec.ContentType)
}

func TestUploadFile_Duplicates(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.UploadFile(ctx, upload(owner, "a.txt", "one", model.VisibilityPrivate))
	require.NoError(t, err)

	t.Run("same filename rejected", func(t *testing.T) {
		_, err := svc.UploadFile(ctx, upload(owner, "a.txt", "different", model.VisibilityPrivate))
		e := appErr(t, err)
		assert.Equal(t, errors.KindDuplicateFile, e.Kind)
		assert.Equal(t, errors.CodeSameFile, e.Code)
		assert.Equal(t, "The filename already exists", e.Message)
		assert.Equal(t, 400, e.Status())
	})

	t.Run("same name without extension rejected", func(t *testing.T) {
		first, err := svc.UploadFile(ctx, upload(owner, "README", "hello", model.VisibilityPrivate))
		require.NoError(t, err)
		assert.Equal(t, "README.txt", first.Filename)

		_, err = svc.UploadFile(ctx, upload(owner, "README", "different body", model.VisibilityPrivate))
		e := appErr(t, err)
		assert.Equal(t, errors.KindDuplicateFile, e.Kind)
		assert.Equal(t, "The filename already exists", e.Message)
	})

	t.Run("other owner may reuse the name", func(t *testing.T) {
		_, err := svc.UploadFile(ctx, upload(uuid.New(), "a.txt", "one", model.VisibilityPrivate))
		assert.NoError(t, err)
	})

	t.Run("same content under another name is accepted", func(t *testing.T) {
		_, err := svc.UploadFile(ctx, upload(owner, "b.txt", "one", model.VisibilityPrivate))
		assert.NoError(t, err)
	})
}

func TestUploadFile_Validation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	owner := uuid.New()

	tests := []struct {
		name string
		req  UploadRequest
		code string
	}{
		{"empty filename", upload(owner, "", "x", model.VisibilityPublic), errors.CodeFilenameAbsent},
		{"blank filename", upload(owner, "   ", "x", model.VisibilityPublic), errors.CodeFilenameAbsent},
		{"bad visibility", upload(owner, "a.txt", "x", "SHARED"), errors.CodeValidationFailed},
		{"too many tags", upload(owner, "a.txt", "x", model.VisibilityPublic, "a", "b", "c", "d", "e", "f"), errors.CodeValidationFailed},
		{"no content", UploadRequest{OwnerID: owner, Filename: "a.txt", Visibility: model.VisibilityPublic}, errors.CodeFileAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadFile(ctx, tt.req)
			e := appErr(t, err)
			assert.Equal(t, errors.KindValidation, e.Kind)
			assert.Equal(t, tt.code, e.Code)
		})
	}

	t.Run("case variants count toward the limit", func(t *testing.T) {
		_, err := svc.UploadFile(ctx, upload(owner, "a.txt", "x", model.VisibilityPublic, "A", "a", "b", "c", "d", "e"))
		e := appErr(t, err)
		assert.Equal(t, errors.CodeValidationFailed, e.Code)
	})

	t.Run("exact repeats collapse", func(t *testing.T) {
		rec, err := svc.UploadFile(ctx, upload(owner, "repeat.txt", "x", model.VisibilityPublic, "a", "a", "b", "c", "d", "e"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, rec.Tags)
	})
}

func TestUploadFile_FiveTagsAccepted(t *testing.T) {
	svc, _, _ := setupService(t)

	rec, err := svc.UploadFile(context.Background(),
		upload(uuid.New(), "five.txt", "x", model.VisibilityPublic, "e", "d", "c", "b", "a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, rec.Tags)
}

type failingStorage struct {
	storage.ObjectStorage
	putErr    error
	getErr    error
	deleteErr error
	deleted   []string
}

func (f *failingStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.ObjectStorage.Put(ctx, key, r, size, contentType)
}

func (f *failingStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.ObjectStorage.Get(ctx, key)
}

func (f *failingStorage) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.ObjectStorage.Delete(ctx, key)
}

type failingFiles struct {
	repository.FileRepository
	createErr error
	deleteErr error
}

func (f *failingFiles) Create(ctx context.Context, rec *model.FileRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.FileRepository.Create(ctx, rec)
}

func (f *failingFiles) Delete(ctx context.Context, fileID uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.FileRepository.Delete(ctx, fileID)
}

func TestUploadFile_StorageFailure(t *testing.T) {
	svc, store, _ := setupService(t)
	svc.storage = &failingStorage{ObjectStorage: store, putErr: stderrors.New("connection reset")}

	_, err := svc.UploadFile(context.Background(), upload(uuid.New(), "a.txt", "x", model.VisibilityPublic))
	e := appErr(t, err)
	assert.Equal(t, errors.KindStorage, e.Kind)
	assert.Equal(t, errors.CodeFileUpload, e.Code)
	assert.Equal(t, 500, e.Status())

	svc.storage = &failingStorage{ObjectStorage: store, putErr: storage.ErrAccessDenied}
	_, err = svc.UploadFile(context.Background(), upload(uuid.New(), "a.txt", "x", model.VisibilityPublic))
	assert.Equal(t, errors.CodeStorageSecurity, appErr(t, err).Code)
}

func TestUploadFile_MetadataFailureRemovesObject(t *testing.T) {
	svc, store, files := setupService(t)
	fs := &failingStorage{ObjectStorage: store}
	svc.storage = fs
	svc.files = &failingFiles{FileRepository: files, createErr: stderrors.New("db down")}

	_, err := svc.UploadFile(context.Background(), upload(uuid.New(), "a.txt", "x", model.VisibilityPublic))
	e := appErr(t, err)
	assert.Equal(t, errors.KindMetadataStore, e.Kind)

	require.Len(t, fs.deleted, 1)
	objs, err := store.List(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestUploadFile_RaceLostIsDuplicate(t *testing.T) {
	svc, store, files := setupService(t)
	svc.files = &failingFiles{FileRepository: files, createErr: repository.ErrDuplicateKey}

	_, err := svc.UploadFile(context.Background(), upload(uuid.New(), "a.txt", "x", model.VisibilityPublic))
	assert.Equal(t, errors.KindDuplicateFile, appErr(t, err).Kind)

	objs, _ := store.List(context.Background(), "", 10)
	assert.Empty(t, objs)
}

func TestGetFile(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	owner := uuid.New()

	rec, err := svc.UploadFile(ctx, upload(owner, "a.txt", "content", model.VisibilityPublic))
	require.NoError(t, err)

	got, rc, err := svc.GetFile(ctx, owner, rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, rec.FileID, got.FileID)
	assert.Equal(t, "content", readAll(t, rc))

	t.Run("other user sees not found", func(t *testing.T) {
		_, _, err := svc.GetFile(ctx, uuid.New(), rec.FileID)
		e := appErr(t, err)
		assert.Equal(t, errors.KindNotFound, e.Kind)
		assert.Equal(t, errors.MsgFileNotFound, e.Message)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, _, err := svc.GetFile(ctx, owner, uuid.New())
		assert.Equal(t, errors.KindNotFound, appErr(t, err).Kind)
	})

	t.Run("object missing from storage", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, rec.StorageKey))
		_, _, err := svc.GetFile(ctx, owner, rec.FileID)
		assert.Equal(t, errors.KindStorage, appErr(t, err).Kind)
	})
}

func TestRenameFile(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	owner := uuid.New()

	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return created }

	rec, err := svc.UploadFile(ctx, upload(owner, "a.txt", "content", model.VisibilityPrivate))
	require.NoError(t, err)

	renamed, err := svc.RenameFile(ctx, owner, rec.FileID, "notes")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", renamed.Filename)
	assert.Equal(t, rec.StorageKey, renamed.StorageKey)
	assert.True(t, renamed.UpdatedAt.After(renamed.CreatedAt), "updatedAt must advance even with a frozen clock")

	_, rc, err := svc.GetFile(ctx, owner, rec.FileID)
	require.NoError(t, err)
	assert.Equal(t, "content", readAll(t, rc))

	svc.now = func() time.Time { return created.Add(time.Hour) }
	renamed, err = svc.RenameFile(ctx, owner, rec.FileID, "final.md")
	require.NoError(t, err)
	assert.Equal(t, "final.txt", renamed.Filename)
	assert.Equal(t, created.Add(time.Hour), renamed.UpdatedAt)

	_, err = svc.RenameFile(ctx, uuid.New(), rec.FileID, "x")
	assert.Equal(t, errors.KindNotFound, appErr(t, err).Kind)

	_, err = svc.RenameFile(ctx, owner, rec.FileID, "")
	assert.Equal(t, errors.KindValidation, appErr(t, err).Kind)

	_, err = svc.RenameFile(ctx, owner, rec.FileID, strings.Repeat("n", MaxFilenameLength+1))
	assert.Equal(t, errors.KindValidation, appErr(t, err).Kind)
}

func TestDeleteFile(t *testing.T) {
	svc, store, files := setupService(t)
	ctx := context.Background()
	owner := uuid.New()

	rec, err := svc.UploadFile(ctx, upload(owner, "a.txt", "content", model.VisibilityPrivate))
	require.NoError(t, err)

	assert.Equal(t, errors.KindNotFound, appErr(t, svc.DeleteFile(ctx, uuid.New(), rec.FileID)).Kind)

	require.NoError(t, svc.DeleteFile(ctx, owner, rec.FileID))
	ok, err := store.Exists(ctx, rec.StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = files.FindByFileIDAndOwner(ctx, rec.FileID, owner)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.Equal(t, errors.KindNotFound, appErr(t, svc.DeleteFile(ctx, owner, rec.FileID)).Kind)
}

func TestDeleteFile_Failures(t *testing.T) {
	svc, store, files := setupService(t)
	ctx := context.Background()
	owner := uuid.New()

	rec, err := svc.UploadFile(ctx, upload(owner, "a.txt", "content", model.VisibilityPrivate))
	require.NoError(t, err)

	svc.storage = &failingStorage{ObjectStorage: store, deleteErr: stderrors.New("timeout")}
	e := appErr(t, svc.DeleteFile(ctx, owner, rec.FileID))
	assert.Equal(t, errors.CodeDeleteFromStorage, e.Code)

	// metadata untouched when storage refused
	_, err = files.FindByFileIDAndOwner(ctx, rec.FileID, owner)
	require.NoError(t, err)

	svc.storage = store
	svc.files = &failingFiles{FileRepository: files, deleteErr: stderrors.New("db down")}
	e = appErr(t, svc.DeleteFile(ctx, owner, rec.FileID))
	assert.Equal(t, errors.KindMetadataStore, e.Kind)
	assert.Equal(t, errors.CodeDeleteFromDB, e.Code)
}

func TestListFiles(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	for _, req := range []UploadRequest{
		upload(alice, "a.txt", "1", model.VisibilityPublic, "news"),
		upload(alice, "b.txt", "2", model.VisibilityPrivate, "news"),
		upload(bob, "c.txt", "3", model.VisibilityPublic, "work"),
		upload(bob, "d.txt", "4", model.VisibilityPublic),
	} {
		_, err := svc.UploadFile(ctx, req)
		require.NoError(t, err)
	}

	byName := model.PageRequest{Page: 0, Size: 20, Sort: []model.SortOrder{{Field: model.SortFilename}}}

	page, err := svc.ListPublicFiles(ctx, nil, byName)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalElements)
	assert.Equal(t, "a.txt", page.Content[0].Filename)

	page, err = svc.ListPublicFiles(ctx, []string{"NEWS", "work"}, byName)
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "c.txt", page.Content[1].Filename)

	page, err = svc.ListUserFiles(ctx, alice, nil, byName)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalElements)

	page, err = svc.ListUserFiles(ctx, uuid.New(), nil, byName)
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.NotNil(t, page.Content)

	_, err = svc.ListPublicFiles(ctx, nil, model.PageRequest{Size: 20, Sort: []model.SortOrder{{Field: "checksum"}}})
	assert.Equal(t, errors.KindValidation, appErr(t, err).Kind)

	_, err = svc.ListPublicFiles(ctx, nil, model.PageRequest{Size: 0})
	assert.Equal(t, errors.KindValidation, appErr(t, err).Kind)

	page, err = svc.ListPublicFiles(ctx, nil, model.PageRequest{Page: 1, Size: 20})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Equal(t, int64(3), page.TotalElements)

	// a page whose offset overflows must not wrap back to the first page
	_, err = svc.ListPublicFiles(ctx, nil, model.PageRequest{Page: math.MaxInt / 10, Size: 20})
	assert.Equal(t, errors.KindValidation, appErr(t, err).Kind)
}

func TestDownloadLink(t *testing.T) {
	svc, _, _ := setupService(t)
	rec := &model.FileRecord{FileID: uuid.New(), OwnerID: uuid.New()}
	assert.Equal(t,
		"http://localhost:8080/api/v1/files/"+rec.FileID.String()+"/users/"+rec.OwnerID.String(),
		svc.DownloadLink(rec))
}
