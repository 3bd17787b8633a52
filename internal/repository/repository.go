// Package repository declares the metadata persistence ports implemented by
// the mongodb and database packages.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/weiwangfds/filevault/internal/model"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
)

// FileRepository persists FileRecords.
type FileRepository interface {
	Create(ctx context.Context, rec *model.FileRecord) error
	// Update writes the mutable fields (filename, updatedAt) of rec.
	Update(ctx context.Context, rec *model.FileRecord) error
	Delete(ctx context.Context, fileID uuid.UUID) error
	FindByFileIDAndOwner(ctx context.Context, fileID, ownerID uuid.UUID) (*model.FileRecord, error)
	// FindByFilenameAndOwner returns (nil, nil) when nothing matches.
	FindByFilenameAndOwner(ctx context.Context, filename string, ownerID uuid.UUID) (*model.FileRecord, error)
	List(ctx context.Context, filter model.FileFilter, page model.PageRequest) (*model.Page[model.FileRecord], error)
}

// TagRepository persists the global tag registry.
type TagRepository interface {
	// Upsert registers every name not yet present. Already known names are
	// left untouched, including their creation time.
	Upsert(ctx context.Context, names []string) error
	// Search matches names containing query, ignoring case. An empty query
	// matches everything.
	Search(ctx context.Context, query string, page model.PageRequest) (*model.Page[string], error)
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
