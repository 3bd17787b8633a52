// Package model holds the storage independent domain types.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Visibility 文件可见性
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// ParseVisibility accepts either case; ok is false for anything else.
func ParseVisibility(s string) (Visibility, bool) {
	switch v := Visibility(strings.ToUpper(strings.TrimSpace(s))); v {
	case VisibilityPublic, VisibilityPrivate:
		return v, true
	}
	return "", false
}

// FileRecord is the metadata kept for one uploaded file.
type FileRecord struct {
	FileID   uuid.UUID
	OwnerID  uuid.UUID
	Filename string
	Checksum string
	// StorageKey is the object key assigned at upload; rename never changes it.
	StorageKey  string
	Tags        []string
	Size        int64
	Visibility  Visibility
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TagRecord is a globally registered tag.
type TagRecord struct {
	TagName   string
	CreatedAt time.Time
}

// FileFilter restricts a file listing. Nil fields do not filter.
type FileFilter struct {
	OwnerID    *uuid.UUID
	Visibility *Visibility
	// AnyTags matches files carrying at least one of the tags.
	AnyTags []string
}
