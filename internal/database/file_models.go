package database

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/weiwangfds/filevault/internal/model"
)

// FileRecord 文件元数据表
// Timestamps are owned by the service, so GORM's automatic tracking is off.
type FileRecord struct {
	ID          uint      `gorm:"primarykey"`
	FileID      string    `gorm:"uniqueIndex;not null;size:36"`
	OwnerID     string    `gorm:"not null;size:36;uniqueIndex:idx_file_owner_checksum_name,priority:1"`
	Checksum    string    `gorm:"not null;size:32;uniqueIndex:idx_file_owner_checksum_name,priority:2"`
	Filename    string    `gorm:"not null;size:255;uniqueIndex:idx_file_owner_checksum_name,priority:3"`
	StorageKey  string    `gorm:"not null;size:300"`
	Size        int64     `gorm:"not null"`
	Visibility  string    `gorm:"not null;size:10;index"`
	ContentType string    `gorm:"size:255"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`

	Tags []FileTag `gorm:"foreignKey:FileID;references:FileID"`
}

func (FileRecord) TableName() string {
	return "file_records"
}

// FileTag 文件标签关联
type FileTag struct {
	ID     uint   `gorm:"primarykey"`
	FileID string `gorm:"not null;size:36;uniqueIndex:idx_file_tag,priority:1"`
	Tag    string `gorm:"not null;size:100;uniqueIndex:idx_file_tag,priority:2;index"`
}

func (FileTag) TableName() string {
	return "file_tags"
}

// TagRecord 全局标签表
type TagRecord struct {
	ID        uint      `gorm:"primarykey"`
	TagName   string    `gorm:"uniqueIndex;not null;size:100"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (TagRecord) TableName() string {
	return "tag_records"
}

func fromModel(rec *model.FileRecord) *FileRecord {
	row := &FileRecord{
		FileID:      rec.FileID.String(),
		OwnerID:     rec.OwnerID.String(),
		Checksum:    rec.Checksum,
		Filename:    rec.Filename,
		StorageKey:  rec.StorageKey,
		Size:        rec.Size,
		Visibility:  string(rec.Visibility),
		ContentType: rec.ContentType,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	for _, t := range rec.Tags {
		row.Tags = append(row.Tags, FileTag{FileID: row.FileID, Tag: t})
	}
	return row
}

func (r *FileRecord) toModel() model.FileRecord {
	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		tags = append(tags, t.Tag)
	}
	sort.Strings(tags)

	// Both ids were written by fromModel, a parse failure means a corrupted row.
	fileID, _ := uuid.Parse(r.FileID)
	ownerID, _ := uuid.Parse(r.OwnerID)

	return model.FileRecord{
		FileID:      fileID,
		OwnerID:     ownerID,
		Filename:    r.Filename,
		Checksum:    r.Checksum,
		StorageKey:  r.StorageKey,
		Tags:        tags,
		Size:        r.Size,
		Visibility:  model.Visibility(r.Visibility),
		ContentType: r.ContentType,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}
