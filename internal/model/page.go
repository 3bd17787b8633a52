package model

import (
	"fmt"
	"math"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

// Sortable field names as they appear in the public API.
const (
	SortFilename    = "filename"
	SortSize        = "size"
	SortCreatedAt   = "createdAt"
	SortUpdatedAt   = "updatedAt"
	SortContentType = "contentType"
	SortVisibility  = "visibility"
	SortTagName     = "tagName"
)

// FileSortFields and TagSortFields are the sort whitelists per listing.
var (
	FileSortFields = []string{SortFilename, SortSize, SortCreatedAt, SortUpdatedAt, SortContentType, SortVisibility}
	TagSortFields  = []string{SortTagName, SortCreatedAt}
)

// SortOrder 排序规则
type SortOrder struct {
	Field string
	Desc  bool
}

// PageRequest 分页请求, Page is zero based.
type PageRequest struct {
	Page int
	Size int
	Sort []SortOrder
}

// Validate checks bounds and that every sort field is in sortable.
func (p PageRequest) Validate(sortable []string) error {
	if p.Page < 0 {
		return fmt.Errorf("page must not be negative")
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return fmt.Errorf("size must be between 1 and %d", MaxPageSize)
	}
	if p.Page > math.MaxInt/p.Size {
		return fmt.Errorf("page %d is out of range", p.Page)
	}
	for _, s := range p.Sort {
		if !contains(sortable, s.Field) {
			return fmt.Errorf("cannot sort by %q", s.Field)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Offset is the number of items skipped before this page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page 分页结果
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// NewPage assembles a page; content is never nil so it renders as [].
func NewPage[T any](content []T, req PageRequest, total int64) *Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return &Page[T]{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}

// MapPage converts a page's content while keeping its counters.
func MapPage[T, U any](p *Page[T], fn func(T) U) *Page[U] {
	out := make([]U, 0, len(p.Content))
	for _, item := range p.Content {
		out = append(out, fn(item))
	}
	return &Page[U]{
		Content:       out,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
	}
}
