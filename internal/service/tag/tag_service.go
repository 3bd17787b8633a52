// Package tag 提供标签管理相关的业务逻辑服务
// 包含标签的登记与搜索功能
package tag

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/filevault/internal/errors"
	"github.com/weiwangfds/filevault/internal/logger"
	"github.com/weiwangfds/filevault/internal/model"
	"github.com/weiwangfds/filevault/internal/repository"
	"github.com/weiwangfds/filevault/internal/tags"
)

// TagService 标签服务接口
// 定义了全局标签目录的业务操作方法
type TagService interface {
	// Register 登记标签
	// 参数:
	//   ctx - 上下文
	//   names - 标签名称，大小写和重复项会被规整
	// 说明:
	//   登记失败只记录日志，不影响调用方（上传已经成功）
	Register(ctx context.Context, names []string)

	// SearchTags 搜索标签
	// 参数:
	//   ctx - 上下文
	//   query - 搜索关键词，忽略大小写的子串匹配，为空时返回全部
	//   page - 分页参数
	// 返回:
	//   *model.Page[string] - 标签名分页结果
	//   error - 错误信息
	SearchTags(ctx context.Context, query string, page model.PageRequest) (*model.Page[string], error)
}

// tagService 标签服务实现
type tagService struct {
	tags repository.TagRepository
}

// NewTagService 创建标签服务实例
// 参数:
//   tagRepo - 标签存储
// 返回:
//   TagService - 标签服务接口实例
func NewTagService(tagRepo repository.TagRepository) TagService {
	return &tagService{tags: tagRepo}
}

// Register 登记标签
func (s *tagService) Register(ctx context.Context, names []string) {
	normalized := tags.Normalize(names)
	if len(normalized) == 0 {
		return
	}

	if err := s.tags.Upsert(ctx, normalized); err != nil {
		logger.WithFields(logrus.Fields{
			"tags":  normalized,
			"error": err,
		}).Warn("标签登记失败")
		return
	}
	logger.WithField("tags", normalized).Debug("标签登记完成")
}

// SearchTags 搜索标签
func (s *tagService) SearchTags(ctx context.Context, query string, page model.PageRequest) (*model.Page[string], error) {
	if err := page.Validate(model.TagSortFields); err != nil {
		return nil, errors.Validation(errors.CodeValidationFailed, err.Error())
	}

	result, err := s.tags.Search(ctx, strings.TrimSpace(query), page)
	if err != nil {
		logger.WithFields(logrus.Fields{"query": query, "error": err}).Error("标签搜索失败")
		return nil, errors.MetadataStore(errors.CodeMetadataStore, "failed to search tags", err)
	}
	return result, nil
}
