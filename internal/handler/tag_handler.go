// Package handler 提供文件与标签相关的HTTP处理器
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/filevault/internal/logger"
	"github.com/weiwangfds/filevault/internal/response"
	"github.com/weiwangfds/filevault/internal/service/tag"
)

// TagHandler 标签处理器
// 处理所有标签相关的HTTP请求
type TagHandler struct {
	tagService tag.TagService
}

// NewTagHandler 创建标签处理器实例
// 参数:
//   tagService - 标签服务接口
// 返回:
//   *TagHandler - 标签处理器实例
func NewTagHandler(tagService tag.TagService) *TagHandler {
	return &TagHandler{
		tagService: tagService,
	}
}

// SearchTags 搜索标签
// @Summary 标签列表
// @Description 按关键词（忽略大小写的子串）分页查询已登记的标签
// @Tags 标签管理
// @Produce json
// @Param search query string false "搜索关键词"
// @Param page query int false "页码，从0开始"
// @Param size query int false "每页数量"
// @Param sort query string false "排序，如 tagName,asc"
// @Success 200 {object} model.Page[string]
// @Failure 400 {object} response.ErrorBody
// @Router /api/v1/tags [get]
func (h *TagHandler) SearchTags(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	query := c.Query("search")
	logger.Debugf("searching for tags %q", query)

	result, err := h.tagService.SearchTags(c.Request.Context(), query, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
