package handler

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/weiwangfds/filevault/internal/errors"
	"github.com/weiwangfds/filevault/internal/i18n"
	"github.com/weiwangfds/filevault/internal/model"
)

// bindError 将绑定/校验错误转换为 AppError
func bindError(c *gin.Context, err error) *errors.AppError {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		fields := i18n.GetInstance().TranslateValidation(verrs, c.GetHeader("Accept-Language"))
		return errors.Validation(errors.CodeValidationFailed, "validation failed").WithDetails(fields)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &syntaxErr) || stderrors.As(err, &typeErr) ||
		stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(errors.KindValidation, errors.CodeInvalidJSON, "request body is not valid JSON", err)
	}

	var maxBytes *http.MaxBytesError
	if stderrors.As(err, &maxBytes) {
		return errors.Wrap(errors.KindValidation, errors.CodeMultipartParsing, "request body too large", err)
	}
	return errors.Wrap(errors.KindValidation, errors.CodeParseValidation, err.Error(), err)
}

// uuidParam 解析路径中的UUID参数
func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errors.Validation(errors.CodeValidationFailed, name+" must be a valid UUID").
			WithDetails(map[string]string{name: "must be a valid UUID"})
	}
	return id, nil
}

// pageRequest 解析分页参数：page 从0开始，size 默认20，sort=字段,方向 可重复
func pageRequest(c *gin.Context) (model.PageRequest, error) {
	req := model.PageRequest{Page: 0, Size: model.DefaultPageSize}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return req, errors.Validation(errors.CodeParseValidation, "page must be an integer")
		}
		req.Page = page
	}
	if raw := c.Query("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return req, errors.Validation(errors.CodeParseValidation, "size must be an integer")
		}
		req.Size = size
	}

	for _, raw := range c.QueryArray("sort") {
		order, err := parseSort(raw)
		if err != nil {
			return req, err
		}
		if order.Field != "" {
			req.Sort = append(req.Sort, order)
		}
	}
	return req, nil
}

func parseSort(raw string) (model.SortOrder, error) {
	field, dir, _ := strings.Cut(raw, ",")
	order := model.SortOrder{Field: strings.TrimSpace(field)}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
	case "desc":
		order.Desc = true
	default:
		return order, errors.Validation(errors.CodeParseValidation, "sort direction must be asc or desc")
	}
	return order, nil
}
