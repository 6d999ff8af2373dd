package response

import (
	"Courier/internal/api/dto"
	"Courier/internal/service"
	stdjson "encoding/json"
	"errors"
	"io"
	log "log/slog"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const (
	Ok                  = 200
	Created             = 201
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

// Success 成功返回封装
func Success(c *gin.Context, data interface{}) {
	c.JSON(Ok, dto.Response{
		Code:    Ok,
		Message: "success",
		Data:    data,
	})
}

// SuccessCreated 新建资源成功
func SuccessCreated(c *gin.Context, data interface{}) {
	c.JSON(Created, dto.Response{
		Code:    Created,
		Message: "created",
		Data:    data,
	})
}

// Fail 失败返回封装，HTTP 状态码与业务码一致
func Fail(c *gin.Context, businessCode int, message string) {
	c.JSON(businessCode, dto.Response{
		Code:    businessCode,
		Message: message,
		Data:    nil,
	})
}

// Error 处理错误
func Error(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		Fail(c, BadRequest, "参数错误")
		return
	}

	if isMalformedJSON(err) {
		Fail(c, BadRequest, "Json错误")
		return
	}

	code, ok := service.CodeOf(err)
	if !ok {
		log.ErrorContext(c.Request.Context(), "Error", "err", err)
		Fail(c, InternalServerError, service.UnExpectedError.Error())
		return
	}
	Fail(c, code, errorMessage(err))
}

// errorMessage 取哨兵错误的文案，不暴露包装信息
func errorMessage(err error) string {
	for sentinel := range service.ErrorMap {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// isMalformedJSON gin 默认用 encoding/json 解码，go_json 构建标签下换成 goccy
func isMalformedJSON(err error) bool {
	var unmarshalTypeError *json.UnmarshalTypeError
	var stdTypeError *stdjson.UnmarshalTypeError
	var syntaxError *stdjson.SyntaxError
	return errors.As(err, &unmarshalTypeError) ||
		errors.As(err, &stdTypeError) ||
		errors.As(err, &syntaxError) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
