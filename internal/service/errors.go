package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrInvalidID            = errors.New("ID 格式错误")
	ErrEmptyParticipants    = errors.New("参与者不能为空")
	ErrSelfChat             = errors.New("不能与自己创建会话")
	ErrEmptyMessage         = errors.New("消息内容不能为空")
	ErrInvalidMsgType       = errors.New("不支持的消息类型")
	ErrInvalidReply         = errors.New("回复的消息不存在或不属于该会话")
	ErrConversationNotFound = errors.New("会话不存在")
	ErrMessageNotFound      = errors.New("消息不存在")
	UnauthorizedError       = errors.New("权限不足")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrInvalidID:            BadRequest,
	ErrEmptyParticipants:    BadRequest,
	ErrSelfChat:             BadRequest,
	ErrEmptyMessage:         BadRequest,
	ErrInvalidMsgType:       BadRequest,
	ErrInvalidReply:         BadRequest,
	ErrConversationNotFound: NotFound,
	ErrMessageNotFound:      NotFound,
	UnauthorizedError:       Unauthorized,
	UnExpectedError:         InternalServerError,
}

// CodeOf 沿包装链查找业务码，未登记的错误返回 false
func CodeOf(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	if code, ok := ErrorMap[err]; ok {
		return code, true
	}
	for sentinel, code := range ErrorMap {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return InternalServerError, false
}
