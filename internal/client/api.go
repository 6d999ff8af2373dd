package client

import (
	"Courier/internal/api/dto"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// APIError 服务端返回的业务错误
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("courier api: status=%d code=%d message=%s", e.Status, e.Code, e.Message)
}

type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// API 会话与消息 REST 接口
type API struct {
	http *resty.Client
}

func NewAPI(baseURL, token string) *API {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	return &API{http: c}
}

func call[T any](ctx context.Context, a *API, method, url string, body any) (T, int, error) {
	var env envelope[T]
	req := a.http.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	if resp.IsError() {
		var zero T
		return zero, resp.StatusCode(), &APIError{Status: resp.StatusCode(), Code: env.Code, Message: env.Message}
	}
	return env.Data, resp.StatusCode(), nil
}

// StartConversation 返回的 bool 表示是否新建
func (a *API) StartConversation(ctx context.Context, participantIDs ...uint64) (*dto.ConversationDTO, bool, error) {
	conv, status, err := call[*dto.ConversationDTO](ctx, a, http.MethodPost, "/api/chat/conversations",
		&dto.StartConversationReq{ParticipantIDs: participantIDs})
	return conv, status == http.StatusCreated, err
}

func (a *API) ListConversations(ctx context.Context) ([]*dto.ConversationDTO, error) {
	list, _, err := call[[]*dto.ConversationDTO](ctx, a, http.MethodGet, "/api/chat/conversations", nil)
	return list, err
}

func (a *API) GetConversation(ctx context.Context, conversationID string) (*dto.ConversationDTO, error) {
	conv, _, err := call[*dto.ConversationDTO](ctx, a, http.MethodGet, "/api/chat/conversations/"+conversationID, nil)
	return conv, err
}

// ListMessages 服务端会同时把他人消息标记为已读
func (a *API) ListMessages(ctx context.Context, conversationID string) ([]*dto.MessageDTO, error) {
	list, _, err := call[[]*dto.MessageDTO](ctx, a, http.MethodGet, "/api/chat/conversations/"+conversationID+"/messages", nil)
	return list, err
}

func (a *API) SendMessage(ctx context.Context, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	msg, _, err := call[*dto.MessageDTO](ctx, a, http.MethodPost, "/api/chat/messages", req)
	return msg, err
}
