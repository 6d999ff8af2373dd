package client

import (
	"Courier/internal/api/dto"
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// RealtimeError 服务端通过 error 帧返回的错误
type RealtimeError struct {
	dto.ErrorEvent
}

func (e *RealtimeError) Error() string {
	return fmt.Sprintf("realtime %s: code=%d message=%s", e.Event, e.Code, e.Message)
}

// ConversationView 打开中的会话，串联发送、确认、转发与已读
type ConversationView struct {
	api    *API
	socket *Socket
	self   *dto.UserBriefDTO
	rec    *Reconciler
}

// OpenConversation 拉取历史（服务端同时标记已读）并加入房间
func OpenConversation(ctx context.Context, api *API, socket *Socket, conversationID string, self *dto.UserBriefDTO) (*ConversationView, error) {
	v := &ConversationView{
		api:    api,
		socket: socket,
		self:   self,
		rec:    NewReconciler(conversationID, self),
	}

	list, err := api.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	v.rec.Load(list)

	if err = socket.Join(conversationID, self.UserID); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *ConversationView) Reconciler() *Reconciler {
	return v.rec
}

func (v *ConversationView) Messages() []*dto.MessageDTO {
	return v.rec.Messages()
}

// Send 乐观插入后调用发送接口，成功后请求房间广播。
// 失败时乐观消息标记为 failed，由调用方决定重试或 Discard。
func (v *ConversationView) Send(ctx context.Context, req *dto.SendMessageReq, replyTarget *dto.MessageDTO) (*dto.MessageDTO, error) {
	provisional := v.rec.Compose(req, replyTarget)

	msg, err := v.api.SendMessage(ctx, req)
	if err != nil {
		v.rec.MarkFailed(provisional.ClientTempID)
		return nil, err
	}
	v.rec.ConfirmSend(provisional.ClientTempID, msg)

	if err = v.socket.PublishMessage(msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// Handle 处理一条推送，error 帧以 *RealtimeError 返回
func (v *ConversationView) Handle(env *dto.Envelope) error {
	switch env.Event {
	case dto.EventNewMessage:
		var msg dto.MessageDTO
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return err
		}
		if msg.ConversationID != v.rec.ConversationID() {
			return nil
		}
		v.rec.ApplyNewMessage(&msg)
		// 会话处于打开状态，他人的新消息立即已读
		if msg.Sender != nil && msg.Sender.UserID != v.self.UserID {
			return v.socket.ReadMessages(msg.ConversationID, v.self.UserID)
		}
		return nil

	case dto.EventMessagesRead:
		var ev dto.MessagesReadEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		v.rec.ApplyReadDelta(&ev)
		return nil

	case dto.EventError:
		var ev dto.ErrorEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		return &RealtimeError{ErrorEvent: ev}

	default:
		return nil
	}
}

// Close 离开房间，不关闭底层连接
func (v *ConversationView) Close() error {
	return v.socket.Leave(v.rec.ConversationID())
}
