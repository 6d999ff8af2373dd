package handler

import (
	"Courier/internal/api/dto"
	"Courier/internal/api/middleware"
	"Courier/internal/pkg/response"
	"Courier/internal/service"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	conversationService service.ConversationService
	messageService      service.MessageService
}

func NewChatHandler(conversationService service.ConversationService, messageService service.MessageService) *ChatHandler {
	return &ChatHandler{
		conversationService: conversationService,
		messageService:      messageService,
	}
}

// StartConversation 发起会话，已有单聊返回 200，新建返回 201
func (s *ChatHandler) StartConversation(c *gin.Context) {
	var req dto.StartConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	userID := middleware.CurrentUserID(c)
	res, created, err := s.conversationService.StartConversation(c.Request.Context(), userID, req.ParticipantIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.SuccessCreated(c, res)
		return
	}
	response.Success(c, res)
}

// ListConversations 获取会话列表
func (s *ChatHandler) ListConversations(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	res, err := s.conversationService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *ChatHandler) GetConversation(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	res, err := s.conversationService.GetConversation(c.Request.Context(), userID, c.Param("conversation_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ListMessages 获取会话消息，同时把他人消息标记为已读
func (s *ChatHandler) ListMessages(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	res, err := s.messageService.ListMessages(c.Request.Context(), userID, c.Param("conversation_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// SendMessage 发送消息
func (s *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	senderID := middleware.CurrentUserID(c)
	res, err := s.messageService.SendMessage(c.Request.Context(), senderID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessCreated(c, res)
}
