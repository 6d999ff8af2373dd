package handler

import (
	"Courier/internal/api/config"
	"Courier/internal/api/dto"
	"Courier/internal/api/middleware"
	"Courier/internal/model"
	"Courier/internal/pkg/memstore"
	"Courier/internal/pkg/security"
	"Courier/internal/service"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type chatTestServer struct {
	t      *testing.T
	engine *gin.Engine
	tokens map[uint64]string
}

func newChatTestServer(t *testing.T) *chatTestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	security.Init(config.JWTConfig{Secret: "handler-test", Issuer: "Courier", TTL: 1})

	convRepo := memstore.NewConversationRepo(false)
	msgRepo := memstore.NewMessageRepo()
	profiles := service.NewProfileService(memstore.NewProfileRepo(
		&model.UserDetail{UserID: 1, Nickname: "alice"},
		&model.UserDetail{UserID: 2, Nickname: "bob"},
	), memstore.NewProfileCache(), nil)
	reads := service.NewReadService(msgRepo, profiles)
	convs := service.NewConversationService(convRepo, msgRepo, reads, profiles, "New Group")
	msgs := service.NewMessageService(convRepo, msgRepo, convs, reads, profiles)
	h := NewChatHandler(convs, msgs)

	r := gin.New()
	g := r.Group("/api/chat", middleware.AuthMiddleware(nil))
	g.POST("/conversations", h.StartConversation)
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/:conversation_id", h.GetConversation)
	g.GET("/conversations/:conversation_id/messages", h.ListMessages)
	g.POST("/messages", h.SendMessage)

	s := &chatTestServer{t: t, engine: r, tokens: map[uint64]string{}}
	for _, id := range []uint64{1, 2, 3} {
		token, err := security.GenerateToken(id, nil)
		require.NoError(t, err)
		s.tokens[id] = token
	}
	return s
}

func (s *chatTestServer) do(user uint64, method, path string, body any) (int, *envelope) {
	s.t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(s.t, err)
	}
	return s.doRaw(user, method, path, raw)
}

func (s *chatTestServer) doRaw(user uint64, method, path string, raw []byte) (int, *envelope) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		req.Header.Set("Authorization", "Bearer "+s.tokens[user])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, &env
}

func TestChatHandlerRequiresToken(t *testing.T) {
	s := newChatTestServer(t)

	code, env := s.do(0, http.MethodGet, "/api/chat/conversations", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 401, env.Code)
}

func TestChatHandlerStartConversation(t *testing.T) {
	s := newChatTestServer(t)

	code, env := s.do(1, http.MethodPost, "/api/chat/conversations", &dto.StartConversationReq{ParticipantIDs: []uint64{2}})
	require.Equal(t, http.StatusCreated, code)
	var created dto.ConversationDTO
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.False(t, created.IsGroup)
	assert.Len(t, created.Participants, 2)

	code, env = s.do(2, http.MethodPost, "/api/chat/conversations", &dto.StartConversationReq{ParticipantIDs: []uint64{1}})
	require.Equal(t, http.StatusOK, code)
	var existing dto.ConversationDTO
	require.NoError(t, json.Unmarshal(env.Data, &existing))
	assert.Equal(t, created.ID, existing.ID)

	code, _ = s.do(1, http.MethodPost, "/api/chat/conversations", &dto.StartConversationReq{ParticipantIDs: []uint64{1}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(1, http.MethodPost, "/api/chat/conversations", &dto.StartConversationReq{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(1, http.MethodPost, "/api/chat/conversations", "not an object")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestChatHandlerMessageFlow(t *testing.T) {
	s := newChatTestServer(t)

	_, env := s.do(1, http.MethodPost, "/api/chat/conversations", &dto.StartConversationReq{ParticipantIDs: []uint64{2}})
	var conv dto.ConversationDTO
	require.NoError(t, json.Unmarshal(env.Data, &conv))

	code, env := s.do(1, http.MethodPost, "/api/chat/messages", &dto.SendMessageReq{
		ConversationID: conv.ID,
		Text:           "hi bob",
		ClientTempID:   "tmp-1",
	})
	require.Equal(t, http.StatusCreated, code)
	var sent dto.MessageDTO
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	assert.Equal(t, "tmp-1", sent.ClientTempID)
	assert.Equal(t, "text", sent.Type)

	// bob 的列表显示一条未读
	code, env = s.do(2, http.MethodGet, "/api/chat/conversations", nil)
	require.Equal(t, http.StatusOK, code)
	var list []*dto.ConversationDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].UnreadCount)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hi bob", list[0].LastMessage.Text)

	// 拉取消息即已读
	code, env = s.do(2, http.MethodGet, "/api/chat/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, code)
	var messages []*dto.MessageDTO
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 1)
	readers := make([]uint64, 0)
	for _, b := range messages[0].IsReadBy {
		readers = append(readers, b.UserID)
	}
	assert.ElementsMatch(t, []uint64{1, 2}, readers)

	_, env = s.do(2, http.MethodGet, "/api/chat/conversations", nil)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(0), list[0].UnreadCount)

	code, _ = s.do(1, http.MethodPost, "/api/chat/messages", &dto.SendMessageReq{ConversationID: conv.ID})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(3, http.MethodPost, "/api/chat/messages", &dto.SendMessageReq{ConversationID: conv.ID, Text: "intruder"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestChatHandlerConversationLookups(t *testing.T) {
	s := newChatTestServer(t)

	_, env := s.do(1, http.MethodPost, "/api/chat/conversations", &dto.StartConversationReq{ParticipantIDs: []uint64{2}})
	var conv dto.ConversationDTO
	require.NoError(t, json.Unmarshal(env.Data, &conv))

	code, _ := s.do(2, http.MethodGet, "/api/chat/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(3, http.MethodGet, "/api/chat/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(1, http.MethodGet, "/api/chat/conversations/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(1, http.MethodGet, "/api/chat/conversations/000000000000000000000000", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(1, http.MethodGet, "/api/chat/conversations/not-an-id/messages", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(1, http.MethodGet, "/api/chat/conversations/"+strconv.Itoa(12345)+"/messages", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestChatHandlerBindErrors(t *testing.T) {
	s := newChatTestServer(t)

	_, env := s.do(1, http.MethodPost, "/api/chat/conversations", &dto.StartConversationReq{ParticipantIDs: []uint64{2}})
	var conv dto.ConversationDTO
	require.NoError(t, json.Unmarshal(env.Data, &conv))

	code, env := s.do(1, http.MethodPost, "/api/chat/messages", &dto.SendMessageReq{
		ConversationID: conv.ID,
		Text:           "hi",
		ClientTempID:   strings.Repeat("x", 65),
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "参数错误", env.Message)

	code, env = s.doRaw(1, http.MethodPost, "/api/chat/messages", []byte(`{"conversationId": 42}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Json错误", env.Message)

	code, env = s.doRaw(1, http.MethodPost, "/api/chat/conversations", []byte(`{"participantIds": [2`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Json错误", env.Message)

	code, env = s.doRaw(1, http.MethodPost, "/api/chat/conversations", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Json错误", env.Message)
}
