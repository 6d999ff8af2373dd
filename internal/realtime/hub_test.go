package realtime

import (
	"Courier/internal/api/config"
	"Courier/internal/api/dto"
	"Courier/internal/model"
	"Courier/internal/pkg/memstore"
	"Courier/internal/service"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBroker struct {
	*LocalBroker
	mu   sync.Mutex
	subs map[string]int
}

func (b *countingBroker) Subscribe(ctx context.Context, room string) error {
	b.mu.Lock()
	b.subs[room]++
	b.mu.Unlock()
	return b.LocalBroker.Subscribe(ctx, room)
}

func (b *countingBroker) Unsubscribe(ctx context.Context, room string) error {
	b.mu.Lock()
	b.subs[room]--
	b.mu.Unlock()
	return b.LocalBroker.Unsubscribe(ctx, room)
}

// gatedBroker 订阅状态为布尔值，未订阅的房间收不到广播，Unsubscribe 在 release 关闭前阻塞
type gatedBroker struct {
	*LocalBroker
	mu         sync.Mutex
	subscribed map[string]bool
	entered    chan struct{}
	release    chan struct{}
}

func newGatedBroker() *gatedBroker {
	return &gatedBroker{
		LocalBroker: NewLocalBroker(),
		subscribed:  map[string]bool{},
		entered:     make(chan struct{}, 4),
		release:     make(chan struct{}),
	}
}

func (b *gatedBroker) Subscribe(_ context.Context, room string) error {
	b.mu.Lock()
	b.subscribed[room] = true
	b.mu.Unlock()
	return nil
}

func (b *gatedBroker) Unsubscribe(_ context.Context, room string) error {
	b.entered <- struct{}{}
	<-b.release
	b.mu.Lock()
	b.subscribed[room] = false
	b.mu.Unlock()
	return nil
}

func (b *gatedBroker) Publish(ctx context.Context, room string, payload []byte) error {
	if !b.isSubscribed(room) {
		return nil
	}
	return b.LocalBroker.Publish(ctx, room, payload)
}

func (b *gatedBroker) isSubscribed(room string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribed[room]
}

type hubFixture struct {
	hub    *Hub
	broker *countingBroker
	convs  service.ConversationService
	msgs   service.MessageService
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	broker := &countingBroker{LocalBroker: NewLocalBroker(), subs: map[string]int{}}
	f := newHubFixtureWith(t, broker)
	f.broker = broker
	return f
}

func newHubFixtureWith(t *testing.T, broker Broker) *hubFixture {
	t.Helper()
	convRepo := memstore.NewConversationRepo(false)
	msgRepo := memstore.NewMessageRepo()
	profiles := service.NewProfileService(memstore.NewProfileRepo(
		&model.UserDetail{UserID: 1, Nickname: "alice"},
		&model.UserDetail{UserID: 2, Nickname: "bob"},
	), nil, nil)
	reads := service.NewReadService(msgRepo, profiles)
	convs := service.NewConversationService(convRepo, msgRepo, reads, profiles, "")
	msgs := service.NewMessageService(convRepo, msgRepo, convs, reads, profiles)

	return &hubFixture{hub: NewHub(broker, convs, msgs), convs: convs, msgs: msgs}
}

func (f *hubFixture) session(userID uint64, buffer int) *Session {
	s := NewSession(f.hub, nil, userID, config.RealtimeConfig{SendBuffer: buffer})
	f.hub.Register(s)
	return s
}

func recv(t *testing.T, s *Session) dto.Envelope {
	t.Helper()
	select {
	case raw := <-s.send:
		var env dto.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return dto.Envelope{}
	}
}

func assertSilent(t *testing.T, s *Session) {
	t.Helper()
	select {
	case raw := <-s.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func TestJoinPublishesReadDelta(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	conv, _, err := f.convs.StartConversation(ctx, 1, []uint64{2})
	require.NoError(t, err)
	sent, err := f.msgs.SendMessage(ctx, 1, &dto.SendMessageReq{ConversationID: conv.ID, Text: "hi"})
	require.NoError(t, err)

	a := f.session(1, 8)
	require.NoError(t, f.hub.Join(ctx, a, conv.ID))
	// 自己的消息没有增量
	assertSilent(t, a)

	b := f.session(2, 8)
	require.NoError(t, f.hub.Join(ctx, b, conv.ID))
	assert.Equal(t, 2, f.hub.RoomSize(conv.ID))
	assert.Equal(t, 1, f.broker.subs[roomName(conv.ID)])

	for _, s := range []*Session{a, b} {
		env := recv(t, s)
		assert.Equal(t, dto.EventMessagesRead, env.Event)
		var evt dto.MessagesReadEvent
		require.NoError(t, json.Unmarshal(env.Data, &evt))
		assert.Equal(t, conv.ID, evt.ConversationID)
		require.Len(t, evt.Messages, 1)
		assert.Equal(t, sent.ID, evt.Messages[0].ID)
		assert.Len(t, evt.Messages[0].IsReadBy, 2)
	}

	// 再次请求已读，增量为空不广播
	require.NoError(t, f.hub.RequestMarkRead(ctx, b, conv.ID))
	assertSilent(t, a)
	assertSilent(t, b)
}

func TestJoinRejectsOutsider(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	conv, _, err := f.convs.StartConversation(ctx, 1, []uint64{2})
	require.NoError(t, err)

	outsider := f.session(3, 8)
	err = f.hub.Join(ctx, outsider, conv.ID)
	assert.ErrorIs(t, err, service.UnauthorizedError)
	assert.Zero(t, f.hub.RoomSize(conv.ID))

	err = f.hub.Join(ctx, outsider, "bogus")
	assert.ErrorIs(t, err, service.ErrInvalidID)
}

func TestPublishNewMessageRelaysCanonicalRecord(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	conv, _, err := f.convs.StartConversation(ctx, 1, []uint64{2})
	require.NoError(t, err)

	a := f.session(1, 8)
	b := f.session(2, 8)
	require.NoError(t, f.hub.Join(ctx, a, conv.ID))
	require.NoError(t, f.hub.Join(ctx, b, conv.ID))

	sent, err := f.msgs.SendMessage(ctx, 1, &dto.SendMessageReq{ConversationID: conv.ID, Text: "hello", ClientTempID: "tmp-x"})
	require.NoError(t, err)

	require.NoError(t, f.hub.PublishNewMessage(ctx, a, &dto.RelayReq{ID: sent.ID, ConversationID: conv.ID}))
	for _, s := range []*Session{a, b} {
		env := recv(t, s)
		assert.Equal(t, dto.EventNewMessage, env.Event)
		var msg dto.MessageDTO
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		assert.Equal(t, sent.ID, msg.ID)
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, "tmp-x", msg.ClientTempID)
	}

	err = f.hub.PublishNewMessage(ctx, a, &dto.RelayReq{ID: "65a1b2c3d4e5f60718293a4b"})
	assert.ErrorIs(t, err, service.ErrMessageNotFound)

	other, _, err := f.convs.StartConversation(ctx, 1, []uint64{1, 2, 3})
	require.NoError(t, err)
	err = f.hub.PublishNewMessage(ctx, a, &dto.RelayReq{ID: sent.ID, ConversationID: other.ID})
	assert.ErrorIs(t, err, service.ErrParamInvalid)

	assertSilent(t, a)
	assertSilent(t, b)
}

func TestLeaveStopsDelivery(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	conv, _, err := f.convs.StartConversation(ctx, 1, []uint64{2})
	require.NoError(t, err)
	a := f.session(1, 8)
	b := f.session(2, 8)
	require.NoError(t, f.hub.Join(ctx, a, conv.ID))
	require.NoError(t, f.hub.Join(ctx, b, conv.ID))

	f.hub.Leave(ctx, b, conv.ID)
	assert.Equal(t, 1, f.hub.RoomSize(conv.ID))

	sent, err := f.msgs.SendMessage(ctx, 1, &dto.SendMessageReq{ConversationID: conv.ID, Text: "x"})
	require.NoError(t, err)
	require.NoError(t, f.hub.PublishNewMessage(ctx, a, &dto.RelayReq{ID: sent.ID}))

	assert.Equal(t, dto.EventNewMessage, recv(t, a).Event)
	assertSilent(t, b)

	f.hub.Unregister(ctx, a)
	assert.Zero(t, f.hub.RoomSize(conv.ID))
	assert.Zero(t, f.broker.subs[roomName(conv.ID)])
}

func TestSlowSessionIsDropped(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	conv, _, err := f.convs.StartConversation(ctx, 1, []uint64{2})
	require.NoError(t, err)
	fast := f.session(1, 8)
	slow := f.session(2, 1)
	require.NoError(t, f.hub.Join(ctx, fast, conv.ID))
	require.NoError(t, f.hub.Join(ctx, slow, conv.ID))

	sent, err := f.msgs.SendMessage(ctx, 1, &dto.SendMessageReq{ConversationID: conv.ID, Text: "x"})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, f.hub.PublishNewMessage(ctx, fast, &dto.RelayReq{ID: sent.ID}))
	}

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("slow session was not closed")
	}
	assert.Equal(t, dto.EventNewMessage, recv(t, fast).Event)
	assert.Equal(t, dto.EventNewMessage, recv(t, fast).Event)
}

func TestDispatchRejectsBadPayload(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	s := f.session(1, 8)

	err := s.dispatch(ctx, &dto.Envelope{Event: dto.EventJoinConversation, Data: json.RawMessage(`{"conversationId":"short"}`)})
	assert.ErrorIs(t, err, service.ErrParamInvalid)

	err = s.dispatch(ctx, &dto.Envelope{Event: "typing", Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, service.ErrParamInvalid)

	s.sendError(dto.EventJoinConversation, service.UnauthorizedError)
	env := recv(t, s)
	assert.Equal(t, dto.EventError, env.Event)
	var evt dto.ErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &evt))
	assert.Equal(t, service.Unauthorized, evt.Code)
	assert.Equal(t, dto.EventJoinConversation, evt.Event)
}

func TestJoinDuringLastLeaveKeepsSubscription(t *testing.T) {
	broker := newGatedBroker()
	f := newHubFixtureWith(t, broker)
	ctx := context.Background()

	conv, _, err := f.convs.StartConversation(ctx, 1, []uint64{2})
	require.NoError(t, err)
	room := roomName(conv.ID)
	a := f.session(1, 8)
	b := f.session(2, 8)
	require.NoError(t, f.hub.Join(ctx, a, conv.ID))
	require.True(t, broker.isSubscribed(room))

	left := make(chan struct{})
	go func() {
		f.hub.Leave(ctx, a, conv.ID)
		close(left)
	}()
	select {
	case <-broker.entered:
	case <-time.After(time.Second):
		t.Fatal("leave did not reach the broker")
	}

	joined := make(chan error, 1)
	go func() {
		joined <- f.hub.Join(ctx, b, conv.ID)
	}()
	require.Eventually(t, func() bool { return f.hub.RoomSize(conv.ID) == 1 }, time.Second, 5*time.Millisecond)

	close(broker.release)
	<-left
	select {
	case err = <-joined:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("join did not finish")
	}

	assert.Equal(t, 1, f.hub.RoomSize(conv.ID))
	assert.True(t, broker.isSubscribed(room))

	sent, err := f.msgs.SendMessage(ctx, 1, &dto.SendMessageReq{ConversationID: conv.ID, Text: "still here?"})
	require.NoError(t, err)
	require.NoError(t, f.hub.PublishNewMessage(ctx, b, &dto.RelayReq{ID: sent.ID}))
	assert.Equal(t, dto.EventNewMessage, recv(t, b).Event)
	assertSilent(t, a)
}
