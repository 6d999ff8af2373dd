package client

import (
	"Courier/internal/api/dto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const convID = "65a000000000000000000001"

var (
	aliceBrief = &dto.UserBriefDTO{UserID: 1, Nickname: "alice"}
	bobBrief   = &dto.UserBriefDTO{UserID: 2, Nickname: "bob"}
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func canonical(id, text string, at time.Time, tempID string, readers ...*dto.UserBriefDTO) *dto.MessageDTO {
	return &dto.MessageDTO{
		ID:             id,
		ConversationID: convID,
		Sender:         aliceBrief,
		Type:           "text",
		Text:           text,
		IsReadBy:       readers,
		ClientTempID:   tempID,
		CreatedAt:      at,
	}
}

func readerIDs(m *dto.MessageDTO) []uint64 {
	out := make([]uint64, 0, len(m.IsReadBy))
	for _, u := range m.IsReadBy {
		out = append(out, u.UserID)
	}
	return out
}

func TestComposeInsertsSendingEntry(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	r := NewReconciler(convID, aliceBrief)
	r.now = fixedClock(base)

	req := &dto.SendMessageReq{Text: "hello"}
	p := r.Compose(req, nil)

	assert.True(t, strings.HasPrefix(p.ID, tempIDPrefix))
	assert.Equal(t, p.ID, req.ClientTempID)
	assert.Equal(t, convID, req.ConversationID)
	assert.Equal(t, StatusSending, p.Status)
	assert.Equal(t, []uint64{1}, readerIDs(p))
	assert.Equal(t, 1, r.Pending())
}

func TestComposeSnapshotsProvisionalReplyTarget(t *testing.T) {
	r := NewReconciler(convID, aliceBrief)

	first := r.Compose(&dto.SendMessageReq{Text: "one"}, nil)
	req := &dto.SendMessageReq{Text: "two"}
	second := r.Compose(req, first)

	require.NotNil(t, second.ReplyTo)
	assert.Equal(t, first.ID, second.ReplyTo.ID)
	assert.Equal(t, "one", second.ReplyTo.Text)
	// 临时 ID 不会发给服务端
	assert.Empty(t, req.ReplyTo)

	confirmed := canonical("65a0000000000000000000aa", "one", time.Now(), "")
	req2 := &dto.SendMessageReq{Text: "three"}
	r.Compose(req2, confirmed)
	assert.Equal(t, confirmed.ID, req2.ReplyTo)
}

func TestReconciliationOrderIndependence(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	run := func(fanOutFirst bool) []*dto.MessageDTO {
		r := NewReconciler(convID, aliceBrief)
		r.now = fixedClock(base)
		req := &dto.SendMessageReq{Text: "hi"}
		p := r.Compose(req, nil)

		msg := canonical("65a000000000000000000010", "hi", base.Add(50*time.Millisecond), p.ClientTempID, aliceBrief)
		if fanOutFirst {
			r.ApplyNewMessage(msg)
			r.ConfirmSend(p.ClientTempID, msg)
		} else {
			r.ConfirmSend(p.ClientTempID, msg)
			r.ApplyNewMessage(msg)
		}
		assert.Equal(t, 0, r.Pending())
		return r.Messages()
	}

	a := run(true)
	b := run(false)
	require.Len(t, a, 1)
	assert.Equal(t, a, b)
	assert.Equal(t, StatusConfirmed, a[0].Status)
}

func TestApplyNewMessageIdempotent(t *testing.T) {
	r := NewReconciler(convID, bobBrief)
	msg := canonical("65a000000000000000000010", "hi", time.Now(), "", aliceBrief)

	r.ApplyNewMessage(msg)
	once := r.Messages()
	r.ApplyNewMessage(msg)
	assert.Equal(t, once, r.Messages())
	assert.Len(t, r.Messages(), 1)
}

func TestApplyNewMessageIgnoresOtherConversation(t *testing.T) {
	r := NewReconciler(convID, bobBrief)
	msg := canonical("65a000000000000000000010", "hi", time.Now(), "")
	msg.ConversationID = "65a0000000000000000000ff"

	r.ApplyNewMessage(msg)
	assert.Empty(t, r.Messages())
}

func TestFanOutRemovesShadowHeuristically(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	r := NewReconciler(convID, aliceBrief)
	r.now = fixedClock(base)
	r.Compose(&dto.SendMessageReq{Text: "same"}, nil)
	r.Compose(&dto.SendMessageReq{Text: "other"}, nil)

	// 服务端未回传临时 ID
	r.ApplyNewMessage(canonical("65a000000000000000000010", "same", base.Add(time.Second), ""))
	assert.Equal(t, 1, r.Pending())

	// 超出时间窗口的不匹配
	r.ApplyNewMessage(canonical("65a000000000000000000011", "other", base.Add(time.Hour), ""))
	assert.Equal(t, 1, r.Pending())
}

func TestApplyReadDelta(t *testing.T) {
	r := NewReconciler(convID, aliceBrief)
	m1 := canonical("65a000000000000000000010", "a", time.Now(), "", aliceBrief)
	m2 := canonical("65a000000000000000000011", "b", time.Now().Add(time.Millisecond), "", aliceBrief)
	r.Load([]*dto.MessageDTO{m1, m2})

	delta := &dto.MessagesReadEvent{
		ConversationID: convID,
		Messages: []*dto.MessageDTO{
			{ID: m1.ID, Text: "tampered", IsReadBy: []*dto.UserBriefDTO{aliceBrief, bobBrief}},
			{ID: "65a0000000000000000000ee", IsReadBy: []*dto.UserBriefDTO{bobBrief}},
		},
	}
	r.ApplyReadDelta(delta)
	r.ApplyReadDelta(delta)

	list := r.Messages()
	require.Len(t, list, 2)
	assert.Equal(t, []uint64{1, 2}, readerIDs(list[0]))
	assert.Equal(t, "a", list[0].Text)
	assert.Equal(t, []uint64{1}, readerIDs(list[1]))

	// 旧的增量不会回退已读集合
	r.ApplyReadDelta(&dto.MessagesReadEvent{
		ConversationID: convID,
		Messages:       []*dto.MessageDTO{{ID: m1.ID, IsReadBy: []*dto.UserBriefDTO{aliceBrief}}},
	})
	assert.Equal(t, []uint64{1, 2}, readerIDs(r.Messages()[0]))
}

func TestMessagesSortedWithSendingInPlace(t *testing.T) {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	r := NewReconciler(convID, aliceBrief)
	r.Load([]*dto.MessageDTO{
		canonical("65a000000000000000000020", "late", base.Add(2*time.Second), ""),
		canonical("65a000000000000000000010", "early", base, ""),
	})
	r.now = fixedClock(base.Add(time.Second))
	r.Compose(&dto.SendMessageReq{Text: "middle"}, nil)

	list := r.Messages()
	require.Len(t, list, 3)
	assert.Equal(t, "early", list[0].Text)
	assert.Equal(t, "middle", list[1].Text)
	assert.Equal(t, StatusSending, list[1].Status)
	assert.Equal(t, "late", list[2].Text)
}

func TestMarkFailedAndDiscard(t *testing.T) {
	r := NewReconciler(convID, aliceBrief)
	p := r.Compose(&dto.SendMessageReq{Text: "x"}, nil)

	assert.True(t, r.MarkFailed(p.ClientTempID))
	assert.Equal(t, StatusFailed, r.Messages()[0].Status)

	// failed 的消息不参与启发式匹配
	r.ApplyNewMessage(canonical("65a000000000000000000010", "x", time.Now(), ""))
	assert.Equal(t, 1, r.Pending())

	assert.True(t, r.Discard(p.ClientTempID))
	assert.False(t, r.Discard(p.ClientTempID))
	assert.False(t, r.MarkFailed(p.ClientTempID))
	assert.Equal(t, 0, r.Pending())
}

func TestMessagesReturnsCopies(t *testing.T) {
	r := NewReconciler(convID, aliceBrief)
	r.Load([]*dto.MessageDTO{canonical("65a000000000000000000010", "a", time.Now(), "", aliceBrief)})

	list := r.Messages()
	list[0].Text = "changed"
	list[0].IsReadBy = append(list[0].IsReadBy, bobBrief)

	again := r.Messages()
	assert.Equal(t, "a", again[0].Text)
	assert.Equal(t, []uint64{1}, readerIDs(again[0]))
}
