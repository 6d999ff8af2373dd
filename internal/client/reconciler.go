package client

import (
	"Courier/internal/api/dto"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusSending   = "sending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"

	tempIDPrefix = "tmp-"
	// matchWindow 未回传临时 ID 时按发送者与内容匹配的时间窗口
	matchWindow = 30 * time.Second
)

// Reconciler 单个会话视图的本地消息状态，合并乐观消息、发送确认、实时推送与已读增量。
// 所有合并操作幂等且与到达顺序无关。
type Reconciler struct {
	mu             sync.Mutex
	conversationID string
	self           *dto.UserBriefDTO

	// confirmed 以正式 ID 为键，pending 以临时 ID 为键，两者不相交
	confirmed map[string]*dto.MessageDTO
	pending   map[string]*dto.MessageDTO

	now func() time.Time
}

func NewReconciler(conversationID string, self *dto.UserBriefDTO) *Reconciler {
	return &Reconciler{
		conversationID: conversationID,
		self:           self,
		confirmed:      make(map[string]*dto.MessageDTO),
		pending:        make(map[string]*dto.MessageDTO),
		now:            time.Now,
	}
}

func (r *Reconciler) ConversationID() string {
	return r.conversationID
}

// Compose 插入一条 sending 状态的乐观消息，并把临时 ID 写回 req。
// replyTarget 为被回复消息的本地快照，可能本身仍在发送中。
func (r *Reconciler) Compose(req *dto.SendMessageReq, replyTarget *dto.MessageDTO) *dto.MessageDTO {
	tempID := tempIDPrefix + uuid.NewString()
	req.ConversationID = r.conversationID
	req.ClientTempID = tempID

	msg := &dto.MessageDTO{
		ID:             tempID,
		ConversationID: r.conversationID,
		Sender:         r.self,
		Type:           req.Type,
		Text:           req.Text,
		Caption:        req.Caption,
		Media:          append([]dto.MediaDTO(nil), req.Media...),
		PostID:         req.PostID,
		IsReadBy:       []*dto.UserBriefDTO{r.self},
		ClientTempID:   tempID,
		Status:         StatusSending,
		CreatedAt:      r.now(),
	}
	if replyTarget != nil {
		msg.ReplyTo = &dto.ReplyDTO{
			ID:      replyTarget.ID,
			Sender:  replyTarget.Sender,
			Text:    replyTarget.Text,
			Caption: replyTarget.Caption,
			Media:   replyTarget.Media,
		}
		if replyTarget.Status == "" || replyTarget.Status == StatusConfirmed {
			req.ReplyTo = replyTarget.ID
		}
	}

	r.mu.Lock()
	r.pending[tempID] = msg
	r.mu.Unlock()
	return clone(msg)
}

// ConfirmSend 发送接口返回后调用
func (r *Reconciler) ConfirmSend(tempID string, msg *dto.MessageDTO) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, tempID)
	if msg != nil {
		r.mergeLocked(msg)
	}
}

// ApplyNewMessage 合并实时推送的正式消息，重复推送不会产生重复条目
func (r *Reconciler) ApplyNewMessage(msg *dto.MessageDTO) {
	if msg == nil || msg.ID == "" || msg.ConversationID != r.conversationID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mergeLocked(msg)
}

// Load 合并拉取到的历史消息
func (r *Reconciler) Load(list []*dto.MessageDTO) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range list {
		if msg == nil || msg.ID == "" || msg.ConversationID != r.conversationID {
			continue
		}
		r.mergeLocked(msg)
	}
}

// ApplyReadDelta 合并已读增量，只更新本地已有消息的已读集合
func (r *Reconciler) ApplyReadDelta(ev *dto.MessagesReadEvent) {
	if ev == nil || ev.ConversationID != r.conversationID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range ev.Messages {
		if m == nil {
			continue
		}
		if local, ok := r.confirmed[m.ID]; ok {
			local.IsReadBy = unionReaders(local.IsReadBy, m.IsReadBy)
		}
	}
}

// MarkFailed 发送失败时保留乐观消息并标记为 failed
func (r *Reconciler) MarkFailed(tempID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.pending[tempID]
	if !ok {
		return false
	}
	msg.Status = StatusFailed
	return true
}

// Discard 移除乐观消息
func (r *Reconciler) Discard(tempID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[tempID]; !ok {
		return false
	}
	delete(r.pending, tempID)
	return true
}

// Messages 返回按创建时间升序排列的快照，发送中的消息占据其最终位置
func (r *Reconciler) Messages() []*dto.MessageDTO {
	r.mu.Lock()
	out := make([]*dto.MessageDTO, 0, len(r.confirmed)+len(r.pending))
	for _, m := range r.confirmed {
		out = append(out, clone(m))
	}
	for _, m := range r.pending {
		out = append(out, clone(m))
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pending 仍未确认的乐观消息数
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Has 正式消息是否已在本地
func (r *Reconciler) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.confirmed[id]
	return ok
}

func (r *Reconciler) mergeLocked(msg *dto.MessageDTO) {
	if local, ok := r.confirmed[msg.ID]; ok {
		local.IsReadBy = unionReaders(local.IsReadBy, msg.IsReadBy)
	} else {
		cp := clone(msg)
		cp.Status = StatusConfirmed
		cp.IsReadBy = unionReaders(cp.IsReadBy, nil)
		r.confirmed[msg.ID] = cp
	}
	r.dropShadowLocked(msg)
}

// dropShadowLocked 移除与正式消息对应的乐观消息
func (r *Reconciler) dropShadowLocked(msg *dto.MessageDTO) {
	if msg.ClientTempID != "" {
		delete(r.pending, msg.ClientTempID)
		return
	}
	if msg.Sender == nil {
		return
	}

	var match string
	var matchAt time.Time
	for id, p := range r.pending {
		if p.Status != StatusSending || !sameContent(p, msg) {
			continue
		}
		if d := msg.CreatedAt.Sub(p.CreatedAt); d > matchWindow || d < -matchWindow {
			continue
		}
		if match == "" || p.CreatedAt.Before(matchAt) {
			match, matchAt = id, p.CreatedAt
		}
	}
	if match != "" {
		delete(r.pending, match)
	}
}

func sameContent(p, msg *dto.MessageDTO) bool {
	if p.Sender == nil || p.Sender.UserID != msg.Sender.UserID {
		return false
	}
	if p.Text != msg.Text || p.Caption != msg.Caption || p.PostID != msg.PostID || len(p.Media) != len(msg.Media) {
		return false
	}
	for i := range p.Media {
		if p.Media[i].URL != msg.Media[i].URL {
			return false
		}
	}
	return true
}

// unionReaders 已读集合只增不减，结果按用户 ID 排序
func unionReaders(a, b []*dto.UserBriefDTO) []*dto.UserBriefDTO {
	seen := make(map[uint64]int, len(a)+len(b))
	out := make([]*dto.UserBriefDTO, 0, len(a)+len(b))
	for _, list := range [][]*dto.UserBriefDTO{a, b} {
		for _, u := range list {
			if u == nil {
				continue
			}
			if i, ok := seen[u.UserID]; ok {
				// 新的资料更完整时覆盖
				if out[i].Nickname == "" && u.Nickname != "" {
					out[i] = u
				}
				continue
			}
			seen[u.UserID] = len(out)
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func clone(m *dto.MessageDTO) *dto.MessageDTO {
	cp := *m
	cp.Media = append([]dto.MediaDTO(nil), m.Media...)
	cp.IsReadBy = append([]*dto.UserBriefDTO(nil), m.IsReadBy...)
	return &cp
}
