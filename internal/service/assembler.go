package service

import (
	"Courier/internal/api/dto"
	"Courier/internal/pkg/mongo"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// assembler 将存储文档组装为带用户资料的响应
type assembler struct {
	messages mongo.MessageRepo
	profiles ProfileService
}

func newAssembler(messages mongo.MessageRepo, profiles ProfileService) *assembler {
	return &assembler{messages: messages, profiles: profiles}
}

func (a *assembler) message(ctx context.Context, m *mongo.Message) (*dto.MessageDTO, error) {
	out, err := a.messageList(ctx, []*mongo.Message{m})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// messageList 一次查询全部被回复消息与用户资料
func (a *assembler) messageList(ctx context.Context, msgs []*mongo.Message) ([]*dto.MessageDTO, error) {
	out := make([]*dto.MessageDTO, 0, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}

	var replyIDs []primitive.ObjectID
	for _, m := range msgs {
		if m.ReplyTo != nil {
			replyIDs = append(replyIDs, *m.ReplyTo)
		}
	}
	targets := make(map[primitive.ObjectID]*mongo.Message, len(replyIDs))
	if len(replyIDs) > 0 {
		found, err := a.messages.GetByIDs(ctx, replyIDs)
		if err != nil {
			return nil, err
		}
		for _, t := range found {
			targets[t.ID] = t
		}
	}

	var uids []uint64
	for _, m := range msgs {
		uids = append(uids, m.SenderID)
		uids = append(uids, m.IsReadBy...)
	}
	for _, t := range targets {
		uids = append(uids, t.SenderID)
	}
	users := a.profiles.Resolve(ctx, uids)

	for _, m := range msgs {
		d := &dto.MessageDTO{
			ID:             m.ID.Hex(),
			ConversationID: m.ConversationID.Hex(),
			Sender:         users[m.SenderID],
			Type:           m.Type,
			Text:           m.Text,
			Caption:        m.Caption,
			Media:          toMediaDTOs(m.Media),
			PostID:         m.PostID,
			IsReadBy:       make([]*dto.UserBriefDTO, 0, len(m.IsReadBy)),
			ClientTempID:   m.ClientTempID,
			CreatedAt:      m.CreatedAt,
		}
		for _, uid := range m.IsReadBy {
			d.IsReadBy = append(d.IsReadBy, users[uid])
		}
		if m.ReplyTo != nil {
			if t, ok := targets[*m.ReplyTo]; ok {
				d.ReplyTo = &dto.ReplyDTO{
					ID:      t.ID.Hex(),
					Sender:  users[t.SenderID],
					Text:    t.Text,
					Caption: t.Caption,
					Media:   toMediaDTOs(t.Media),
				}
			} else {
				d.ReplyTo = &dto.ReplyDTO{ID: m.ReplyTo.Hex()}
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// conversationList unread 以会话 ID 为键，缺省为 0
func (a *assembler) conversationList(ctx context.Context, convs []*mongo.Conversation, unread map[primitive.ObjectID]int64) ([]*dto.ConversationDTO, error) {
	out := make([]*dto.ConversationDTO, 0, len(convs))
	if len(convs) == 0 {
		return out, nil
	}

	var lastIDs []primitive.ObjectID
	var uids []uint64
	for _, c := range convs {
		if c.LastMessage != nil {
			lastIDs = append(lastIDs, *c.LastMessage)
		}
		uids = append(uids, c.Participants...)
		if c.Admin != 0 {
			uids = append(uids, c.Admin)
		}
	}

	lasts := make(map[primitive.ObjectID]*mongo.Message, len(lastIDs))
	if len(lastIDs) > 0 {
		found, err := a.messages.GetByIDs(ctx, lastIDs)
		if err != nil {
			return nil, err
		}
		for _, m := range found {
			lasts[m.ID] = m
		}
	}
	users := a.profiles.Resolve(ctx, uids)

	for _, c := range convs {
		d := &dto.ConversationDTO{
			ID:           c.ID.Hex(),
			Participants: make([]*dto.UserBriefDTO, 0, len(c.Participants)),
			IsGroup:      c.IsGroup,
			GroupName:    c.GroupName,
			UnreadCount:  unread[c.ID],
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		for _, uid := range c.Participants {
			d.Participants = append(d.Participants, users[uid])
		}
		if c.IsGroup && c.Admin != 0 {
			d.Admin = users[c.Admin]
		}
		if c.LastMessage != nil {
			if m, ok := lasts[*c.LastMessage]; ok {
				d.LastMessage = &dto.LastMessageDTO{
					ID:        m.ID.Hex(),
					SenderID:  m.SenderID,
					Text:      m.Text,
					Caption:   m.Caption,
					CreatedAt: m.CreatedAt,
				}
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func toMediaDTOs(media []mongo.Media) []dto.MediaDTO {
	out := make([]dto.MediaDTO, 0, len(media))
	for _, m := range media {
		out = append(out, dto.MediaDTO{
			Kind:     m.Kind,
			URL:      m.URL,
			Width:    m.Width,
			Height:   m.Height,
			Duration: m.Duration,
			CoverURL: m.CoverURL,
		})
	}
	return out
}

func fromMediaDTOs(media []dto.MediaDTO) []mongo.Media {
	out := make([]mongo.Media, 0, len(media))
	for _, m := range media {
		out = append(out, mongo.Media{
			Kind:     m.Kind,
			URL:      m.URL,
			Width:    m.Width,
			Height:   m.Height,
			Duration: m.Duration,
			CoverURL: m.CoverURL,
		})
	}
	return out
}
