package memstore

import (
	"Courier/internal/pkg/mongo"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestConversationRepoStrictPair(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepo(true)

	now := time.Now()
	first := &mongo.Conversation{Participants: []uint64{1, 2}, PairKey: mongo.DirectPairKey(2, 1), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, first))
	assert.False(t, first.ID.IsZero())

	dup := &mongo.Conversation{Participants: []uint64{1, 2}, PairKey: mongo.DirectPairKey(1, 2), CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, repo.Create(ctx, dup), mongo.ErrDuplicatePair)

	loose := NewConversationRepo(false)
	require.NoError(t, loose.Create(ctx, &mongo.Conversation{PairKey: "1_2", CreatedAt: now}))
	require.NoError(t, loose.Create(ctx, &mongo.Conversation{PairKey: "1_2", CreatedAt: now.Add(time.Second)}))
	pairs, err := loose.FindDuplicateDirectPairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 2, pairs[0].Count)
}

func TestConversationRepoListOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepo(false)
	base := time.Now()

	a := &mongo.Conversation{Participants: []uint64{1, 2}, CreatedAt: base, UpdatedAt: base}
	b := &mongo.Conversation{Participants: []uint64{1, 3}, CreatedAt: base, UpdatedAt: base.Add(time.Minute)}
	c := &mongo.Conversation{Participants: []uint64{2, 3}, CreatedAt: base, UpdatedAt: base.Add(2 * time.Minute)}
	for _, conv := range []*mongo.Conversation{a, b, c} {
		require.NoError(t, repo.Create(ctx, conv))
	}

	list, err := repo.ListByParticipant(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)

	require.NoError(t, repo.TouchLastMessage(ctx, a.ID, primitive.NewObjectID(), base.Add(time.Hour)))
	list, _ = repo.ListByParticipant(ctx, 1)
	assert.Equal(t, a.ID, list[0].ID)
	assert.NotNil(t, list[0].LastMessage)
}

func TestMessageRepoReadTracking(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo()
	conv := primitive.NewObjectID()
	base := time.Now()

	m1 := &mongo.Message{ConversationID: conv, SenderID: 1, Text: "a", IsReadBy: []uint64{1}, CreatedAt: base}
	m2 := &mongo.Message{ConversationID: conv, SenderID: 2, Text: "b", IsReadBy: []uint64{2}, CreatedAt: base.Add(time.Second)}
	m3 := &mongo.Message{ConversationID: conv, SenderID: 1, Text: "c", IsReadBy: []uint64{1}, CreatedAt: base.Add(2 * time.Second)}
	for _, m := range []*mongo.Message{m3, m1, m2} {
		require.NoError(t, repo.Insert(ctx, m))
	}

	n, err := repo.CountUnread(ctx, conv, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ids, err := repo.FindUnreadIDs(ctx, conv, 2)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{m1.ID, m3.ID}, ids)

	claimed, err := repo.AddReader(ctx, ids, 2)
	require.NoError(t, err)
	assert.Equal(t, ids, claimed)
	claimed, err = repo.AddReader(ctx, ids, 2)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	got, err := repo.GetByID(ctx, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, got.IsReadBy)

	n, _ = repo.CountUnread(ctx, conv, 2)
	assert.Zero(t, n)

	list, err := repo.ListByConversation(ctx, conv)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].Text, list[1].Text, list[2].Text})
}

func TestMessageRepoReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo()
	m := &mongo.Message{ConversationID: primitive.NewObjectID(), SenderID: 1, IsReadBy: []uint64{1}, CreatedAt: time.Now()}
	require.NoError(t, repo.Insert(ctx, m))

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	got.IsReadBy = append(got.IsReadBy, 99)

	again, _ := repo.GetByID(ctx, m.ID)
	assert.Equal(t, []uint64{1}, again.IsReadBy)

	_, err = repo.GetByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, mongo.ErrNotFound)
}
