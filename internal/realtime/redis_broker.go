package realtime

import (
	"context"
	log "log/slog"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisBroker 多实例部署通过 Redis Pub/Sub 共享房间
type RedisBroker struct {
	rdb    *redis.Client
	pubsub *redis.PubSub
	wg     sync.WaitGroup
	once   sync.Once
}

func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{
		rdb:    rdb,
		pubsub: rdb.Subscribe(context.Background()),
	}
}

func (b *RedisBroker) Start(deliver DeliverFunc) {
	ch := b.pubsub.Channel()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ch {
			deliver(msg.Channel, []byte(msg.Payload))
		}
		log.Info("Redis broker channel closed")
	}()
}

func (b *RedisBroker) Publish(ctx context.Context, room string, payload []byte) error {
	return errors.Wrap(b.rdb.Publish(ctx, room, payload).Err(), "publish room")
}

func (b *RedisBroker) Subscribe(ctx context.Context, room string) error {
	return errors.Wrap(b.pubsub.Subscribe(ctx, room), "subscribe room")
}

func (b *RedisBroker) Unsubscribe(ctx context.Context, room string) error {
	return errors.Wrap(b.pubsub.Unsubscribe(ctx, room), "unsubscribe room")
}

func (b *RedisBroker) Close() error {
	var err error
	b.once.Do(func() {
		err = b.pubsub.Close()
		b.wg.Wait()
	})
	return err
}
