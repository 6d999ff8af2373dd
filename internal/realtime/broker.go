package realtime

import (
	"context"
	"sync"
)

// DeliverFunc 将某个房间的帧交给本实例内的会话
type DeliverFunc func(room string, payload []byte)

// Broker 房间级发布订阅，房间名即频道名
type Broker interface {
	Start(deliver DeliverFunc)
	Publish(ctx context.Context, room string, payload []byte) error
	Subscribe(ctx context.Context, room string) error
	Unsubscribe(ctx context.Context, room string) error
	Close() error
}

// LocalBroker 单实例部署使用，发布即同步投递
type LocalBroker struct {
	mu      sync.RWMutex
	deliver DeliverFunc
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{}
}

func (b *LocalBroker) Start(deliver DeliverFunc) {
	b.mu.Lock()
	b.deliver = deliver
	b.mu.Unlock()
}

func (b *LocalBroker) Publish(_ context.Context, room string, payload []byte) error {
	b.mu.RLock()
	deliver := b.deliver
	b.mu.RUnlock()
	if deliver != nil {
		deliver(room, payload)
	}
	return nil
}

func (b *LocalBroker) Subscribe(context.Context, string) error { return nil }

func (b *LocalBroker) Unsubscribe(context.Context, string) error { return nil }

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	b.deliver = nil
	b.mu.Unlock()
	return nil
}
