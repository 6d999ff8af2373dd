package kafka

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const (
	batchSize     = 32
	batchTimeout  = 1 * time.Second
	maxRetryDelay = 5 * time.Second
)

type LogicFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// pullMessageBatch 攒批拉取消息并执行业务逻辑
func pullMessageBatch(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim, logic LogicFunc) error {
	batch := make([]*sarama.ConsumerMessage, 0, batchSize)
	ticker := time.NewTicker(batchTimeout)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				if len(batch) > 0 {
					processBatch(session, batch, logic)
				}
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				processBatch(session, batch, logic)
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
				ticker.Reset(batchTimeout)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				processBatch(session, batch, logic)
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// processBatch 并发处理一批消息，失败按指数退避重试，格式错误的消息直接跳过
func processBatch(session sarama.ConsumerGroupSession, messages []*sarama.ConsumerMessage, logic LogicFunc) {
	var wg sync.WaitGroup

	for _, msg := range messages {
		wg.Add(1)

		go func(m *sarama.ConsumerMessage) {
			defer wg.Done()
			retryInterval := 100 * time.Millisecond

			for {
				err := logic(session.Context(), m)
				if err == nil || isPoison(err) {
					if err != nil {
						log.Warn("skip canal message", "offset", m.Offset, "err", err)
					}
					return
				}
				log.Error("process message error", "topic", m.Topic, "offset", m.Offset, "err", err)

				select {
				case <-session.Context().Done():
					return
				case <-time.After(retryInterval):
				}
				retryInterval *= 2
				if retryInterval > maxRetryDelay {
					retryInterval = maxRetryDelay
				}
			}
		}(msg)
	}

	wg.Wait()

	session.MarkMessage(messages[len(messages)-1], "")
}

func isPoison(err error) bool {
	var syntaxErr *json.SyntaxError
	return errors.Is(err, ErrTableMismatch) || errors.Is(err, ErrEmptyData) || errors.As(err, &syntaxErr)
}

// ToCanalMessage 将 kafka 消息转换为 canal 消息结构体
func ToCanalMessage(msg *sarama.ConsumerMessage, tableName string) (*CanalMessage, error) {
	var canalMsg CanalMessage
	if err := json.Unmarshal(msg.Value, &canalMsg); err != nil {
		return nil, errors.Wrap(err, "unmarshal canal message")
	}

	if canalMsg.Table != tableName {
		return nil, ErrTableMismatch
	}

	if len(canalMsg.Data) == 0 {
		return nil, ErrEmptyData
	}

	return &canalMsg, nil
}
