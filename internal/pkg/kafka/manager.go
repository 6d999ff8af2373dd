package kafka

import (
	"Courier/internal/api/config"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理 Kafka 消费者
type ConsumerManager struct {
	topic string

	userDetailConsumer sarama.ConsumerGroup
	userDetailHandler  sarama.ConsumerGroupHandler
}

func NewConsumerManager(cfg *config.Config, profiles ProfileInvalidator) (*ConsumerManager, error) {
	saramaCfg := newSaramaConfig(cfg.Kafka)

	userDetailConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaUserDetailConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &ConsumerManager{
		topic:              cfg.KafkaUserDetailConsumer.Topic,
		userDetailConsumer: userDetailConsumer,
		userDetailHandler:  NewUserDetailHandler(profiles),
	}, nil
}

// Start 阻塞直到 ctx 取消
func (m *ConsumerManager) Start(ctx context.Context) error {
	go func() {
		for err := range m.userDetailConsumer.Errors() {
			log.Error("Error from consumer", "err", err)
		}
	}()

	go func() {
		log.Info("User Detail consumer started", "topic", m.topic)
		for {
			if err := m.userDetailConsumer.Consume(ctx, []string{m.topic}, m.userDetailHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.userDetailConsumer.Close(); err != nil {
		log.Error("Failed to close user detail consumer", "err", err)
		return err
	}
	return nil
}
