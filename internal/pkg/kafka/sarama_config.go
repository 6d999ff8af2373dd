package kafka

import (
	"Courier/internal/api/config"
	"time"

	"github.com/IBM/sarama"
)

// newSaramaConfig 统一初始化消费者组配置
func newSaramaConfig(kafkaCfg config.KafkaConfig) *sarama.Config {
	c := sarama.NewConfig()
	c.ClientID = "courier"

	if kafkaCfg.Sasl.Enable {
		c.Net.SASL.Enable = true
		c.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		c.Net.SASL.User = kafkaCfg.Sasl.Username
		c.Net.SASL.Password = kafkaCfg.Sasl.Password
	}

	c.Consumer.Return.Errors = true
	c.Consumer.Offsets.Initial = sarama.OffsetNewest
	c.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	c.Consumer.Group.Session.Timeout = secondsOr(kafkaCfg.Consumer.SessionTimeout, 10)
	c.Consumer.Group.Heartbeat.Interval = secondsOr(kafkaCfg.Consumer.HeartbeatInterval, 3)
	c.Consumer.Group.Rebalance.Timeout = secondsOr(kafkaCfg.Consumer.RebalanceTimeout, 60)
	c.Consumer.MaxProcessingTime = secondsOr(kafkaCfg.Consumer.MaxProcessingTime, 5)
	c.Consumer.Offsets.AutoCommit.Enable = true

	return c
}

func secondsOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}
