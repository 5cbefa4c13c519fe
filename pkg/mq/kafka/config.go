package kafka

import (
	"fmt"

	"github.com/IBM/sarama"

	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/utils"
)

// ToSaramaConfig maps the Kafka settings onto a sarama configuration for an async
// producer and a consumer group member.
func ToSaramaConfig(cfg settings.Kafka) (*sarama.Config, error) {
	config := sarama.NewConfig()

	if cfg.Version != "" {
		version, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid kafka version: %w", err)
		}
		config.Version = version
	}
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}
	if cfg.Timeout > 0 {
		timeout := utils.ToDuration(cfg.Timeout)
		config.Net.DialTimeout = timeout
		config.Net.ReadTimeout = timeout
		config.Net.WriteTimeout = timeout
	}

	// Producer settings
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	if cfg.MaxMessageBytes > 0 {
		config.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}
	if cfg.FlushFrequency > 0 {
		config.Producer.Flush.Frequency = utils.ToDurationMs(cfg.FlushFrequency)
	}
	if cfg.FlushBytes > 0 {
		config.Producer.Flush.Bytes = cfg.FlushBytes
	}
	if cfg.MaxRetries > 0 {
		config.Producer.Retry.Max = cfg.MaxRetries
	}
	if cfg.RetryBackoff > 0 {
		config.Producer.Retry.Backoff = utils.ToDurationMs(cfg.RetryBackoff)
	}

	// Consumer settings
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	if cfg.MaxProcessingTime > 0 {
		config.Consumer.MaxProcessingTime = utils.ToDurationMs(cfg.MaxProcessingTime)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}
	return config, nil
}
