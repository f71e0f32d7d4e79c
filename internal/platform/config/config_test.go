package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults apply when nothing is set", func(t *testing.T) {
		cfg := FromEnv()
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Empty(t, cfg.DatabaseURL)
		assert.Nil(t, cfg.KafkaBrokers)
		assert.Equal(t, "convoca.lifecycle", cfg.KafkaTopic)
		assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 256, cfg.EventBufferSize)
	})

	t.Run("broker list is split, trimmed, and deduped", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", " kafka-1:9092 ,kafka-2:9092,, kafka-1:9092 ")
		cfg := FromEnv()
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	})

	t.Run("malformed durations fall back", func(t *testing.T) {
		t.Setenv("REQUEST_TIMEOUT", "soon")
		t.Setenv("EVENT_BUFFER_SIZE", "many")
		cfg := FromEnv()
		assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 256, cfg.EventBufferSize)
	})
}
