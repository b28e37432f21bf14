package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/meliscraper/internal/models"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher("localhost:6379", 0, "test_stream_r", 1, 100)
	defer publisher.Close()

	// Test if Redis is available
	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	// Create a subscriber to verify the message was published
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()

	err := client.XGroupCreateMkStream(ctx, "test_stream_r:0", "test_group", "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		require.NoError(t, err)
	}

	type entry struct {
		runID   string
		product string
	}
	messages := make(chan entry, 1)

	go func() {
		streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Streams:  []string{"test_stream_r:0", ">"},
			Group:    "test_group",
			Consumer: "test_consumer",
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			return
		}
		values := streams[0].Messages[0].Values
		messages <- entry{runID: values[FieldRunID].(string), product: values[FieldProduct].(string)}
	}()

	time.Sleep(100 * time.Millisecond)

	price := 12345.0
	err = publisher.Publish(ctx, "run-1", models.ProductRecord{ProductID: "MLA123456789", Title: "Memoria RAM", Price: &price})
	assert.NoError(t, err)

	select {
	case msg := <-messages:
		assert.Equal(t, "run-1", msg.runID)
		// The record should be base64 encoded JSON
		data, err := base64.StdEncoding.DecodeString(msg.product)
		require.NoError(t, err)
		var rec models.ProductRecord
		require.NoError(t, json.Unmarshal(data, &rec))
		assert.Equal(t, "MLA123456789", rec.ProductID)
		assert.Equal(t, 12345.0, *rec.Price)
	case <-time.After(3 * time.Second):
		t.Error("Timed out waiting for message")
	}

	assert.NoError(t, publisher.TrimStreams(ctx))
}
