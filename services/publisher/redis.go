package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"strconv"

	"github.com/redis/go-redis/v9"

	"sjsage522/meliscraper/internal/models"
	"sjsage522/meliscraper/pkg/errors"
)

const redisSource = "redis"

// Stream entry fields
const (
	FieldRunID   = "run_id"
	FieldProduct = "b64_product"
)

// RedisPublisher implements Publisher using Redis streams
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if streamCount < 1 {
		streamCount = 1
	}

	return &RedisPublisher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// Ping checks the connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return errors.NewPublisher(redisSource, "redis unreachable", err)
	}
	return nil
}

// Publish publishes a record to a Redis stream
// The JSON record is base64 encoded before publishing
func (p *RedisPublisher) Publish(ctx context.Context, runID string, rec models.ProductRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.NewPublisher(redisSource, "marshal "+rec.ProductID, err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	// with streamCount 10 the stream is one of prefix:0 ~ prefix:9
	stream := p.stream(rand.Intn(p.streamCount))

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			FieldRunID:   runID,
			FieldProduct: encoded,
		},
	}).Err()
	if err != nil {
		return errors.NewPublisher(redisSource, "xadd "+stream, err)
	}
	return nil
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}
	for i := 0; i < p.streamCount; i++ {
		stream := p.stream(i)
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return errors.NewPublisher(redisSource, "xtrim "+stream, err)
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) stream(i int) string {
	return p.streamPrefix + ":" + strconv.Itoa(i)
}
