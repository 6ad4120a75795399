package journal

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// MemorySink keeps records in memory
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink creates an empty memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write appends r
func (m *MemorySink) Write(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

// Records returns a copy of the recorded entries
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// RedisConfig holds the Redis stream sink configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Stream is the key of the stream records are appended to
	Stream string
	// MaxLen caps the stream length approximately; 0 keeps everything
	MaxLen int64
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Stream: "modelgraph:changes",
	}
}

// RedisSink appends records to a Redis stream with XADD
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisSink connects to Redis and checks the connection
func NewRedisSink(ctx context.Context, config RedisConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", config.Addr)
	}
	return NewRedisSinkWithClient(client, config), nil
}

// NewRedisSinkWithClient creates a sink on an existing client
func NewRedisSinkWithClient(client *redis.Client, config RedisConfig) *RedisSink {
	return &RedisSink{client: client, stream: config.Stream, maxLen: config.MaxLen}
}

// Write appends r to the stream
func (s *RedisSink) Write(ctx context.Context, r Record) error {
	old, err := json.Marshal(r.Old)
	if err != nil {
		return errors.Wrap(err, "failed to encode old value")
	}
	value, err := json.Marshal(r.New)
	if err != nil {
		return errors.Wrap(err, "failed to encode new value")
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"seq":        r.Sequence,
			"time":       r.Time.UTC().Format(time.RFC3339Nano),
			"kind":       string(r.Kind),
			"element":    r.Element,
			"element_id": r.ElementID,
			"type":       r.Type,
			"feature":    r.Feature,
			"old":        string(old),
			"new":        string(value),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Err()
}

// Replay reads the stream back from the beginning
func (s *RedisSink) Replay(ctx context.Context) ([]Record, error) {
	msgs, err := s.client.XRange(ctx, s.stream, "-", "+").Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read stream %s", s.stream)
	}
	records := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		r, err := decodeMessage(msg.Values)
		if err != nil {
			return nil, errors.Wrapf(err, "stream entry %s", msg.ID)
		}
		records = append(records, r)
	}
	return records, nil
}

// Close closes the Redis client
func (s *RedisSink) Close() error {
	return s.client.Close()
}

func decodeMessage(values map[string]any) (Record, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	var r Record
	seq, err := strconv.ParseUint(str("seq"), 10, 64)
	if err != nil {
		return r, errors.Wrap(err, "invalid sequence")
	}
	r.Sequence = seq
	if r.Time, err = time.Parse(time.RFC3339Nano, str("time")); err != nil {
		return r, errors.Wrap(err, "invalid time")
	}
	r.Kind = Kind(str("kind"))
	r.Element = str("element")
	r.ElementID = str("element_id")
	r.Type = str("type")
	r.Feature = str("feature")
	if err := json.Unmarshal([]byte(str("old")), &r.Old); err != nil {
		return r, errors.Wrap(err, "invalid old value")
	}
	if err := json.Unmarshal([]byte(str("new")), &r.New); err != nil {
		return r, errors.Wrap(err, "invalid new value")
	}
	return r, nil
}
