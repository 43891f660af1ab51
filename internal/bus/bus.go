// Package bus defines the publication boundary of the service and the
// sinks behind it. *mqtt.Client satisfies Publisher directly.
package bus

import (
	"context"
	"errors"
	"time"

	rediscommon "github.com/paulianttila/ipmi2mqtt/internal/redis"

	"github.com/go-redis/redis/v8"
)

// Publisher hands one value to the message bus. Topics are suffixes; the
// sink decides how to qualify them.
type Publisher interface {
	Publish(topic string, value string, retained bool) error
}

// Fanout publishes to every sink in order and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(topic string, value string, retained bool) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(topic, value, retained); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const (
	defaultStreamMaxLen  = 10000
	streamPublishTimeout = 2 * time.Second
)

// Stream mirrors publications into a Redis Stream, one entry per publish.
type Stream struct {
	client *redis.Client
	stream string
	maxLen int64
	now    func() time.Time
}

// NewStream creates a Redis Stream sink capped at roughly 10000 entries.
func NewStream(client *redis.Client, stream string) *Stream {
	return &Stream{
		client: client,
		stream: stream,
		maxLen: defaultStreamMaxLen,
		now:    time.Now,
	}
}

func (s *Stream) Publish(topic string, value string, retained bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), streamPublishTimeout)
	defer cancel()

	_, err := rediscommon.PublishToStream(ctx, s.client, s.stream, s.maxLen, map[string]interface{}{
		"topic":     topic,
		"value":     value,
		"retained":  retained,
		"timestamp": s.now().Unix(),
	})
	return err
}
