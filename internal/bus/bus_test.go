package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	topics []string
	err    error
}

func (r *recordingPublisher) Publish(topic string, value string, retained bool) error {
	r.topics = append(r.topics, topic+"="+value)
	return r.err
}

func TestFanout_PublishesToAllAndJoinsErrors(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}

	err := Fanout{failing, ok}.Publish("Fan_1", "3000_RPM", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, []string{"Fan_1=3000_RPM"}, failing.topics)
	assert.Equal(t, []string{"Fan_1=3000_RPM"}, ok.topics)
}

func TestStream_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewStream(client, "ipmi2mqtt:sensors")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, s.Publish("lastUpdateTime", "2023-11-14T22:13:20", true))

	msgs, err := client.XRange(context.Background(), "ipmi2mqtt:sensors", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "lastUpdateTime", msgs[0].Values["topic"])
	assert.Equal(t, "2023-11-14T22:13:20", msgs[0].Values["value"])
	assert.Equal(t, "true", msgs[0].Values["retained"])
	assert.Equal(t, "1700000000", msgs[0].Values["timestamp"])
}

func TestStream_PublishFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewStream(client, "ipmi2mqtt:sensors").Publish("Fan_1", "3000_RPM", false)
	assert.Error(t, err)
}
