package redis

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// PublishToStream appends values to stream with XADD. maxLen > 0 caps the
// stream length approximately (MAXLEN ~).
func PublishToStream(ctx context.Context, client *redis.Client, stream string, maxLen int64, values map[string]interface{}) (string, error) {
	streamValues := make(map[string]interface{}, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			streamValues[k] = val
		case bool:
			streamValues[k] = strconv.FormatBool(val)
		case int64:
			streamValues[k] = strconv.FormatInt(val, 10)
		default:
			streamValues[k] = v
		}
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: maxLen > 0,
		Values: streamValues,
	}).Result()
}
