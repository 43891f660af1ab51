package publisher

import (
	"time"

	"github.com/paulianttila/ipmi2mqtt/internal/bus"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Publisher publishes sensor values only when they differ from the last
// published value still held in its cache. Entries age out after the TTL
// counted from the last publish; skipped values do not extend it.
type Publisher struct {
	bus    bus.Publisher
	cache  *expirable.LRU[string, string]
	logger *zap.Logger
}

// New creates a Publisher holding at most size entries for ttl each.
// A non-positive ttl keeps entries until evicted or reset.
func New(b bus.Publisher, size int, ttl time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{
		bus:    b,
		cache:  expirable.NewLRU[string, string](size, nil, ttl),
		logger: logger,
	}
}

// PublishIfChanged publishes value under name unless the cache holds the
// same value, and reports whether it published.
func (p *Publisher) PublishIfChanged(name string, value string) bool {
	previous, ok := p.cache.Get(name)
	if !ok {
		p.logger.Debug("No cached value", zap.String("sensor", name))
	} else if previous == value {
		p.logger.Debug("Skip update because of same value",
			zap.String("sensor", name),
			zap.String("value", value),
		)
		return false
	}

	p.logger.Info("Sensor value", zap.String("sensor", name), zap.String("value", value))
	if err := p.bus.Publish(name, value, false); err != nil {
		p.logger.Warn("Failed to publish sensor value",
			zap.String("sensor", name),
			zap.Error(err),
		)
	}
	p.cache.Add(name, value)
	return true
}

// Reset forgets every published value so the next cycle republishes all sensors.
func (p *Publisher) Reset() {
	p.cache.Purge()
}

// Len returns the number of cached values, expired ones included until swept.
func (p *Publisher) Len() int {
	return p.cache.Len()
}
