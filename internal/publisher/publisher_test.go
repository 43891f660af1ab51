package publisher

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type publication struct {
	topic    string
	value    string
	retained bool
}

type fakeBus struct {
	published []publication
	err       error
}

func (f *fakeBus) Publish(topic string, value string, retained bool) error {
	f.published = append(f.published, publication{topic, value, retained})
	return f.err
}

func TestPublishIfChanged_FirstValuePublished(t *testing.T) {
	b := &fakeBus{}
	p := New(b, 256, time.Minute, zap.NewNop())

	assert.True(t, p.PublishIfChanged("CPU_Temp", "45.00"))
	assert.Equal(t, []publication{{"CPU_Temp", "45.00", false}}, b.published)
}

func TestPublishIfChanged_SameValueSuppressed(t *testing.T) {
	b := &fakeBus{}
	p := New(b, 256, time.Minute, zap.NewNop())

	p.PublishIfChanged("CPU_Temp", "45.00")
	assert.False(t, p.PublishIfChanged("CPU_Temp", "45.00"))
	assert.Len(t, b.published, 1)
}

func TestPublishIfChanged_DifferentValuePublished(t *testing.T) {
	b := &fakeBus{}
	p := New(b, 256, time.Minute, zap.NewNop())

	p.PublishIfChanged("CPU_Temp", "45.00")
	assert.True(t, p.PublishIfChanged("CPU_Temp", "46.00"))
	assert.False(t, p.PublishIfChanged("CPU_Temp", "46.00"))
	assert.Equal(t, "46.00", b.published[len(b.published)-1].value)
	assert.Len(t, b.published, 2)
}

func TestPublishIfChanged_ExpiredEntryRepublished(t *testing.T) {
	b := &fakeBus{}
	p := New(b, 256, 50*time.Millisecond, zap.NewNop())

	p.PublishIfChanged("Fan_1", "3000_RPM")
	time.Sleep(120 * time.Millisecond)

	assert.True(t, p.PublishIfChanged("Fan_1", "3000_RPM"))
	assert.Len(t, b.published, 2)
}

func TestPublishIfChanged_SkipDoesNotRefreshTTL(t *testing.T) {
	b := &fakeBus{}
	p := New(b, 256, 150*time.Millisecond, zap.NewNop())

	p.PublishIfChanged("Fan_1", "3000_RPM")
	time.Sleep(80 * time.Millisecond)
	assert.False(t, p.PublishIfChanged("Fan_1", "3000_RPM"))
	time.Sleep(120 * time.Millisecond)

	// 200ms after the publish: a refresh on the skip would still be live.
	assert.True(t, p.PublishIfChanged("Fan_1", "3000_RPM"))
}

func TestReset_ForcesRepublish(t *testing.T) {
	b := &fakeBus{}
	p := New(b, 256, time.Minute, zap.NewNop())

	p.PublishIfChanged("A", "10")
	p.PublishIfChanged("B", "20")
	p.Reset()
	assert.Equal(t, 0, p.Len())

	assert.True(t, p.PublishIfChanged("A", "10"))
	assert.True(t, p.PublishIfChanged("B", "20"))
	assert.Len(t, b.published, 4)
}

func TestPublishIfChanged_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	b := &fakeBus{}
	p := New(b, 2, time.Minute, zap.NewNop())

	p.PublishIfChanged("A", "1")
	p.PublishIfChanged("B", "2")
	// touch A so B becomes the least recently used
	assert.False(t, p.PublishIfChanged("A", "1"))
	p.PublishIfChanged("C", "3")

	assert.Equal(t, 2, p.Len())
	assert.False(t, p.PublishIfChanged("A", "1"))
	assert.True(t, p.PublishIfChanged("B", "2"), "evicted entry must be republished")
}

func TestPublishIfChanged_BusErrorStillCaches(t *testing.T) {
	b := &fakeBus{err: errors.New("not connected")}
	p := New(b, 256, time.Minute, zap.NewNop())

	assert.True(t, p.PublishIfChanged("A", "1"))
	assert.False(t, p.PublishIfChanged("A", "1"))
	assert.Len(t, b.published, 1)
}
