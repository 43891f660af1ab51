package updater

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paulianttila/ipmi2mqtt/internal/bus"
	"github.com/paulianttila/ipmi2mqtt/internal/ipmi"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LastUpdateTopic carries the time of the last successful cycle.
const LastUpdateTopic = "lastUpdateTime"

const lastUpdateLayout = "2006-01-02T15:04:05"

// Trigger says what started a cycle.
type Trigger int

const (
	TriggerPeriodic Trigger = iota
	TriggerManual
)

func (t Trigger) String() string {
	if t == TriggerManual {
		return "manual"
	}
	return "periodic"
}

// ErrorKind classifies why a cycle failed.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindTimeout   ErrorKind = "timeout"
	KindExecution ErrorKind = "execution"
	KindParse     ErrorKind = "parse"
	// KindCanceled the cycle was interrupted by shutdown; not a fetch failure.
	KindCanceled ErrorKind = "canceled"
)

// Outcome of one cycle.
type Outcome struct {
	Success   bool
	Kind      ErrorKind
	Published int
}

// Fetcher runs the sensor query.
type Fetcher interface {
	Fetch(ctx context.Context) (ipmi.Result, error)
}

// ValuePublisher suppresses unchanged values.
type ValuePublisher interface {
	PublishIfChanged(name string, value string) bool
	Reset()
}

// Recorder receives cycle metrics.
type Recorder interface {
	IncSuccessfulFetch()
	IncFetchError()
	IncPublishedValue()
	ObserveFetchDuration(d time.Duration)
}

// Updater runs fetch, parse and publish cycles. Cycles are serialised.
type Updater struct {
	mu sync.Mutex

	fetcher   Fetcher
	publisher ValuePublisher
	bus       bus.Publisher
	metrics   Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an Updater; the publisher and bus must be the same sink pair
// the service publishes through.
func New(fetcher Fetcher, publisher ValuePublisher, b bus.Publisher, metrics Recorder, logger *zap.Logger) *Updater {
	return &Updater{
		fetcher:   fetcher,
		publisher: publisher,
		bus:       b,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Update runs one cycle. Failures are counted and logged, never returned:
// a failed cycle publishes nothing and the next trigger starts afresh.
func (u *Updater) Update(ctx context.Context, trigger Trigger) Outcome {
	u.mu.Lock()
	defer u.mu.Unlock()

	logger := u.logger.With(
		zap.String("cycle_id", uuid.NewString()),
		zap.Stringer("trigger", trigger),
	)
	logger.Debug("Update called")

	if trigger == TriggerManual {
		u.publisher.Reset()
	}

	result, err := u.fetcher.Fetch(ctx)
	if err != nil && ctx.Err() != nil {
		logger.Info("Update interrupted by shutdown", zap.Error(err))
		return Outcome{Kind: KindCanceled}
	}
	u.metrics.ObserveFetchDuration(result.Duration)
	if err != nil {
		return u.fail(logger, classify(err), err)
	}
	if result.ExitCode != 0 {
		logger.Error("Failed to fetch sensor readings",
			zap.String("kind", string(KindExecution)),
			zap.Int("exit_code", result.ExitCode),
		)
		u.metrics.IncFetchError()
		return Outcome{Kind: KindExecution}
	}

	readings, err := ipmi.Parse(result.Output)
	if err != nil {
		return u.fail(logger, KindParse, err)
	}

	published := 0
	for _, name := range readings.Names() {
		if u.publisher.PublishIfChanged(name, readings[name]) {
			published++
			u.metrics.IncPublishedValue()
		}
	}

	u.metrics.IncSuccessfulFetch()
	if err := u.bus.Publish(LastUpdateTopic, u.now().Format(lastUpdateLayout), true); err != nil {
		logger.Warn("Failed to publish last update time", zap.Error(err))
	}

	logger.Debug("Update done",
		zap.Int("sensors", len(readings)),
		zap.Int("published", published),
	)
	return Outcome{Success: true, Published: published}
}

func (u *Updater) fail(logger *zap.Logger, kind ErrorKind, err error) Outcome {
	logger.Error("Failed to fetch sensor readings",
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	u.metrics.IncFetchError()
	return Outcome{Kind: kind}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ipmi.ErrTimeout):
		return KindTimeout
	case errors.Is(err, ipmi.ErrParse):
		return KindParse
	default:
		return KindExecution
	}
}
