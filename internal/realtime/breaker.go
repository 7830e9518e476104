package realtime

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerTransport stops calling a failing broker for a cool-down period so a
// dead broker costs one fast error per publish instead of a timeout.
type BreakerTransport struct {
	next Transport
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerTransport(next Transport, logger *zap.Logger) *BreakerTransport {
	st := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("transport breaker state",
				zap.String("transport", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerTransport{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (t *BreakerTransport) Name() string { return t.next.Name() }

func (t *BreakerTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := t.cb.Execute(func() (interface{}, error) {
		return nil, t.next.Publish(ctx, channel, payload)
	})
	return err
}

func (t *BreakerTransport) State() gobreaker.State { return t.cb.State() }
