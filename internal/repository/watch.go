package repository

import (
	"context"

	"github.com/matheus3301/jobboard/internal/bus"
	"go.uber.org/zap"
)

// Subscription delivers listing snapshots on C until cancelled. C is closed
// when the subscription ends.
type Subscription[T any] struct {
	C      <-chan []T
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel ends the subscription and waits for its goroutine to exit.
func (s *Subscription[T]) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed once the subscription has stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

type loadFunc[T any] func(ctx context.Context) ([]T, error)

// watch sends initial's snapshot, then a refresh snapshot after every
// change event for table. Bursts of events collapse into one refresh.
// A failed load is logged and skipped.
func watch[T any](ctx context.Context, b *bus.Bus, table string, logger *zap.Logger, initial, refresh loadFunc[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []T, 1)
	sub := &Subscription[T]{C: out, cancel: cancel, done: make(chan struct{})}

	var events <-chan bus.Event
	unsub := func() {}
	if b != nil {
		// Subscribe before the first load so no change is missed.
		events, unsub = b.Subscribe(bus.StoreNamespace(table), 64)
	}

	go func() {
		defer close(sub.done)
		defer close(out)
		defer unsub()

		send := func(load loadFunc[T]) bool {
			items, err := load(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("watch refresh failed", zap.String("table", table), zap.Error(err))
				}
				return ctx.Err() == nil
			}
			select {
			case out <- items:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(initial) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				drain(events)
				if !send(refresh) {
					return
				}
			}
		}
	}()
	return sub
}

func drain(events <-chan bus.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
