package emitter

import (
	"context"
	"sync"
)

// RunFunc is the body of a subscription. It reports through the emitter and
// must emit exactly one terminal event unless ctx is cancelled first.
type RunFunc func(ctx context.Context, e *Emitter)

// Subscription is an event stream backed by a running flow. Register
// listeners with On before calling Start.
type Subscription struct {
	*Emitter

	run    RunFunc
	once   sync.Once
	done   chan struct{}
	cancel context.CancelFunc
}

func NewSubscription(run RunFunc) *Subscription {
	return &Subscription{
		Emitter: New(),
		run:     run,
		done:    make(chan struct{}),
	}
}

// Failed returns a subscription whose only event is err.
func Failed(err error) *Subscription {
	return NewSubscription(func(ctx context.Context, e *Emitter) {
		e.Fail(err)
	})
}

// Start runs the flow in its own goroutine. Calling Start more than once
// has no effect.
func (s *Subscription) Start(ctx context.Context) *Subscription {
	s.once.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)

		go func() {
			defer close(s.done)
			defer s.cancel()

			s.run(ctx, s.Emitter)
		}()
	})

	return s
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the flow has returned.
func (s *Subscription) Wait() {
	<-s.done
}

// Stop cancels the flow and waits for it to return.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		close(s.done)
	})

	if s.cancel != nil {
		s.cancel()
	}

	<-s.done
}
