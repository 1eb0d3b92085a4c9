package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the read side of the scheduler. Components that only need the
// current frame time depend on this rather than on the scheduler.
type Clock interface {
	// Now returns the time of the most recent frame.
	Now() time.Time
}

// Tick describes one frame.
type Tick struct {
	Seq   uint64
	Time  time.Time
	Delta time.Duration // zero on the first frame
}

// RefreshSource delivers the display refresh signal. The channel is
// closed when the source stops.
type RefreshSource interface {
	Frames(ctx context.Context) <-chan time.Time
}

// TickerSource is a RefreshSource backed by a wall-clock ticker.
type TickerSource struct {
	Interval time.Duration
}

// Frames implements RefreshSource.
func (s TickerSource) Frames(ctx context.Context) <-chan time.Time {
	out := make(chan time.Time)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				select {
				case out <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// FrameScheduler drives the per-frame loop. Listeners run in registration
// order on the scheduling goroutine; a frame never starts before the
// previous one has finished.
type FrameScheduler struct {
	mu        sync.Mutex
	source    RefreshSource
	listeners []func(Tick)

	seq  uint64
	last time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewFrameScheduler constructs a scheduler fed by source.
func NewFrameScheduler(source RefreshSource) *FrameScheduler {
	return &FrameScheduler{
		source: source,
		stop:   make(chan struct{}),
	}
}

// AddListener registers a callback invoked on every frame.
func (s *FrameScheduler) AddListener(fn func(Tick)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Now returns the time of the most recent frame. Implements Clock.
func (s *FrameScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Frames returns the number of frames stepped so far.
func (s *FrameScheduler) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Step runs one frame at the given time. It is exported so hosts and
// tests can drive the loop deterministically without a refresh source.
func (s *FrameScheduler) Step(now time.Time) Tick {
	s.mu.Lock()
	var delta time.Duration
	if s.seq > 0 && now.After(s.last) {
		delta = now.Sub(s.last)
	}
	s.seq++
	s.last = now
	tick := Tick{Seq: s.seq, Time: now, Delta: delta}
	listeners := make([]func(Tick), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(tick)
	}
	return tick
}

// Start consumes the refresh source in a separate goroutine until ctx is
// cancelled, Stop is called, or the source closes. It returns a channel
// that is closed when the loop exits.
func (s *FrameScheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(ctx)
	frames := s.source.Frames(ctx)
	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case t, ok := <-frames:
				if !ok {
					return
				}
				s.Step(t)
			}
		}
	}()
	return done
}

// Stop ends a running loop. It is safe to call more than once.
func (s *FrameScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
