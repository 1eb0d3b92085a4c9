package surface

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSurfaceClosed is returned when rendering into a closed surface.
var ErrSurfaceClosed = errors.New("surface closed")

// Recorder is an in-memory Surface that keeps the most recent frames.
// Headless runs and tests use it.
type Recorder struct {
	mu sync.Mutex

	// InitErr, when set, makes Init fail.
	InitErr error
	// Keep bounds the retained frames; zero keeps all.
	Keep int

	width, height int
	frames        []Frame
	rendered      uint64
	released      []uuid.UUID
	closed        bool
}

// NewRecorder returns a recorder of the given size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{width: width, height: height}
}

func (r *Recorder) Init(context.Context) error {
	return r.InitErr
}

func (r *Recorder) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// Resize changes the reported size, as a host window resize would.
func (r *Recorder) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
}

func (r *Recorder) Render(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrSurfaceClosed
	}
	r.rendered++
	r.frames = append(r.frames, f)
	if r.Keep > 0 && len(r.frames) > r.Keep {
		r.frames = append(r.frames[:0], r.frames[len(r.frames)-r.Keep:]...)
	}
	return nil
}

func (r *Recorder) Release(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, id)
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Frames returns the retained frames, oldest first.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Rendered returns the total number of frames rendered.
func (r *Recorder) Rendered() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered
}

// Last returns the most recent frame.
func (r *Recorder) Last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

// Released returns the IDs passed to Release, in order.
func (r *Recorder) Released() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.released...)
}

// Closed reports whether Close has been called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
