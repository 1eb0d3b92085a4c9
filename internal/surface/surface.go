// Package surface provides drawable regions for a rendering session: an
// in-memory recorder and a websocket hub that streams frames to browsers.
package surface

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/impact-globe/model"
	"github.com/signalsfoundry/impact-globe/scene"
)

// CameraState is the view a frame was rendered from.
type CameraState struct {
	Position   r3.Vec
	Target     r3.Vec
	FOVDegrees float64
	Near       float64
	Far        float64
}

// Frame is one rendered snapshot of the scene.
type Frame struct {
	Seq        uint64
	Time       time.Time
	Width      int
	Height     int
	Background uint32
	Degraded   bool
	// ImpactOccluded is set when the impact marker is behind the planet
	// from the camera's point of view.
	ImpactOccluded bool
	Camera         CameraState
	Entities       []scene.Entity
}

// Surface is the drawable region a session renders into.
type Surface interface {
	// Init acquires the drawing context. A failure is terminal for the
	// session.
	Init(ctx context.Context) error
	Size() (width, height int)
	Render(f Frame) error
	// Release frees resources held for a removed entity.
	Release(id uuid.UUID)
	Close() error
}

// InputHandler receives host input forwarded by interactive surfaces.
type InputHandler interface {
	PickPixel(x, y float64) (model.GeoCoordinate, bool, error)
	Resize(width, height int) error
	Orbit(dAzimuth, dElevation float64) error
	Zoom(factor float64) error
}
