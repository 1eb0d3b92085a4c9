package surface

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/impact-globe/scene"
)

// Outbound message types.
const (
	MsgFrame   = "frame"
	MsgStatic  = "static"
	MsgRelease = "release"
	MsgPicked  = "picked"
	MsgError   = "error"
)

type vec3 [3]float64

func toVec3(v r3.Vec) vec3 { return vec3{v.X, v.Y, v.Z} }

type wireCamera struct {
	Position vec3    `json:"position"`
	Target   vec3    `json:"target"`
	FOV      float64 `json:"fov"`
	Near     float64 `json:"near"`
	Far      float64 `json:"far"`
}

type wireEntity struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Position    vec3       `json:"position"`
	Orientation [4]float64 `json:"orientation"` // w, x, y, z
	Scale       float64    `json:"scale"`
	Visible     bool       `json:"visible"`

	Color       string  `json:"color"`
	Emissive    string  `json:"emissive,omitempty"`
	Opacity     float64 `json:"opacity"`
	Transparent bool    `json:"transparent,omitempty"`
	Side        int     `json:"side,omitempty"`
	Texture     string  `json:"texture,omitempty"`
	Procedural  bool    `json:"procedural,omitempty"`

	Radius   float64 `json:"radius,omitempty"`
	Inner    float64 `json:"inner,omitempty"`
	Segments int     `json:"segments,omitempty"`
	Size     float64 `json:"size,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Vertices []vec3  `json:"vertices,omitempty"`
}

type wireFrame struct {
	Type       string       `json:"type"`
	Seq        uint64       `json:"seq"`
	TimeMillis int64        `json:"t"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Background string       `json:"background"`
	Degraded   bool         `json:"degraded"`
	Occluded   bool         `json:"impact_occluded,omitempty"`
	Camera     wireCamera   `json:"camera"`
	Entities   []wireEntity `json:"entities"`
}

// wireStatic carries data too large to resend every frame.
type wireStatic struct {
	Type   string  `json:"type"`
	ID     string  `json:"id"`
	Size   float64 `json:"size"`
	Points []vec3  `json:"points"`
}

type wireRelease struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type wirePicked struct {
	Type string  `json:"type"`
	Hit  bool    `json:"hit"`
	Lat  float64 `json:"lat,omitempty"`
	Lon  float64 `json:"lon,omitempty"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func hexColor(c uint32) string {
	return fmt.Sprintf("#%06x", c&0xffffff)
}

// EncodeFrame renders f as the JSON frame message. Star field points are
// not included; see EncodeStatic.
func EncodeFrame(f Frame) ([]byte, error) {
	out := wireFrame{
		Type:       MsgFrame,
		Seq:        f.Seq,
		TimeMillis: f.Time.UnixMilli(),
		Width:      f.Width,
		Height:     f.Height,
		Background: hexColor(f.Background),
		Degraded:   f.Degraded,
		Occluded:   f.ImpactOccluded,
		Camera: wireCamera{
			Position: toVec3(f.Camera.Position),
			Target:   toVec3(f.Camera.Target),
			FOV:      f.Camera.FOVDegrees,
			Near:     f.Camera.Near,
			Far:      f.Camera.Far,
		},
		Entities: make([]wireEntity, 0, len(f.Entities)),
	}
	for i := range f.Entities {
		out.Entities = append(out.Entities, encodeEntity(&f.Entities[i]))
	}
	return json.Marshal(out)
}

func encodeEntity(e *scene.Entity) wireEntity {
	q := quat.Number(e.Orientation)
	w := wireEntity{
		ID:          e.ID.String(),
		Kind:        e.Kind.String(),
		Position:    toVec3(e.Position),
		Orientation: [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
		Scale:       e.Scale,
		Visible:     e.Visible,
		Color:       hexColor(e.Material.Color),
		Opacity:     e.Material.Opacity,
		Transparent: e.Material.Transparent,
		Side:        int(e.Material.Side),
		Texture:     e.Material.Texture,
		Procedural:  e.Material.Procedural,
	}
	if e.Material.Emissive != 0 {
		w.Emissive = hexColor(e.Material.Emissive)
	}
	switch e.Kind {
	case scene.KindPlanet:
		w.Radius = e.Planet.Radius
		w.Segments = e.Planet.Segments
	case scene.KindStarField:
		w.Size = e.Stars.Size
	case scene.KindAtmosphereShell:
		w.Radius = e.Atmosphere.Radius
		w.Segments = e.Atmosphere.Segments
	case scene.KindImpactMarker:
		w.Size = e.Marker.Size
		w.Segments = e.Marker.Segments
	case scene.KindGlowPulse:
		w.Size = e.Pulse.Size
	case scene.KindCraterRing:
		w.Radius = e.Crater.OuterRadius
		w.Inner = e.Crater.InnerRadius
		w.Segments = e.Crater.Segments
	case scene.KindTrajectoryPath:
		w.Width = e.Path.Width
		w.Vertices = make([]vec3, len(e.Path.Vertices))
		for i, v := range e.Path.Vertices {
			w.Vertices[i] = toVec3(v)
		}
	case scene.KindMovingBody:
		w.Size = e.Body.Size
		w.Segments = e.Body.Segments
		w.Progress = e.Body.Progress
	}
	return w
}

// EncodeStatic renders the star field points of e.
func EncodeStatic(e *scene.Entity) ([]byte, error) {
	if e.Kind != scene.KindStarField || e.Stars == nil {
		return nil, fmt.Errorf("static payload requires a star field, got %v", e.Kind)
	}
	pts := make([]vec3, len(e.Stars.Points))
	for i, p := range e.Stars.Points {
		pts[i] = toVec3(p)
	}
	return json.Marshal(wireStatic{Type: MsgStatic, ID: e.ID.String(), Size: e.Stars.Size, Points: pts})
}

func encodeRelease(id uuid.UUID) []byte {
	data, _ := json.Marshal(wireRelease{Type: MsgRelease, ID: id.String()})
	return data
}

func encodeError(msg string) []byte {
	data, _ := json.Marshal(wireError{Type: MsgError, Message: msg})
	return data
}

// Inbound message types.
const (
	InPointer = "pointer"
	InResize  = "resize"
	InOrbit   = "orbit"
	InZoom    = "zoom"
)

// InputMessage is a validated inbound client message.
type InputMessage struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	Factor float64 `json:"factor"`
}

const inputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type"],
  "oneOf": [
    {
      "properties": {
        "type": {"enum": ["pointer"]},
        "x": {"type": "number"},
        "y": {"type": "number"}
      },
      "required": ["type", "x", "y"]
    },
    {
      "properties": {
        "type": {"enum": ["resize"]},
        "width": {"type": "integer", "minimum": 1, "maximum": 16384},
        "height": {"type": "integer", "minimum": 1, "maximum": 16384}
      },
      "required": ["type", "width", "height"]
    },
    {
      "properties": {
        "type": {"enum": ["orbit"]},
        "dx": {"type": "number", "minimum": -6.3, "maximum": 6.3},
        "dy": {"type": "number", "minimum": -3.2, "maximum": 3.2}
      },
      "required": ["type", "dx", "dy"]
    },
    {
      "properties": {
        "type": {"enum": ["zoom"]},
        "factor": {"type": "number", "exclusiveMinimum": 0, "maximum": 100}
      },
      "required": ["type", "factor"]
    }
  ]
}`

// InputValidator checks inbound messages against the input schema.
type InputValidator struct {
	schema *gojsonschema.Schema
}

// NewInputValidator compiles the input schema.
func NewInputValidator() (*InputValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(inputSchema))
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return &InputValidator{schema: schema}, nil
}

// Decode validates raw JSON and decodes it.
func (v *InputValidator) Decode(data []byte) (InputMessage, error) {
	var msg InputMessage
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return msg, fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return msg, fmt.Errorf("validation failed: %v", errs)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode: %w", err)
	}
	return msg, nil
}

func encodePicked(hit bool, lat, lon float64) []byte {
	msg := wirePicked{Type: MsgPicked, Hit: hit}
	if hit {
		msg.Lat, msg.Lon = lat, lon
	}
	data, _ := json.Marshal(msg)
	return data
}
