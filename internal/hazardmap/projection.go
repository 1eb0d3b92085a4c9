package hazardmap

import (
	"math"

	"github.com/signalsfoundry/impact-globe/model"
)

// Projection is an equirectangular mapping between a viewport of
// Width x Height pixels and the whole globe. Pixel (0, 0) is the
// north-west corner.
type Projection struct {
	Width  int
	Height int
}

// ToGeo converts a viewport pixel to a coordinate. Pixels outside the
// viewport are clamped onto its edge.
func (p Projection) ToGeo(x, y float64) model.GeoCoordinate {
	if p.Width <= 0 || p.Height <= 0 {
		return model.GeoCoordinate{}
	}
	x = math.Max(0, math.Min(float64(p.Width), x))
	y = math.Max(0, math.Min(float64(p.Height), y))
	return model.GeoCoordinate{
		Lat: 90 - y/float64(p.Height)*180,
		Lon: x/float64(p.Width)*360 - 180,
	}
}

// ToPixel converts a coordinate to viewport pixels.
func (p Projection) ToPixel(c model.GeoCoordinate) (x, y float64) {
	c = c.Normalized()
	x = (c.Lon + 180) / 360 * float64(p.Width)
	y = (90 - c.Lat) / 180 * float64(p.Height)
	return x, y
}
