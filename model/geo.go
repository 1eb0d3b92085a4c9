package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate indicates a latitude or longitude outside its valid range.
var ErrInvalidCoordinate = errors.New("invalid geographic coordinate")

// GeoCoordinate is a latitude/longitude pair in degrees.
// Latitude lies in [-90, 90] and longitude in [-180, 180].
type GeoCoordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewGeoCoordinate validates lat/lon and returns the coordinate.
func NewGeoCoordinate(lat, lon float64) (GeoCoordinate, error) {
	c := GeoCoordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return GeoCoordinate{}, err
	}
	return c, nil
}

// Validate reports whether the coordinate is finite and inside range.
func (c GeoCoordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("%w: non-finite (%v, %v)", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

// String renders the coordinate with four decimals, matching the host overlay.
func (c GeoCoordinate) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", c.Lat, c.Lon)
}

// Normalized clamps latitude into [-90, 90] and wraps longitude into [-180, 180].
func (c GeoCoordinate) Normalized() GeoCoordinate {
	lat := math.Max(-90, math.Min(90, c.Lat))
	lon := c.Lon
	if lon < -180 || lon > 180 {
		lon = math.Mod(lon+180, 360)
		if lon < 0 {
			lon += 360
		}
		lon -= 180
	}
	return GeoCoordinate{Lat: lat, Lon: lon}
}
