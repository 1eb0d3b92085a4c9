package model

// SourceKind records which strategy produced a trajectory.
type SourceKind int

const (
	SourceHeuristic SourceKind = iota
	SourceOrbital
)

func (k SourceKind) String() string {
	switch k {
	case SourceOrbital:
		return "orbital"
	case SourceHeuristic:
		return "heuristic"
	default:
		return "unknown"
	}
}

// TrajectoryPoint is one sample of an approach path. Altitude is in scene
// units (not metres); CumulativeDistance is the path length from the
// first sample.
type TrajectoryPoint struct {
	Lat                float64
	Lon                float64
	Altitude           float64
	CumulativeDistance float64
}

// Trajectory is an ordered approach path from deep space (index 0) to the
// impact point (last index). Trajectories are regenerated wholesale and
// never mutated after construction.
type Trajectory struct {
	Points []TrajectoryPoint
	Source SourceKind

	// Elements holds the orbital elements the path was built from, if any.
	Elements *OrbitalElements
	Impact   GeoCoordinate

	// SpeedHint scales animation rate; <= 0 means default speed.
	SpeedHint float64
	// DiameterHint sizes the moving body; <= 0 means default diameter.
	DiameterHint float64
}

// Len returns the number of samples.
func (t *Trajectory) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Points)
}

// Last returns the final (impact) sample.
func (t *Trajectory) Last() TrajectoryPoint {
	return t.Points[len(t.Points)-1]
}

// TotalDistance returns the cumulative distance at the final sample.
func (t *Trajectory) TotalDistance() float64 {
	if t.Len() == 0 {
		return 0
	}
	return t.Last().CumulativeDistance
}
