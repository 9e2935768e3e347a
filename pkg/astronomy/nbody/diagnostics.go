package nbody

import (
	"gonum.org/v1/gonum/stat"

	"github.com/emilyst/many-body-simulation/pkg/astronomy/octree"
)

// Diagnostics is the per-step aggregate view handed to the HUD and
// metrics layers.
type Diagnostics struct {
	StepIndex     uint64       `json:"step_index"`
	BodyCount     int          `json:"body_count"`
	ExcludedTotal uint64       `json:"excluded_total"`
	Barycenter    Barycenter   `json:"barycenter"`
	MeanSpeed     float64      `json:"mean_speed"`
	SpeedStdDev   float64      `json:"speed_std_dev"`
	MeanMass      float64      `json:"mean_mass"`
	MassStdDev    float64      `json:"mass_std_dev"`
	KineticEnergy float64      `json:"kinetic_energy"`
	Tree          octree.Stats `json:"tree"`
}

// Diagnostics computes population statistics for the current state.
func (s *System) Diagnostics() Diagnostics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := Diagnostics{
		StepIndex:     s.stepIndex,
		BodyCount:     len(s.bodies),
		ExcludedTotal: s.excluded,
		Barycenter:    s.barycenter,
		Tree:          s.tree.Stats(),
	}
	if len(s.bodies) == 0 {
		return d
	}

	speeds := make([]float64, 0, len(s.bodies))
	masses := make([]float64, 0, len(s.bodies))
	for i := range s.bodies {
		b := &s.bodies[i]
		if !b.IsFinite() {
			continue
		}
		speed := b.Velocity.Magnitude()
		speeds = append(speeds, speed)
		masses = append(masses, b.Mass)
		d.KineticEnergy += 0.5 * b.Mass * speed * speed
	}
	if len(speeds) == 0 {
		return d
	}

	d.MeanSpeed = stat.Mean(speeds, nil)
	d.MeanMass = stat.Mean(masses, nil)
	if len(speeds) > 1 {
		d.SpeedStdDev = stat.StdDev(speeds, nil)
		d.MassStdDev = stat.StdDev(masses, nil)
	}
	return d
}
