package nbody

import (
	astromath "github.com/emilyst/many-body-simulation/pkg/astronomy/math"
)

// Barycenter is the mass-weighted aggregate state of the population. It is
// recomputed from scratch every step, never updated incrementally.
type Barycenter struct {
	TotalMass float64           `json:"total_mass"`
	Position  astromath.Vector3 `json:"position"`
	Velocity  astromath.Vector3 `json:"velocity"`
}

// ComputeBarycenter reduces the body list in array order. Zero bodies or
// zero total mass yield the zero value: downstream camera-following logic
// always needs a valid target, so the degenerate case is the origin at
// rest rather than an error.
func ComputeBarycenter(bodies []Body) Barycenter {
	var bc Barycenter
	var weightedPos, weightedVel astromath.Vector3

	for i := range bodies {
		b := &bodies[i]
		if !b.IsFinite() {
			continue
		}
		bc.TotalMass += b.Mass
		weightedPos = weightedPos.Add(b.Position.Scale(b.Mass))
		weightedVel = weightedVel.Add(b.Velocity.Scale(b.Mass))
	}

	if bc.TotalMass > 0 {
		bc.Position = weightedPos.Scale(1 / bc.TotalMass)
		bc.Velocity = weightedVel.Scale(1 / bc.TotalMass)
	}
	return bc
}
