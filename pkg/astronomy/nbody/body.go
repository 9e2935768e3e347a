package nbody

import (
	"math"

	astromath "github.com/emilyst/many-body-simulation/pkg/astronomy/math"
)

// Body represents a point mass in the simulation. Position and velocity
// are mutated in place by the integrator every step; mass and radius are
// fixed for the body's lifetime. Radius and Temperature carry no physics:
// they exist for the rendering layer's sizing and coloring.
type Body struct {
	ID          int               `json:"id"`
	Mass        float64           `json:"mass"`
	Radius      float64           `json:"radius"`
	Temperature float64           `json:"temperature"`
	Position    astromath.Vector3 `json:"position"`
	Velocity    astromath.Vector3 `json:"velocity"`
}

// IsFinite reports whether the body can safely enter a simulation step.
func (b *Body) IsFinite() bool {
	return b.Position.IsFinite() && b.Velocity.IsFinite() &&
		!math.IsNaN(b.Mass) && !math.IsInf(b.Mass, 0) && b.Mass > 0
}
