package nbody

import (
	"fmt"

	astromath "github.com/emilyst/many-body-simulation/pkg/astronomy/math"
	"github.com/emilyst/many-body-simulation/pkg/astronomy/rng"
)

// GenerationConfig describes the initial population: how many bodies, the
// spherical shell they are scattered over, the minimum pairwise distance
// between them, and the ranges their masses and radii are drawn from.
type GenerationConfig struct {
	Count          int
	ShellRadiusMin float64
	ShellRadiusMax float64
	MinSeparation  float64
	MassMin        float64
	MassMax        float64
	RadiusMin      float64
	RadiusMax      float64
	TemperatureMin float64
	TemperatureMax float64
	MaxAttempts    int // placement retries per body before giving up
}

// GenerationError reports a placement that could not satisfy the
// minimum-separation constraint within the retry budget. The caller may
// relax the constraint or enlarge the shell and try again.
type GenerationError struct {
	BodyIndex int
	Attempts  int
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: could not place body %d within %d attempts; relax min_separation or enlarge the shell",
		e.BodyIndex, e.Attempts)
}

// Generate produces the initial body population. Positions are drawn on a
// spherical shell: a direction from three normal draws, normalized, scaled
// by a uniform radius in [ShellRadiusMin, ShellRadiusMax). A candidate
// closer than MinSeparation to any accepted body is redrawn, up to
// MaxAttempts times. Mass is uniform in its range; radius and temperature
// are mapped from the mass fraction so heavier bodies render larger and
// hotter. All randomness flows through the given stream, so equal seeds
// reproduce equal populations bit-for-bit.
func Generate(cfg GenerationConfig, stream *rng.Stream) ([]Body, error) {
	bodies := make([]Body, 0, cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		pos, err := placeBody(cfg, stream, bodies, i)
		if err != nil {
			return nil, err
		}

		mass := stream.InRange(cfg.MassMin, cfg.MassMax)
		frac := 0.0
		if cfg.MassMax > cfg.MassMin {
			frac = (mass - cfg.MassMin) / (cfg.MassMax - cfg.MassMin)
		}

		bodies = append(bodies, Body{
			ID:          i,
			Mass:        mass,
			Radius:      cfg.RadiusMin + frac*(cfg.RadiusMax-cfg.RadiusMin),
			Temperature: cfg.TemperatureMin + frac*(cfg.TemperatureMax-cfg.TemperatureMin),
			Position:    pos,
		})
	}

	return bodies, nil
}

func placeBody(cfg GenerationConfig, stream *rng.Stream, accepted []Body, index int) (astromath.Vector3, error) {
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		dir := astromath.Vector3{
			X: stream.NormFloat64(),
			Y: stream.NormFloat64(),
			Z: stream.NormFloat64(),
		}
		if dir.IsZero() {
			continue
		}

		pos := dir.Normalize().Scale(stream.InRange(cfg.ShellRadiusMin, cfg.ShellRadiusMax))
		if separated(pos, accepted, cfg.MinSeparation) {
			return pos, nil
		}
	}
	return astromath.Vector3{}, &GenerationError{BodyIndex: index, Attempts: cfg.MaxAttempts}
}

func separated(pos astromath.Vector3, accepted []Body, minSeparation float64) bool {
	if minSeparation <= 0 {
		return true
	}
	minSq := minSeparation * minSeparation
	for i := range accepted {
		if pos.Sub(accepted[i].Position).MagnitudeSquared() < minSq {
			return false
		}
	}
	return true
}
