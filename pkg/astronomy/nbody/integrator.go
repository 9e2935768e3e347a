package nbody

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	astromath "github.com/emilyst/many-body-simulation/pkg/astronomy/math"
	"github.com/emilyst/many-body-simulation/pkg/astronomy/octree"
)

type vec3 = astromath.Vector3

// Step advances the system by one fixed timestep: screen out degenerate
// bodies, rebuild the octree from the current positions, evaluate the
// acceleration on every body in parallel against the immutable tree, then
// apply the semi-implicit Euler update (velocity before position, in input
// array order) and recompute the barycenter. A step either completes for
// all bodies or, on a build failure, mutates nothing.
func (s *System) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.collectActive()

	if err := s.tree.Build(s.treeBodies); err != nil {
		return fmt.Errorf("step %d: %w", s.stepIndex, err)
	}

	s.computeAccelerations(active)

	// Velocity first, then position, always in array order, so every run
	// accumulates floating-point results identically.
	dt := s.cfg.Dt
	for _, i := range active {
		b := &s.bodies[i]
		b.Velocity = b.Velocity.Add(s.accels[i].Scale(dt))
		b.Position = b.Position.Add(b.Velocity.Scale(dt))
	}

	s.barycenter = ComputeBarycenter(s.bodies)
	s.stepIndex++
	return nil
}

// collectActive gathers the indices of bodies fit to enter the step and
// rebuilds the octree's input in the same pass. A body with non-finite
// position, velocity, or mass is excluded and logged; one corrupted body
// must not poison the global aggregates.
func (s *System) collectActive() []int {
	s.treeBodies = s.treeBodies[:0]
	active := make([]int, 0, len(s.bodies))
	for i := range s.bodies {
		b := &s.bodies[i]
		if !b.IsFinite() {
			s.excluded++
			log.Printf("nbody: excluding body %d from step %d: non-finite state (pos=%v vel=%v mass=%v)",
				b.ID, s.stepIndex, b.Position, b.Velocity, b.Mass)
			continue
		}
		active = append(active, i)
		s.treeBodies = append(s.treeBodies, octree.Body{
			Index:    i,
			Position: b.Position,
			Mass:     b.Mass,
		})
	}
	return active
}

// computeAccelerations fans the force evaluation out over a fixed number
// of workers. Each worker owns a contiguous chunk of the active index
// list and writes only to its own bodies' slots, and the tree is
// immutable, so worker count cannot change any result bit.
func (s *System) computeAccelerations(active []int) {
	for i := range s.accels {
		s.accels[i] = vec3{}
	}
	if len(active) == 0 {
		return
	}

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(active) {
		workers = len(active)
	}

	chunk := (len(active) + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(active) {
			end = len(active)
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(indices []int) {
			defer wg.Done()
			for _, i := range indices {
				b := &s.bodies[i]
				s.accels[i] = s.tree.AccelerationOn(octree.Body{
					Index:    i,
					Position: b.Position,
					Mass:     b.Mass,
				}, s.cfg.G)
			}
		}(active[start:end])
	}
	wg.Wait()
}
