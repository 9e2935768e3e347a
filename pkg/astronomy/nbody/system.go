package nbody

import (
	"fmt"
	"sync"

	"github.com/emilyst/many-body-simulation/pkg/astronomy/octree"
	"github.com/emilyst/many-body-simulation/pkg/astronomy/rng"
)

// Config holds the physics constants for the simulation.
type Config struct {
	G         float64 // gravitational constant
	Theta     float64 // Barnes-Hut opening angle
	Softening float64 // distance floor added before squaring
	MaxForce  float64 // acceleration magnitude ceiling per contribution
	Dt        float64 // fixed timestep
	Workers   int     // force-evaluation goroutines; 0 means GOMAXPROCS

	LeafCapacity int
	MaxDepth     int
}

// System owns the body population and advances it one fixed timestep at a
// time. The caller drives stepping; pausing is simply withholding Step
// invocations. Reads (Bodies, Barycenter, tree traversal) may happen
// concurrently with stepping.
type System struct {
	cfg Config
	gen GenerationConfig

	mu         sync.RWMutex
	stream     *rng.Stream
	bodies     []Body
	accels     []vec3
	treeBodies []octree.Body
	tree       *octree.Tree
	barycenter Barycenter
	stepIndex  uint64
	excluded   uint64 // cumulative bodies excluded for non-finite state
}

// NewSystem generates the initial population from the given seed and
// returns a system ready to step.
func NewSystem(cfg Config, gen GenerationConfig, seed uint64) (*System, error) {
	s := &System{
		cfg:    cfg,
		gen:    gen,
		stream: rng.New(seed),
		tree: octree.New(octree.Config{
			Theta:        cfg.Theta,
			Softening:    cfg.Softening,
			MaxForce:     cfg.MaxForce,
			LeafCapacity: cfg.LeafCapacity,
			MaxDepth:     cfg.MaxDepth,
		}),
	}
	if err := s.populate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *System) populate() error {
	bodies, err := Generate(s.gen, s.stream)
	if err != nil {
		return fmt.Errorf("populating system: %w", err)
	}
	s.bodies = bodies
	s.accels = make([]vec3, len(bodies))
	s.barycenter = ComputeBarycenter(bodies)
	s.stepIndex = 0
	return nil
}

// Restart discards the population wholesale and regenerates it from the
// given seed. Counters reset; the tree is rebuilt on the next step.
func (s *System) Restart(seed uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream.Reset(seed)
	return s.populate()
}

// Seed returns the seed of the current run.
func (s *System) Seed() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream.Seed()
}

// Bodies returns a snapshot copy of the current population.
func (s *System) Bodies() []Body {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Body, len(s.bodies))
	copy(out, s.bodies)
	return out
}

// Barycenter returns the barycenter computed at the end of the last step.
func (s *System) Barycenter() Barycenter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.barycenter
}

// StepIndex returns how many steps have completed since the last restart.
func (s *System) StepIndex() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stepIndex
}

// TreeBounds returns the node cubes of the last step's octree down to
// maxDepth, for wireframe display.
func (s *System) TreeBounds(maxDepth int) []octree.Cube {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Bounds(maxDepth)
}

// TreeStats returns aggregate statistics of the last step's octree.
func (s *System) TreeStats() octree.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Stats()
}
