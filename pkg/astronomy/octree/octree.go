// Package octree implements the spatial index used to approximate
// gravitational forces with the Barnes-Hut algorithm. The tree is rebuilt
// from scratch every simulation step and is immutable while forces are
// evaluated, so any number of goroutines may query it concurrently.
package octree

import (
	"fmt"
	"math"
	"sync/atomic"

	astromath "github.com/emilyst/many-body-simulation/pkg/astronomy/math"
)

const noChild = int32(-1)

// Body is the point-mass view of a simulation body that the tree indexes.
// Index identifies the body within the step's body array and is used to
// exclude self-interaction during force evaluation.
type Body struct {
	Index    int
	Position astromath.Vector3
	Mass     float64
}

// Config holds the accuracy and safety knobs for tree construction and
// force evaluation.
type Config struct {
	Theta        float64 // opening angle; 0 degenerates to exact pairwise summation
	Softening    float64 // distance floor added before squaring
	MaxForce     float64 // ceiling on the acceleration magnitude of a single contribution
	LeafCapacity int     // bodies per leaf before subdividing
	MaxDepth     int     // subdivision limit; deeper bodies stay in the deepest leaf
}

// Cube is an axis-aligned cubic node region, exposed for wireframe
// visualization of the tree.
type Cube struct {
	Center    astromath.Vector3 `json:"center"`
	HalfWidth float64           `json:"half_width"`
	Depth     int               `json:"depth"`
}

// Stats summarizes a built tree.
type Stats struct {
	NodeCount         int               `json:"node_count"`
	BodyCount         int               `json:"body_count"`
	TotalMass         float64           `json:"total_mass"`
	CenterOfMass      astromath.Vector3 `json:"center_of_mass"`
	ForceCalculations uint64            `json:"force_calculations"`
}

// node is a slot in the tree's arena. Children reference other slots by
// index; leaves reference a contiguous range of the tree's body store.
type node struct {
	center       astromath.Vector3
	halfWidth    float64
	centerOfMass astromath.Vector3
	totalMass    float64
	bodyCount    int
	children     [8]int32
	leaf         bool
	bodyStart    int32
	bodyLen      int32
}

// Tree is an arena-backed octree. The arena and leaf body store are reused
// across rebuilds to avoid per-step allocation churn.
type Tree struct {
	cfg        Config
	nodes      []node
	leafBodies []Body
	root       int32
	forceCalcs atomic.Uint64
}

// New creates an empty tree with the given configuration.
func New(cfg Config) *Tree {
	if cfg.LeafCapacity < 1 {
		cfg.LeafCapacity = 1
	}
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 1
	}
	return &Tree{cfg: cfg, root: noChild}
}

// Config returns the tree's configuration.
func (t *Tree) Config() Config {
	return t.cfg
}

// Build replaces the tree's contents with a fresh partition of the given
// bodies. The bounding cube is computed from the body positions with a
// small padding so no body lands exactly on the outer boundary. A body
// with a non-finite position is a data-validation failure; callers are
// expected to have screened such bodies out beforehand.
func (t *Tree) Build(bodies []Body) error {
	t.nodes = t.nodes[:0]
	t.leafBodies = t.leafBodies[:0]
	t.root = noChild

	if len(bodies) == 0 {
		return nil
	}

	min := bodies[0].Position
	max := bodies[0].Position
	for i := range bodies {
		if !bodies[i].Position.IsFinite() {
			return fmt.Errorf("octree: body %d has non-finite position", bodies[i].Index)
		}
		min = min.Min(bodies[i].Position)
		max = max.Max(bodies[i].Position)
	}

	// Cubic root region: side is the largest extent, padded by 1% so
	// boundary ties cannot push a body outside the root.
	center := min.Add(max).Scale(0.5)
	side := max.Sub(min).MaxComponent() * 1.01
	if side <= 0 {
		side = 1
	}

	t.root = t.buildNode(bodies, center, side*0.5, 0)
	return nil
}

// buildNode partitions bodies into the node for the given cube and returns
// its arena index. Aggregates are filled in bottom-up as children finish.
func (t *Tree) buildNode(bodies []Body, center astromath.Vector3, halfWidth float64, depth int) int32 {
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{
		center:    center,
		halfWidth: halfWidth,
		children:  [8]int32{noChild, noChild, noChild, noChild, noChild, noChild, noChild, noChild},
	})

	// A leaf holds at most LeafCapacity bodies, except at the depth limit
	// where it retains everything so coincident positions terminate.
	if len(bodies) <= t.cfg.LeafCapacity || depth >= t.cfg.MaxDepth {
		start := int32(len(t.leafBodies))
		t.leafBodies = append(t.leafBodies, bodies...)

		totalMass := 0.0
		weighted := astromath.Vector3{}
		for _, b := range bodies {
			totalMass += b.Mass
			weighted = weighted.Add(b.Position.Scale(b.Mass))
		}
		com := center
		if totalMass > 0 {
			com = weighted.Scale(1 / totalMass)
		}

		n := &t.nodes[idx]
		n.leaf = true
		n.bodyStart = start
		n.bodyLen = int32(len(bodies))
		n.bodyCount = len(bodies)
		n.totalMass = totalMass
		n.centerOfMass = com
		return idx
	}

	var octants [8][]Body
	for _, b := range bodies {
		o := octantIndex(b.Position, center)
		octants[o] = append(octants[o], b)
	}

	// Children are always visited in index order 0..7 so parallel callers
	// and rebuilds accumulate in the same floating-point order.
	quarter := halfWidth * 0.5
	totalMass := 0.0
	weighted := astromath.Vector3{}
	bodyCount := 0
	for o := 0; o < 8; o++ {
		if len(octants[o]) == 0 {
			continue
		}
		childIdx := t.buildNode(octants[o], octantCenter(center, quarter, o), quarter, depth+1)
		child := &t.nodes[childIdx]
		totalMass += child.totalMass
		weighted = weighted.Add(child.centerOfMass.Scale(child.totalMass))
		bodyCount += child.bodyCount
		t.nodes[idx].children[o] = childIdx
	}

	com := center
	if totalMass > 0 {
		com = weighted.Scale(1 / totalMass)
	}
	n := &t.nodes[idx]
	n.totalMass = totalMass
	n.centerOfMass = com
	n.bodyCount = bodyCount
	return idx
}

// octantIndex maps a position to a child octant of the cube centered at
// center. Low bit is X, then Y, then Z; a coordinate equal to the center
// goes to the high side.
func octantIndex(p, center astromath.Vector3) int {
	o := 0
	if p.X >= center.X {
		o |= 1
	}
	if p.Y >= center.Y {
		o |= 2
	}
	if p.Z >= center.Z {
		o |= 4
	}
	return o
}

func octantCenter(center astromath.Vector3, quarter float64, o int) astromath.Vector3 {
	c := center
	if o&1 != 0 {
		c.X += quarter
	} else {
		c.X -= quarter
	}
	if o&2 != 0 {
		c.Y += quarter
	} else {
		c.Y -= quarter
	}
	if o&4 != 0 {
		c.Z += quarter
	} else {
		c.Z -= quarter
	}
	return c
}

// AccelerationOn walks the tree and returns the gravitational acceleration
// on the given body. Nodes satisfying the opening-angle test s/d < theta
// contribute as a single point mass at their center of mass; otherwise the
// walk descends, summing direct contributions at leaves and skipping the
// body itself. An empty tree yields zero.
func (t *Tree) AccelerationOn(b Body, g float64) astromath.Vector3 {
	if t.root == noChild {
		return astromath.Vector3{}
	}
	return t.accelRecursive(b, t.root, g)
}

func (t *Tree) accelRecursive(b Body, idx int32, g float64) astromath.Vector3 {
	n := &t.nodes[idx]

	if n.leaf {
		acc := astromath.Vector3{}
		for _, other := range t.leafBodies[n.bodyStart : n.bodyStart+n.bodyLen] {
			if other.Index == b.Index {
				continue
			}
			acc = acc.Add(t.pointAcceleration(b.Position, other.Position, other.Mass, g))
		}
		return acc
	}

	dist := b.Position.Distance(n.centerOfMass)
	size := n.halfWidth * 2
	if dist > 0 && size/dist < t.cfg.Theta {
		return t.pointAcceleration(b.Position, n.centerOfMass, n.totalMass, g)
	}

	acc := astromath.Vector3{}
	for o := 0; o < 8; o++ {
		if child := n.children[o]; child != noChild {
			acc = acc.Add(t.accelRecursive(b, child, g))
		}
	}
	return acc
}

// pointAcceleration computes the softened, clamped acceleration toward a
// point mass: g*m/(d+softening)^2 along the separation direction.
func (t *Tree) pointAcceleration(pos, srcPos astromath.Vector3, srcMass, g float64) astromath.Vector3 {
	dir := srcPos.Sub(pos)
	dist := dir.Magnitude()
	if dist == 0 {
		// Coincident positions have no defined direction to pull along.
		return astromath.Vector3{}
	}

	t.forceCalcs.Add(1)

	soft := dist + t.cfg.Softening
	mag := g * srcMass / (soft * soft)
	if t.cfg.MaxForce > 0 {
		mag = math.Min(mag, t.cfg.MaxForce)
	}
	return dir.Scale(mag / dist)
}

// Bounds collects the cubes of every node down to maxDepth in preorder,
// for wireframe visualization. A negative maxDepth collects the whole tree.
func (t *Tree) Bounds(maxDepth int) []Cube {
	if t.root == noChild {
		return nil
	}
	bounds := make([]Cube, 0, 64)
	t.collectBounds(t.root, 0, maxDepth, &bounds)
	return bounds
}

func (t *Tree) collectBounds(idx int32, depth, maxDepth int, bounds *[]Cube) {
	if maxDepth >= 0 && depth > maxDepth {
		return
	}
	n := &t.nodes[idx]
	*bounds = append(*bounds, Cube{Center: n.center, HalfWidth: n.halfWidth, Depth: depth})
	if n.leaf {
		return
	}
	for o := 0; o < 8; o++ {
		if child := n.children[o]; child != noChild {
			t.collectBounds(child, depth+1, maxDepth, bounds)
		}
	}
}

// Stats reports aggregate information about the current tree, including
// the cumulative count of point-mass force evaluations performed.
func (t *Tree) Stats() Stats {
	s := Stats{ForceCalculations: t.forceCalcs.Load()}
	if t.root == noChild {
		return s
	}
	root := &t.nodes[t.root]
	s.NodeCount = len(t.nodes)
	s.BodyCount = root.bodyCount
	s.TotalMass = root.totalMass
	s.CenterOfMass = root.centerOfMass
	return s
}
