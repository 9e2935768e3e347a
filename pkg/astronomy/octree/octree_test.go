package octree

import (
	"math"
	"testing"

	astromath "github.com/emilyst/many-body-simulation/pkg/astronomy/math"
	"github.com/emilyst/many-body-simulation/pkg/astronomy/rng"
)

func testConfig() Config {
	return Config{
		Theta:        0.5,
		Softening:    0.5,
		MaxForce:     1e4,
		LeafCapacity: 1,
		MaxDepth:     32,
	}
}

func scatterBodies(n int, seed uint64) []Body {
	stream := rng.New(seed)
	bodies := make([]Body, n)
	for i := range bodies {
		bodies[i] = Body{
			Index: i,
			Position: astromath.Vector3{
				X: stream.InRange(-100, 100),
				Y: stream.InRange(-100, 100),
				Z: stream.InRange(-100, 100),
			},
			Mass: stream.InRange(1, 50),
		}
	}
	return bodies
}

// bruteAcceleration is the independent O(N^2) baseline: same softening and
// clamp formula, direct pairwise sum.
func bruteAcceleration(b Body, bodies []Body, cfg Config, g float64) astromath.Vector3 {
	acc := astromath.Vector3{}
	for _, other := range bodies {
		if other.Index == b.Index {
			continue
		}
		dir := other.Position.Sub(b.Position)
		dist := dir.Magnitude()
		if dist == 0 {
			continue
		}
		soft := dist + cfg.Softening
		mag := math.Min(g*other.Mass/(soft*soft), cfg.MaxForce)
		acc = acc.Add(dir.Scale(mag / dist))
	}
	return acc
}

func TestEmptyTree(t *testing.T) {
	tree := New(testConfig())
	if err := tree.Build(nil); err != nil {
		t.Fatalf("building empty tree: %v", err)
	}

	acc := tree.AccelerationOn(Body{Index: 0, Position: astromath.Vector3{X: 1}}, 1.0)
	if !acc.IsZero() {
		t.Errorf("empty tree acceleration = %+v, want zero", acc)
	}
	if bounds := tree.Bounds(-1); bounds != nil {
		t.Errorf("empty tree bounds = %v, want nil", bounds)
	}
	if stats := tree.Stats(); stats.BodyCount != 0 || stats.NodeCount != 0 {
		t.Errorf("empty tree stats = %+v", stats)
	}
}

func TestNonFinitePositionRejected(t *testing.T) {
	tree := New(testConfig())
	bodies := []Body{
		{Index: 0, Position: astromath.Vector3{X: 1}, Mass: 1},
		{Index: 1, Position: astromath.Vector3{X: math.NaN()}, Mass: 1},
	}
	if err := tree.Build(bodies); err == nil {
		t.Fatal("expected build to reject non-finite position")
	}
}

// subtreeAggregate recomputes a node's mass and center of mass from the
// leaf bodies below it.
func subtreeAggregate(tr *Tree, idx int32) (float64, astromath.Vector3) {
	n := &tr.nodes[idx]
	if n.leaf {
		mass := 0.0
		weighted := astromath.Vector3{}
		for _, b := range tr.leafBodies[n.bodyStart : n.bodyStart+n.bodyLen] {
			mass += b.Mass
			weighted = weighted.Add(b.Position.Scale(b.Mass))
		}
		return mass, weighted
	}
	mass := 0.0
	weighted := astromath.Vector3{}
	for o := 0; o < 8; o++ {
		if child := n.children[o]; child != noChild {
			m, w := subtreeAggregate(tr, child)
			mass += m
			weighted = weighted.Add(w)
		}
	}
	return mass, weighted
}

func TestAggregateCorrectness(t *testing.T) {
	bodies := scatterBodies(200, 7)
	tree := New(testConfig())
	if err := tree.Build(bodies); err != nil {
		t.Fatal(err)
	}

	for idx := range tree.nodes {
		n := &tree.nodes[idx]
		mass, weighted := subtreeAggregate(tree, int32(idx))
		if math.Abs(n.totalMass-mass) > 1e-9*math.Abs(mass) {
			t.Fatalf("node %d aggregate mass %g, recomputed %g", idx, n.totalMass, mass)
		}
		if mass > 0 {
			com := weighted.Scale(1 / mass)
			if com.Distance(n.centerOfMass) > 1e-9 {
				t.Fatalf("node %d center of mass %+v, recomputed %+v", idx, n.centerOfMass, com)
			}
		}
	}

	stats := tree.Stats()
	if stats.BodyCount != len(bodies) {
		t.Errorf("stats body count = %d, want %d", stats.BodyCount, len(bodies))
	}
}

func TestTwoBodiesOppositeOctants(t *testing.T) {
	bodies := []Body{
		{Index: 0, Position: astromath.Vector3{X: -5, Y: -5, Z: -5}, Mass: 3},
		{Index: 1, Position: astromath.Vector3{X: 5, Y: 5, Z: 5}, Mass: 7},
	}
	tree := New(testConfig())
	if err := tree.Build(bodies); err != nil {
		t.Fatal(err)
	}

	root := &tree.nodes[tree.root]
	if root.leaf {
		t.Fatal("root should be internal for two separated bodies with leaf capacity 1")
	}

	nonEmpty := 0
	for o := 0; o < 8; o++ {
		if child := root.children[o]; child != noChild {
			nonEmpty++
			if !tree.nodes[child].leaf {
				t.Errorf("octant %d child should be a leaf", o)
			}
		}
	}
	if nonEmpty != 2 {
		t.Errorf("root has %d non-empty children, want 2", nonEmpty)
	}
	if root.children[0] == noChild || root.children[7] == noChild {
		t.Errorf("bodies should land in octants 0 and 7, children = %v", root.children)
	}
	if got, want := root.totalMass, 10.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("root mass = %g, want %g", got, want)
	}
}

func TestBruteForceEquivalence(t *testing.T) {
	cfg := testConfig()
	cfg.Theta = 0 // exact traversal
	bodies := scatterBodies(150, 11)

	tree := New(cfg)
	if err := tree.Build(bodies); err != nil {
		t.Fatal(err)
	}

	const g = 1.0
	for _, b := range bodies {
		got := tree.AccelerationOn(b, g)
		want := bruteAcceleration(b, bodies, cfg, g)
		diff := got.Sub(want).Magnitude()
		scale := want.Magnitude()
		if scale == 0 {
			scale = 1
		}
		if diff/scale > 1e-9 {
			t.Fatalf("body %d: tree %+v, brute force %+v (relative error %g)",
				b.Index, got, want, diff/scale)
		}
	}
}

func TestMomentumSymmetry(t *testing.T) {
	cfg := testConfig()
	cfg.Theta = 0
	bodies := scatterBodies(100, 13)

	tree := New(cfg)
	if err := tree.Build(bodies); err != nil {
		t.Fatal(err)
	}

	// Newton's third law: with exact evaluation the mass-weighted sum of
	// accelerations (total force) must vanish.
	netForce := astromath.Vector3{}
	for _, b := range bodies {
		netForce = netForce.Add(tree.AccelerationOn(b, 1.0).Scale(b.Mass))
	}

	totalMag := 0.0
	for _, b := range bodies {
		totalMag += tree.AccelerationOn(b, 1.0).Scale(b.Mass).Magnitude()
	}
	if netForce.Magnitude() > 1e-9*totalMag {
		t.Errorf("net force %+v is not zero relative to total magnitude %g",
			netForce, totalMag)
	}
}

func TestTwoBodyAcceleration(t *testing.T) {
	cfg := testConfig()
	cfg.Theta = 0
	const (
		g    = 2.5
		mass = 1000.0
		d    = 40.0
	)
	bodies := []Body{
		{Index: 0, Position: astromath.Vector3{}, Mass: mass},
		{Index: 1, Position: astromath.Vector3{X: d}, Mass: 1e-3},
	}
	tree := New(cfg)
	if err := tree.Build(bodies); err != nil {
		t.Fatal(err)
	}

	acc := tree.AccelerationOn(bodies[1], g)
	want := g * mass / ((d + cfg.Softening) * (d + cfg.Softening))
	if math.Abs(acc.Magnitude()-want) > 1e-12*want {
		t.Errorf("acceleration magnitude = %g, want %g", acc.Magnitude(), want)
	}
	if acc.X >= 0 {
		t.Errorf("acceleration should point toward the massive body, got %+v", acc)
	}
}

func TestSofteningAndClampNearCoincidence(t *testing.T) {
	cfg := testConfig()
	cfg.Theta = 0
	const g = 1.0

	last := 0.0
	for _, sep := range []float64{1, 1e-2, 1e-4, 1e-8} {
		bodies := []Body{
			{Index: 0, Position: astromath.Vector3{}, Mass: 1e7},
			{Index: 1, Position: astromath.Vector3{X: sep}, Mass: 1},
		}
		tree := New(cfg)
		if err := tree.Build(bodies); err != nil {
			t.Fatal(err)
		}

		mag := tree.AccelerationOn(bodies[1], g).Magnitude()
		if math.IsInf(mag, 0) || math.IsNaN(mag) {
			t.Fatalf("separation %g: non-finite acceleration", sep)
		}
		if mag > cfg.MaxForce {
			t.Fatalf("separation %g: acceleration %g exceeds clamp %g", sep, mag, cfg.MaxForce)
		}
		last = mag
	}

	// At the smallest separation the softened, clamped value should sit at
	// the ceiling rather than diverging.
	if last != cfg.MaxForce {
		t.Errorf("near-coincident acceleration = %g, want clamp ceiling %g", last, cfg.MaxForce)
	}
}

func TestCoincidentBodiesTerminate(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDepth = 8
	pos := astromath.Vector3{X: 1, Y: 2, Z: 3}
	bodies := make([]Body, 5)
	for i := range bodies {
		bodies[i] = Body{Index: i, Position: pos, Mass: 2}
	}

	tree := New(cfg)
	if err := tree.Build(bodies); err != nil {
		t.Fatal(err)
	}

	stats := tree.Stats()
	if stats.BodyCount != len(bodies) {
		t.Errorf("body count = %d, want %d", stats.BodyCount, len(bodies))
	}

	deepest := 0
	for _, c := range tree.Bounds(-1) {
		if c.Depth > deepest {
			deepest = c.Depth
		}
	}
	if deepest > cfg.MaxDepth {
		t.Errorf("tree depth %d exceeds limit %d", deepest, cfg.MaxDepth)
	}
}

func TestBoundsDepthLimit(t *testing.T) {
	bodies := scatterBodies(64, 17)
	tree := New(testConfig())
	if err := tree.Build(bodies); err != nil {
		t.Fatal(err)
	}

	rootOnly := tree.Bounds(0)
	if len(rootOnly) != 1 {
		t.Fatalf("depth 0 bounds length = %d, want 1", len(rootOnly))
	}
	if rootOnly[0].Depth != 0 {
		t.Errorf("root depth = %d, want 0", rootOnly[0].Depth)
	}

	all := tree.Bounds(-1)
	if len(all) != len(tree.nodes) {
		t.Errorf("unbounded traversal visited %d nodes, arena has %d", len(all), len(tree.nodes))
	}
	limited := tree.Bounds(2)
	for _, c := range limited {
		if c.Depth > 2 {
			t.Errorf("bounds include depth %d past limit 2", c.Depth)
		}
	}
	if len(limited) >= len(all) && len(all) > 1 {
		t.Errorf("depth-limited traversal returned %d cubes, full tree %d", len(limited), len(all))
	}

	// Root cube must contain every body.
	root := rootOnly[0]
	for _, b := range bodies {
		d := b.Position.Sub(root.Center)
		if math.Abs(d.X) > root.HalfWidth || math.Abs(d.Y) > root.HalfWidth || math.Abs(d.Z) > root.HalfWidth {
			t.Fatalf("body %d at %+v outside root cube (center %+v, half-width %g)",
				b.Index, b.Position, root.Center, root.HalfWidth)
		}
	}
}

func TestDeterministicRebuild(t *testing.T) {
	bodies := scatterBodies(128, 23)
	cfg := testConfig()

	first := New(cfg)
	if err := first.Build(bodies); err != nil {
		t.Fatal(err)
	}
	ref := make([]astromath.Vector3, len(bodies))
	for i, b := range bodies {
		ref[i] = first.AccelerationOn(b, 1.0)
	}

	// Same input must produce bitwise-identical results from a fresh tree
	// and from a reused arena.
	second := New(cfg)
	for round := 0; round < 3; round++ {
		if err := second.Build(bodies); err != nil {
			t.Fatal(err)
		}
		for i, b := range bodies {
			if got := second.AccelerationOn(b, 1.0); got != ref[i] {
				t.Fatalf("round %d body %d: %+v != %+v", round, i, got, ref[i])
			}
		}
	}
}

func BenchmarkBuild(b *testing.B) {
	bodies := scatterBodies(10000, 29)
	tree := New(testConfig())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tree.Build(bodies); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAccelerationOn(b *testing.B) {
	bodies := scatterBodies(10000, 31)
	tree := New(testConfig())
	if err := tree.Build(bodies); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.AccelerationOn(bodies[i%len(bodies)], 1.0)
	}
}
