package nbody

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/emilyst/many-body-simulation/pkg/astronomy/rng"
)

func testGenConfig() GenerationConfig {
	return GenerationConfig{
		Count:          100,
		ShellRadiusMin: 50,
		ShellRadiusMax: 200,
		MinSeparation:  2,
		MassMin:        1,
		MassMax:        100,
		RadiusMin:      0.5,
		RadiusMax:      3,
		TemperatureMin: 2500,
		TemperatureMax: 15000,
		MaxAttempts:    64,
	}
}

func TestGenerateDeterminism(t *testing.T) {
	cfg := testGenConfig()

	first, err := Generate(cfg, rng.New(42))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Generate(cfg, rng.New(42))
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical seeds produced different populations")
	}

	third, err := Generate(cfg, rng.New(43))
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(first, third) {
		t.Fatal("different seeds produced identical populations")
	}
}

func TestGenerateMinimumSeparation(t *testing.T) {
	cfg := testGenConfig()
	bodies, err := Generate(cfg, rng.New(1))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			d := bodies[i].Position.Distance(bodies[j].Position)
			if d < cfg.MinSeparation {
				t.Fatalf("bodies %d and %d are %g apart, want at least %g", i, j, d, cfg.MinSeparation)
			}
		}
	}
}

func TestGenerateRanges(t *testing.T) {
	cfg := testGenConfig()
	bodies, err := Generate(cfg, rng.New(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(bodies) != cfg.Count {
		t.Fatalf("generated %d bodies, want %d", len(bodies), cfg.Count)
	}

	for i, b := range bodies {
		if b.ID != i {
			t.Errorf("body %d has ID %d", i, b.ID)
		}
		r := b.Position.Magnitude()
		if r < cfg.ShellRadiusMin-1e-9 || r > cfg.ShellRadiusMax+1e-9 {
			t.Errorf("body %d at radius %g, want within [%g, %g]", i, r, cfg.ShellRadiusMin, cfg.ShellRadiusMax)
		}
		if b.Mass < cfg.MassMin || b.Mass > cfg.MassMax {
			t.Errorf("body %d mass %g out of range", i, b.Mass)
		}
		if b.Radius < cfg.RadiusMin || b.Radius > cfg.RadiusMax {
			t.Errorf("body %d radius %g out of range", i, b.Radius)
		}
		if b.Temperature < cfg.TemperatureMin || b.Temperature > cfg.TemperatureMax {
			t.Errorf("body %d temperature %g out of range", i, b.Temperature)
		}
		if !b.Velocity.IsZero() {
			t.Errorf("body %d has nonzero initial velocity %+v", i, b.Velocity)
		}

		// Radius and temperature are correlated with mass, not independent.
		frac := (b.Mass - cfg.MassMin) / (cfg.MassMax - cfg.MassMin)
		wantRadius := cfg.RadiusMin + frac*(cfg.RadiusMax-cfg.RadiusMin)
		if math.Abs(b.Radius-wantRadius) > 1e-9 {
			t.Errorf("body %d radius %g not correlated with mass (want %g)", i, b.Radius, wantRadius)
		}
	}
}

func TestGenerateInfeasibleSurfacesError(t *testing.T) {
	cfg := testGenConfig()
	cfg.Count = 50
	cfg.ShellRadiusMin = 1
	cfg.ShellRadiusMax = 1.01
	cfg.MinSeparation = 10 // impossible on a unit shell

	_, err := Generate(cfg, rng.New(5))
	if err == nil {
		t.Fatal("expected generation error for unsatisfiable separation")
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error %v is not a *GenerationError", err)
	}
	if genErr.Attempts != cfg.MaxAttempts {
		t.Errorf("error reports %d attempts, want %d", genErr.Attempts, cfg.MaxAttempts)
	}
}
