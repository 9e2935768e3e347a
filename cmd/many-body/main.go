package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emilyst/many-body-simulation/pkg/astronomy/nbody"
	"github.com/emilyst/many-body-simulation/pkg/server"
	"github.com/emilyst/many-body-simulation/pkg/utils"
)

const (
	appName = "many-body"
	version = "v1.0.0"
)

var (
	globalConfig *utils.Config

	flagSteps int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Deterministic Barnes-Hut N-body gravitational simulator",
	Long: `many-body is a deterministic, parallel N-body gravitational simulator.
It rebuilds a Barnes-Hut octree every step, evaluates forces in O(N log N)
with a configurable accuracy/performance trade-off, and exposes body
positions, the octree structure, and the barycenter to rendering and
diagnostic consumers over a JSON API.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" || cmd.Name() == "help" {
			return nil
		}

		config, err := utils.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		flags := cmd.Root().PersistentFlags()
		if flags.Changed("bodies") {
			config.Simulation.Bodies, _ = flags.GetInt("bodies")
		}
		if flags.Changed("seed") {
			config.Generation.Seed, _ = flags.GetUint64("seed")
		}
		if err := utils.Validate(config); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		globalConfig = config
		return nil
	},
}

// initCmd writes the default configuration file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return utils.SaveConfig(utils.DefaultConfig())
	},
}

// runCmd advances the simulation headlessly for a fixed number of steps
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation headlessly",
	RunE: func(cmd *cobra.Command, args []string) error {
		sys, err := newSystem(globalConfig)
		if err != nil {
			return err
		}

		log.Printf("run: %d bodies, seed %d, %d steps",
			globalConfig.Simulation.Bodies, globalConfig.Generation.Seed, flagSteps)

		for i := 0; i < flagSteps; i++ {
			if err := sys.Step(); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}

		d := sys.Diagnostics()
		fmt.Printf("steps:            %d\n", d.StepIndex)
		fmt.Printf("bodies:           %d (excluded %d)\n", d.BodyCount, d.ExcludedTotal)
		fmt.Printf("barycenter:       %+v\n", d.Barycenter.Position)
		fmt.Printf("mean speed:       %.6g (stddev %.6g)\n", d.MeanSpeed, d.SpeedStdDev)
		fmt.Printf("kinetic energy:   %.6g\n", d.KineticEnergy)
		fmt.Printf("octree nodes:     %d\n", d.Tree.NodeCount)
		fmt.Printf("force calcs:      %d\n", d.Tree.ForceCalculations)
		return nil
	},
}

// serveCmd runs the step loop with the HTTP state API attached
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation with the HTTP state API",
	RunE: func(cmd *cobra.Command, args []string) error {
		sys, err := newSystem(globalConfig)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return server.New(sys, globalConfig.Server).Run(ctx)
	},
}

func newSystem(config *utils.Config) (*nbody.System, error) {
	sim := config.Simulation
	gen := config.Generation

	sys, err := nbody.NewSystem(
		nbody.Config{
			G:            sim.G,
			Theta:        sim.Theta,
			Softening:    sim.Softening,
			MaxForce:     sim.MaxForce,
			Dt:           sim.Timestep,
			Workers:      sim.Workers,
			LeafCapacity: sim.LeafCapacity,
			MaxDepth:     sim.MaxDepth,
		},
		nbody.GenerationConfig{
			Count:          sim.Bodies,
			ShellRadiusMin: gen.ShellRadiusMin,
			ShellRadiusMax: gen.ShellRadiusMax,
			MinSeparation:  gen.MinSeparation,
			MassMin:        gen.MassMin,
			MassMax:        gen.MassMax,
			RadiusMin:      gen.RadiusMin,
			RadiusMax:      gen.RadiusMax,
			TemperatureMin: gen.TemperatureMin,
			TemperatureMax: gen.TemperatureMax,
			MaxAttempts:    gen.MaxAttempts,
		},
		gen.Seed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create system: %w", err)
	}
	return sys, nil
}

func init() {
	rootCmd.PersistentFlags().Int("bodies", 0, "override configured body count")
	rootCmd.PersistentFlags().Uint64("seed", 0, "override configured RNG seed")

	runCmd.Flags().IntVar(&flagSteps, "steps", 1000, "number of steps to run")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
