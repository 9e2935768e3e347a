package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the simulation configuration
type Config struct {
	Simulation SimulationConfig `yaml:"simulation" mapstructure:"simulation"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
}

// SimulationConfig contains the physics constants and solver knobs
type SimulationConfig struct {
	Bodies       int     `yaml:"bodies" mapstructure:"bodies"`
	G            float64 `yaml:"g" mapstructure:"g"`
	Theta        float64 `yaml:"theta" mapstructure:"theta"`
	Softening    float64 `yaml:"softening" mapstructure:"softening"`
	MaxForce     float64 `yaml:"max_force" mapstructure:"max_force"`
	Timestep     float64 `yaml:"timestep" mapstructure:"timestep"`
	LeafCapacity int     `yaml:"leaf_capacity" mapstructure:"leaf_capacity"`
	MaxDepth     int     `yaml:"max_depth" mapstructure:"max_depth"`
	Workers      int     `yaml:"workers" mapstructure:"workers"`
}

// GenerationConfig contains the initial-population parameters
type GenerationConfig struct {
	ShellRadiusMin float64 `yaml:"shell_radius_min" mapstructure:"shell_radius_min"`
	ShellRadiusMax float64 `yaml:"shell_radius_max" mapstructure:"shell_radius_max"`
	MinSeparation  float64 `yaml:"min_separation" mapstructure:"min_separation"`
	MassMin        float64 `yaml:"mass_min" mapstructure:"mass_min"`
	MassMax        float64 `yaml:"mass_max" mapstructure:"mass_max"`
	RadiusMin      float64 `yaml:"radius_min" mapstructure:"radius_min"`
	RadiusMax      float64 `yaml:"radius_max" mapstructure:"radius_max"`
	TemperatureMin float64 `yaml:"temperature_min" mapstructure:"temperature_min"`
	TemperatureMax float64 `yaml:"temperature_max" mapstructure:"temperature_max"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	Seed           uint64  `yaml:"seed" mapstructure:"seed"`
}

// ServerConfig contains the HTTP state-API settings
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr" mapstructure:"listen_addr"`
	StepRateHz  int    `yaml:"step_rate_hz" mapstructure:"step_rate_hz"`
	OctreeDepth int    `yaml:"octree_depth" mapstructure:"octree_depth"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Bodies:       500,
			G:            1.0,
			Theta:        0.5,
			Softening:    0.5,
			MaxForce:     1e4,
			Timestep:     1.0 / 60.0,
			LeafCapacity: 1,
			MaxDepth:     32,
			Workers:      0,
		},
		Generation: GenerationConfig{
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
			Seed:           42,
		},
		Server: ServerConfig{
			ListenAddr:  ":8080",
			StepRateHz:  60,
			OctreeDepth: 4,
		},
	}
}

// LoadConfig loads configuration from file or falls back to defaults
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	homeDir, _ := os.UserHomeDir()
	viper.AddConfigPath(filepath.Join(homeDir, ".many-body"))
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	viper.SetEnvPrefix("MANYBODY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".many-body")
	configFile := filepath.Join(configDir, "config.yaml")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Configuration saved to: %s\n", configFile)
	return nil
}

// Validate rejects invalid configuration before any bodies are generated.
// Every failure names the offending field so the user can fix it without
// reading source.
func Validate(config *Config) error {
	sim := config.Simulation
	if sim.Bodies <= 0 {
		return fmt.Errorf("simulation.bodies must be positive, got %d", sim.Bodies)
	}
	if sim.G <= 0 {
		return fmt.Errorf("simulation.g must be positive, got %g", sim.G)
	}
	if sim.Theta < 0 {
		return fmt.Errorf("simulation.theta must not be negative, got %g", sim.Theta)
	}
	if sim.Softening < 0 {
		return fmt.Errorf("simulation.softening must not be negative, got %g", sim.Softening)
	}
	if sim.MaxForce <= 0 {
		return fmt.Errorf("simulation.max_force must be positive, got %g", sim.MaxForce)
	}
	if sim.Timestep <= 0 {
		return fmt.Errorf("simulation.timestep must be positive, got %g", sim.Timestep)
	}
	if sim.LeafCapacity < 1 {
		return fmt.Errorf("simulation.leaf_capacity must be at least 1, got %d", sim.LeafCapacity)
	}
	if sim.MaxDepth < 1 {
		return fmt.Errorf("simulation.max_depth must be at least 1, got %d", sim.MaxDepth)
	}
	if sim.Workers < 0 {
		return fmt.Errorf("simulation.workers must not be negative, got %d", sim.Workers)
	}

	gen := config.Generation
	if gen.ShellRadiusMin <= 0 || gen.ShellRadiusMax < gen.ShellRadiusMin {
		return fmt.Errorf("generation shell radius range [%g, %g] must be positive and ordered",
			gen.ShellRadiusMin, gen.ShellRadiusMax)
	}
	if gen.MinSeparation < 0 {
		return fmt.Errorf("generation.min_separation must not be negative, got %g", gen.MinSeparation)
	}
	if gen.MassMin <= 0 || gen.MassMax < gen.MassMin {
		return fmt.Errorf("generation mass range [%g, %g] must be positive and ordered",
			gen.MassMin, gen.MassMax)
	}
	if gen.RadiusMin <= 0 || gen.RadiusMax < gen.RadiusMin {
		return fmt.Errorf("generation radius range [%g, %g] must be positive and ordered",
			gen.RadiusMin, gen.RadiusMax)
	}
	if gen.TemperatureMax < gen.TemperatureMin {
		return fmt.Errorf("generation temperature range [%g, %g] must be ordered",
			gen.TemperatureMin, gen.TemperatureMax)
	}
	if gen.MaxAttempts < 1 {
		return fmt.Errorf("generation.max_attempts must be at least 1, got %d", gen.MaxAttempts)
	}

	srv := config.Server
	if srv.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr cannot be empty")
	}
	if srv.StepRateHz <= 0 {
		return fmt.Errorf("server.step_rate_hz must be positive, got %d", srv.StepRateHz)
	}
	if srv.OctreeDepth < 0 {
		return fmt.Errorf("server.octree_depth must not be negative, got %d", srv.OctreeDepth)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".many-body", "config.yaml"), nil
}
