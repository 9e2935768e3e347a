package main

import "testing"

func TestPersistentFlagOverridesApply(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	if err := flags.Set("bodies", "7"); err != nil {
		t.Fatalf("set bodies: %v", err)
	}
	if err := flags.Set("seed", "99"); err != nil {
		t.Fatalf("set seed: %v", err)
	}

	if err := rootCmd.PersistentPreRunE(runCmd, nil); err != nil {
		t.Fatalf("pre-run: %v", err)
	}

	if globalConfig.Simulation.Bodies != 7 {
		t.Errorf("bodies = %d, want 7", globalConfig.Simulation.Bodies)
	}
	if globalConfig.Generation.Seed != 99 {
		t.Errorf("seed = %d, want 99", globalConfig.Generation.Seed)
	}
}
