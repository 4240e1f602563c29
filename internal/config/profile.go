package config

import "fmt"

// ProfileConfig is the `[speed_profile]` table of §6.6: `type` selects one
// of the seven Profile variants from `internal/ratelimit`, each with its
// own named parameter schema per §4.6.
type ProfileConfig struct {
	Type string `yaml:"type"`

	// constant
	Rate float64 `yaml:"rate"`

	// sinusoidal
	Base      float64 `yaml:"base"`
	Amplitude float64 `yaml:"amplitude"`
	Period    float64 `yaml:"period"`

	// stepped
	Steps       []StepConfig `yaml:"steps"`
	LoopForever bool         `yaml:"loop_forever"`

	// burst
	BaseRate      float64 `yaml:"base_rate"`
	BurstRate     float64 `yaml:"burst_rate"`
	BurstProb     float64 `yaml:"burst_prob"`
	BurstDuration float64 `yaml:"burst_duration"`

	// ramp
	Start    float64 `yaml:"start"`
	End      float64 `yaml:"end"`
	Duration float64 `yaml:"duration"`

	// random_walk
	Variance float64 `yaml:"variance"`

	// composite
	Composite CompositeConfig `yaml:"composite"`
}

type StepConfig struct {
	Seconds float64 `yaml:"seconds"`
	Rate    float64 `yaml:"rate"`
}

type CompositeConfig struct {
	Profiles    []ProfileConfig `yaml:"profiles"`
	CombineMode string          `yaml:"combine_mode"` // default "average"
}

func validateProfile(p ProfileConfig) error {
	switch p.Type {
	case "constant", "sinusoidal", "stepped", "burst", "ramp", "random_walk", "composite":
	default:
		return configErr(fmt.Sprintf("speed_profile.type %q is not a recognized profile kind", p.Type))
	}
	if p.Type == "composite" && len(p.Composite.Profiles) == 0 {
		return configErr("speed_profile.composite.profiles must not be empty")
	}
	if p.Type == "stepped" && len(p.Steps) == 0 {
		return configErr("speed_profile.steps must not be empty for a stepped profile")
	}
	return nil
}
