package config

import "fmt"

// GroupConfig is one `[[group]]` (Flexi) or `[[fixed]]` entry (§6.5).
type GroupConfig struct {
	Name     string        `yaml:"name"`
	Parallel int           `yaml:"parallel"` // 1..10, default 1
	Rule     []string      `yaml:"rule"`     // wildcard globs
	OML      []string      `yaml:"oml"`      // wildcard globs
	Tags     []string      `yaml:"tags"`     // "k:v" | "k=v" | "k" (bare -> k:"true")
	Filter   string        `yaml:"filter"`
	Expect   *ExpectConfig `yaml:"expect"`
	Sinks    []SinkConfig  `yaml:"sinks"`
}

// SinkConfig mirrors §3.6's `SinkInstanceConf` as the YAML-facing
// per-sink entry under a group's `sinks` array.
type SinkConfig struct {
	Name   string            `yaml:"name"`
	Kind   string            `yaml:"kind"` // file | rescue | blackhole | network
	Params map[string]string `yaml:"params"`
	Format string            `yaml:"fmt"`
	Filter string            `yaml:"filter"`
}

// ExpectConfig is §6.5's `expect { basis, window?, min_samples?, mode,
// sum_tol?, others_max? }` traffic-share assertion block.
type ExpectConfig struct {
	Basis      string  `yaml:"basis"` // group_input | total_input | mdl:<name>
	WindowSecs int     `yaml:"window"`
	MinSamples int     `yaml:"min_samples"`
	Mode       string  `yaml:"mode"`
	SumTol     float64 `yaml:"sum_tol"`     // [0,1]
	OthersMax  float64 `yaml:"others_max"`  // [0,1000]
}

// ParseTag splits one of the three tag literal forms (§6.5): "k:v", "k=v",
// or a bare "k" meaning k:"true".
func ParseTag(raw string) (key, val string) {
	for _, sep := range []string{":", "="} {
		for i := 0; i < len(raw); i++ {
			if string(raw[i]) == sep {
				return raw[:i], raw[i+1:]
			}
		}
	}
	return raw, "true"
}

func validateGroup(g GroupConfig) error {
	if g.Parallel > 10 {
		return configErr(fmt.Sprintf("group %q: parallel %d exceeds the maximum of 10", g.Name, g.Parallel))
	}
	if g.Parallel < 0 {
		return configErr(fmt.Sprintf("group %q: parallel must be >= 1", g.Name))
	}
	if len(g.Sinks) == 0 {
		return configErr(fmt.Sprintf("group %q: sinks must not be empty", g.Name))
	}
	if g.Expect != nil {
		if err := validateExpect(g.Name, *g.Expect); err != nil {
			return err
		}
	}
	return nil
}

func validateExpect(group string, e ExpectConfig) error {
	switch {
	case e.Basis == "group_input", e.Basis == "total_input", len(e.Basis) > 4 && e.Basis[:4] == "mdl:":
	default:
		return configErr(fmt.Sprintf("group %q: expect.basis %q is not one of group_input/total_input/mdl:<name>", group, e.Basis))
	}
	if e.SumTol < 0 || e.SumTol > 1 {
		return configErr(fmt.Sprintf("group %q: expect.sum_tol must be within [0,1]", group))
	}
	if e.OthersMax < 0 || e.OthersMax > 1000 {
		return configErr(fmt.Sprintf("group %q: expect.others_max must be within [0,1000]", group))
	}
	return nil
}
