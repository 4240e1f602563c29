package config

import (
	"fmt"
	"strings"

	"github.com/wp-labs/wp-motor/internal/ratelimit"
)

// Build constructs the live ratelimit.Profile named by p.Type, recursively
// building composite.profiles children. Validate (or validateProfile) must
// have already accepted p; Build returns an error only for a profile type
// or a composite combine_mode it doesn't recognize, since everything else
// was checked at load time.
func (p ProfileConfig) Build() (ratelimit.Profile, error) {
	switch p.Type {
	case "constant":
		return ratelimit.ConstantProfile{Rate: p.Rate}, nil
	case "sinusoidal":
		return ratelimit.SinusoidalProfile{Base: p.Base, Amplitude: p.Amplitude, Period: p.Period}, nil
	case "stepped":
		steps := make([]ratelimit.Step, len(p.Steps))
		for i, s := range p.Steps {
			steps[i] = ratelimit.Step{DurationSec: s.Seconds, Rate: s.Rate}
		}
		return ratelimit.SteppedProfile{Steps: steps, LoopForever: p.LoopForever}, nil
	case "burst":
		return &ratelimit.BurstProfile{
			Base:             p.BaseRate,
			BurstRate:        p.BurstRate,
			BurstDurationMS:  int64(p.BurstDuration * 1000),
			BurstProbability: p.BurstProb,
		}, nil
	case "ramp":
		return ratelimit.RampProfile{Start: p.Start, End: p.End, DurationSec: p.Duration}, nil
	case "random_walk":
		return ratelimit.RandomWalkProfile{Base: p.Base, Variance: p.Variance}, nil
	case "composite":
		mode, err := combineMode(p.Composite.CombineMode)
		if err != nil {
			return nil, err
		}
		subs := make([]ratelimit.Profile, len(p.Composite.Profiles))
		for i, sub := range p.Composite.Profiles {
			built, err := sub.Build()
			if err != nil {
				return nil, err
			}
			subs[i] = built
		}
		return ratelimit.CompositeProfile{Profiles: subs, Combine: mode}, nil
	default:
		return nil, configErr(fmt.Sprintf("speed_profile.type %q is not a recognized profile kind", p.Type))
	}
}

func combineMode(raw string) (ratelimit.CombineMode, error) {
	switch strings.ToLower(raw) {
	case "", "average":
		return ratelimit.CombineAverage, nil
	case "max":
		return ratelimit.CombineMax, nil
	case "min":
		return ratelimit.CombineMin, nil
	case "sum":
		return ratelimit.CombineSum, nil
	default:
		return 0, configErr(fmt.Sprintf("speed_profile.composite.combine_mode %q is not one of average/max/min/sum", raw))
	}
}
