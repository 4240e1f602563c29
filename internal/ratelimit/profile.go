// Package ratelimit implements speed profiles and the token-bucket rate
// limiter that sits on top of them.
package ratelimit

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// CombineMode names how a Composite profile folds its children's rates.
type CombineMode uint8

const (
	CombineAverage CombineMode = iota
	CombineMax
	CombineMin
	CombineSum
)

// Profile is one SpeedProfile variant. RateAt answers "what is the target
// rate at elapsed time t (seconds since the controller started)?"; a rate of
// 0 means unlimited.
type Profile interface {
	RateAt(t float64, rng *rand.Rand) float64
	// Scaled returns a copy of this profile with every rate component
	// divided by n, for splitting a total rate across n pipelines.
	Scaled(n int) Profile
}

type ConstantProfile struct{ Rate float64 }

func (p ConstantProfile) RateAt(t float64, rng *rand.Rand) float64 { return p.Rate }
func (p ConstantProfile) Scaled(n int) Profile {
	if n <= 1 {
		return p
	}
	return ConstantProfile{Rate: p.Rate / float64(n)}
}

type SinusoidalProfile struct{ Base, Amplitude, Period float64 }

func (p SinusoidalProfile) RateAt(t float64, rng *rand.Rand) float64 {
	if p.Period == 0 {
		return p.Base
	}
	return p.Base + p.Amplitude*math.Sin(2*math.Pi*t/p.Period)
}
func (p SinusoidalProfile) Scaled(n int) Profile {
	if n <= 1 {
		return p
	}
	return SinusoidalProfile{Base: p.Base / float64(n), Amplitude: p.Amplitude / float64(n), Period: p.Period}
}

// Step is one (duration-seconds, rate) pair of a Stepped profile.
type Step struct {
	DurationSec float64
	Rate        float64
}

type SteppedProfile struct {
	Steps       []Step
	LoopForever bool
}

func (p SteppedProfile) RateAt(t float64, rng *rand.Rand) float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	var total float64
	for _, s := range p.Steps {
		total += s.DurationSec
	}
	tt := t
	if p.LoopForever && total > 0 {
		tt = math.Mod(t, total)
	}
	var acc float64
	for _, s := range p.Steps {
		acc += s.DurationSec
		if tt < acc {
			return s.Rate
		}
	}
	return p.Steps[len(p.Steps)-1].Rate
}
func (p SteppedProfile) Scaled(n int) Profile {
	if n <= 1 {
		return p
	}
	out := SteppedProfile{LoopForever: p.LoopForever, Steps: make([]Step, len(p.Steps))}
	for i, s := range p.Steps {
		out.Steps[i] = Step{DurationSec: s.DurationSec, Rate: s.Rate / float64(n)}
	}
	return out
}

// BurstProfile fires a Bernoulli trial on every RateAt call (driven at a
// 100ms check cadence by the limiter) with BurstProbability rescaled by 10
// to approximate per-second semantics — an acknowledged approximation, not
// an exact per-second guarantee (§9 open question (a)).
type BurstProfile struct {
	Base, BurstRate       float64
	BurstDurationMS       int64
	BurstProbability      float64
	burstUntil            float64
	mu                    sync.Mutex
}

func (p *BurstProfile) RateAt(t float64, rng *rand.Rand) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t < p.burstUntil {
		return p.BurstRate
	}
	if rng.Float64() < p.BurstProbability*10 {
		p.burstUntil = t + float64(p.BurstDurationMS)/1000.0
		return p.BurstRate
	}
	return p.Base
}
func (p *BurstProfile) Scaled(n int) Profile {
	if n <= 1 {
		return p
	}
	return &BurstProfile{Base: p.Base / float64(n), BurstRate: p.BurstRate / float64(n),
		BurstDurationMS: p.BurstDurationMS, BurstProbability: p.BurstProbability}
}

type RampProfile struct{ Start, End, DurationSec float64 }

func (p RampProfile) RateAt(t float64, rng *rand.Rand) float64 {
	if p.DurationSec <= 0 || t >= p.DurationSec {
		return p.End
	}
	frac := t / p.DurationSec
	return p.Start + (p.End-p.Start)*frac
}
func (p RampProfile) Scaled(n int) Profile {
	if n <= 1 {
		return p
	}
	return RampProfile{Start: p.Start / float64(n), End: p.End / float64(n), DurationSec: p.DurationSec}
}

type RandomWalkProfile struct{ Base, Variance float64 }

func (p RandomWalkProfile) RateAt(t float64, rng *rand.Rand) float64 {
	noise := (rng.Float64()*2 - 1) * p.Variance
	r := p.Base + noise
	if r < 0 {
		return 0
	}
	return r
}
func (p RandomWalkProfile) Scaled(n int) Profile {
	if n <= 1 {
		return p
	}
	return RandomWalkProfile{Base: p.Base / float64(n), Variance: p.Variance / float64(n)}
}

type CompositeProfile struct {
	Profiles []Profile
	Combine  CombineMode
}

func (p CompositeProfile) RateAt(t float64, rng *rand.Rand) float64 {
	if len(p.Profiles) == 0 {
		return 0
	}
	vals := make([]float64, len(p.Profiles))
	for i, sub := range p.Profiles {
		vals[i] = sub.RateAt(t, rng)
	}
	switch p.Combine {
	case CombineMax:
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case CombineMin:
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case CombineSum:
		var s float64
		for _, v := range vals {
			s += v
		}
		return s
	default: // CombineAverage
		var s float64
		for _, v := range vals {
			s += v
		}
		return s / float64(len(vals))
	}
}
func (p CompositeProfile) Scaled(n int) Profile {
	if n <= 1 {
		return p
	}
	out := CompositeProfile{Combine: p.Combine, Profiles: make([]Profile, len(p.Profiles))}
	for i, sub := range p.Profiles {
		out.Profiles[i] = sub.Scaled(n)
	}
	return out
}

// Controller answers the current target rate from its own elapsed clock and
// owns the RNG state used by Burst/RandomWalk/Composite children.
type Controller struct {
	profile   Profile
	startedAt time.Time
	rng       *rand.Rand
	mu        sync.Mutex
}

// NewController starts the clock immediately.
func NewController(p Profile, seed int64) *Controller {
	return &Controller{profile: p, startedAt: time.Now(), rng: rand.New(rand.NewSource(seed))}
}

// Rate returns the profile's rate at now.
func (c *Controller) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Since(c.startedAt).Seconds()
	return c.profile.RateAt(t, c.rng)
}
