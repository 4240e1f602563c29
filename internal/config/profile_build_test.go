package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wp-labs/wp-motor/internal/ratelimit"
)

func TestBuildConstantProfile(t *testing.T) {
	p, err := ProfileConfig{Type: "constant", Rate: 42}.Build()
	require.NoError(t, err)
	assert.Equal(t, ratelimit.ConstantProfile{Rate: 42}, p)
}

func TestBuildSteppedProfileMapsSecondsToDurationSec(t *testing.T) {
	p, err := ProfileConfig{Type: "stepped", Steps: []StepConfig{
		{Seconds: 10, Rate: 1}, {Seconds: 20, Rate: 2},
	}, LoopForever: true}.Build()
	require.NoError(t, err)
	stepped, ok := p.(ratelimit.SteppedProfile)
	require.True(t, ok)
	assert.True(t, stepped.LoopForever)
	require.Len(t, stepped.Steps, 2)
	assert.Equal(t, 10.0, stepped.Steps[0].DurationSec)
	assert.Equal(t, 2.0, stepped.Steps[1].Rate)
}

func TestBuildRampProfileMapsDurationToDurationSec(t *testing.T) {
	p, err := ProfileConfig{Type: "ramp", Start: 1, End: 100, Duration: 30}.Build()
	require.NoError(t, err)
	assert.Equal(t, ratelimit.RampProfile{Start: 1, End: 100, DurationSec: 30}, p)
}

func TestBuildBurstProfileConvertsSecondsToMillis(t *testing.T) {
	p, err := ProfileConfig{Type: "burst", BaseRate: 1, BurstRate: 100, BurstProb: 0.01, BurstDuration: 2.5}.Build()
	require.NoError(t, err)
	burst, ok := p.(*ratelimit.BurstProfile)
	require.True(t, ok)
	assert.Equal(t, int64(2500), burst.BurstDurationMS)
}

func TestBuildCompositeProfileRecursesAndMapsCombineMode(t *testing.T) {
	p, err := ProfileConfig{
		Type: "composite",
		Composite: CompositeConfig{
			CombineMode: "max",
			Profiles: []ProfileConfig{
				{Type: "constant", Rate: 1},
				{Type: "constant", Rate: 2},
			},
		},
	}.Build()
	require.NoError(t, err)
	comp, ok := p.(ratelimit.CompositeProfile)
	require.True(t, ok)
	assert.Equal(t, ratelimit.CombineMax, comp.Combine)
	require.Len(t, comp.Profiles, 2)
}

func TestBuildCompositeDefaultsToAverageCombineMode(t *testing.T) {
	p, err := ProfileConfig{
		Type: "composite",
		Composite: CompositeConfig{
			Profiles: []ProfileConfig{{Type: "constant", Rate: 1}},
		},
	}.Build()
	require.NoError(t, err)
	comp := p.(ratelimit.CompositeProfile)
	assert.Equal(t, ratelimit.CombineAverage, comp.Combine)
}

func TestBuildRejectsUnknownCombineMode(t *testing.T) {
	_, err := ProfileConfig{
		Type: "composite",
		Composite: CompositeConfig{
			CombineMode: "nonsense",
			Profiles:    []ProfileConfig{{Type: "constant", Rate: 1}},
		},
	}.Build()
	require.Error(t, err)
}
