package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wp-labs/wp-motor/internal/xerrors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wp-motor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
topology:
  sinks: ["default"]
group:
  - name: g1
    sinks:
      - {name: s1, kind: blackhole}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "normal", cfg.Robust)
	assert.Equal(t, xerrors.RobustNormal, cfg.RobustMode())
	assert.Equal(t, 4, cfg.Performance.ParseWorkers)
	assert.Equal(t, 5, cfg.Stat.FlushIntervalSeconds)
	assert.Equal(t, "./rescue", cfg.Rescue.Path)
	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, 1, cfg.Groups[0].Parallel)
}

func TestLoadInterpolatesEnvVars(t *testing.T) {
	require.NoError(t, os.Setenv("WPMOTOR_TEST_RESCUE_DIR", "/var/rescue"))
	defer os.Unsetenv("WPMOTOR_TEST_RESCUE_DIR")

	path := writeConfig(t, `
rescue:
  path: "${WPMOTOR_TEST_RESCUE_DIR}/data"
group:
  - name: g1
    sinks:
      - {name: s1, kind: blackhole}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/rescue/data", cfg.Rescue.Path)
}

func TestLoadLeavesUnresolvedEnvVarAsIs(t *testing.T) {
	path := writeConfig(t, `
rescue:
  path: "${WPMOTOR_DEFINITELY_UNSET_VAR}/data"
group:
  - name: g1
    sinks:
      - {name: s1, kind: blackhole}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${WPMOTOR_DEFINITELY_UNSET_VAR}/data", cfg.Rescue.Path)
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsUnknownRobustMode(t *testing.T) {
	c := &Config{Robust: "chaotic", Groups: []GroupConfig{{Name: "g1", Parallel: 1, Sinks: []SinkConfig{{Name: "s1"}}}}}
	err := Validate(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "robust")
}

func TestValidateRejectsZeroParseWorkers(t *testing.T) {
	c := &Config{Robust: "normal", Performance: Performance{ParseWorkers: 0}}
	err := Validate(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse_workers")
}

func TestValidateGroupRejectsExcessiveParallel(t *testing.T) {
	c := &Config{
		Robust:      "normal",
		Performance: Performance{ParseWorkers: 1},
		Groups: []GroupConfig{
			{Name: "g1", Parallel: 11, Sinks: []SinkConfig{{Name: "s1"}}},
		},
	}
	err := Validate(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallel")
}

func TestValidateGroupRejectsEmptySinks(t *testing.T) {
	c := &Config{
		Robust:      "normal",
		Performance: Performance{ParseWorkers: 1},
		Groups:      []GroupConfig{{Name: "g1", Parallel: 1}},
	}
	err := Validate(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sinks")
}

func TestValidateExpectRejectsBadBasisAndTolerances(t *testing.T) {
	base := Config{Robust: "normal", Performance: Performance{ParseWorkers: 1}}

	c := base
	c.Groups = []GroupConfig{{Name: "g1", Parallel: 1, Sinks: []SinkConfig{{Name: "s1"}},
		Expect: &ExpectConfig{Basis: "nonsense"}}}
	require.Error(t, Validate(&c))

	c2 := base
	c2.Groups = []GroupConfig{{Name: "g1", Parallel: 1, Sinks: []SinkConfig{{Name: "s1"}},
		Expect: &ExpectConfig{Basis: "mdl:rule1", SumTol: 1.5}}}
	require.Error(t, Validate(&c2))

	c3 := base
	c3.Groups = []GroupConfig{{Name: "g1", Parallel: 1, Sinks: []SinkConfig{{Name: "s1"}},
		Expect: &ExpectConfig{Basis: "group_input", OthersMax: 5000}}}
	require.Error(t, Validate(&c3))

	c4 := base
	c4.Groups = []GroupConfig{{Name: "g1", Parallel: 1, Sinks: []SinkConfig{{Name: "s1"}},
		Expect: &ExpectConfig{Basis: "total_input", SumTol: 0.1, OthersMax: 10}}}
	assert.NoError(t, Validate(&c4))
}

func TestValidateProfileRejectsUnknownType(t *testing.T) {
	c := &Config{Robust: "normal", Performance: Performance{ParseWorkers: 1},
		SpeedProfile: ProfileConfig{Type: "nonexistent"}}
	err := Validate(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "speed_profile.type")
}

func TestValidateProfileRequiresStepsOrCompositeChildren(t *testing.T) {
	c := &Config{Robust: "normal", Performance: Performance{ParseWorkers: 1},
		SpeedProfile: ProfileConfig{Type: "stepped"}}
	require.Error(t, Validate(c))

	c2 := &Config{Robust: "normal", Performance: Performance{ParseWorkers: 1},
		SpeedProfile: ProfileConfig{Type: "composite"}}
	require.Error(t, Validate(c2))
}

func TestParseTagVariants(t *testing.T) {
	k, v := ParseTag("env:prod")
	assert.Equal(t, "env", k)
	assert.Equal(t, "prod", v)

	k, v = ParseTag("env=prod")
	assert.Equal(t, "env", k)
	assert.Equal(t, "prod", v)

	k, v = ParseTag("important")
	assert.Equal(t, "important", k)
	assert.Equal(t, "true", v)
}
