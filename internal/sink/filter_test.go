package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wp-labs/wp-motor/internal/value"
)

func TestParseFilterEmptyMatchesEverything(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.True(t, f(rec("anything")))
}

func TestParseFilterNumericComparison(t *testing.T) {
	f, err := ParseFilter("status >= 500")
	require.NoError(t, err)

	r := value.NewRecord(value.NewField("status", value.NewDigit(503)))
	assert.True(t, f(r))

	r2 := value.NewRecord(value.NewField("status", value.NewDigit(200)))
	assert.False(t, f(r2))
}

func TestParseFilterAndOrNegation(t *testing.T) {
	f, err := ParseFilter(`(status >= 500 && !(msg == "ignore")) || status == 0`)
	require.NoError(t, err)

	r := value.NewRecord(
		value.NewField("status", value.NewDigit(503)),
		value.NewField("msg", value.NewChars("boom")),
	)
	assert.True(t, f(r))

	r2 := value.NewRecord(
		value.NewField("status", value.NewDigit(503)),
		value.NewField("msg", value.NewChars("ignore")),
	)
	assert.False(t, f(r2))
}

func TestParseFilterMissingFieldNeverMatches(t *testing.T) {
	f, err := ParseFilter("missing == 1")
	require.NoError(t, err)
	assert.False(t, f(rec("x")))
}
