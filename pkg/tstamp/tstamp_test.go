package tstamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	got, err := Parse("1712345678.000200")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 5, 19, 34, 38, 200_000, time.UTC), got)
}

func TestParse_NoFraction(t *testing.T) {
	got, err := Parse("1712345678")
	require.NoError(t, err)
	assert.Equal(t, int64(1712345678), got.Unix())
	assert.Zero(t, got.Nanosecond())
}

func TestParse_ShortFractionIsPadded(t *testing.T) {
	got, err := Parse("1712345678.5")
	require.NoError(t, err)
	assert.Equal(t, 500_000_000, got.Nanosecond())
}

func TestParse_Malformed(t *testing.T) {
	for _, ts := range []string{"", "abc", "12.34.56", "12a.000001"} {
		_, err := Parse(ts)
		assert.Error(t, err, "expected error for %q", ts)
	}
}

func TestFromTimeRoundTrip(t *testing.T) {
	in := "1712345678.000200"
	parsed, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, in, FromTime(parsed))
}

func TestCompare_MicrosecondOrdering(t *testing.T) {
	assert.Equal(t, -1, Compare("1712345678.000199", "1712345678.000200"))
	assert.Equal(t, 0, Compare("1712345678.000200", "1712345678.000200"))
	assert.Equal(t, 1, Compare("1712345679.000000", "1712345678.999999"))
}

func TestLess(t *testing.T) {
	assert.True(t, Less("1712345678.000001", "1712345678.000002"))
	assert.False(t, Less("1712345678.000002", "1712345678.000002"))
}
