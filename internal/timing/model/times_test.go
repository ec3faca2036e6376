package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRaceTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"00:00:00.000", 0, true},
		{"01:02:03", time.Hour + 2*time.Minute + 3*time.Second, true},
		{"00:01:23.456", time.Minute + 23*time.Second + 456*time.Millisecond, true},
		{"1:23.456", time.Minute + 23*time.Second + 456*time.Millisecond, true},
		{"00:01:23.4", time.Minute + 23*time.Second + 400*time.Millisecond, true},
		{"", NoTime, false},
		{"garbage", NoTime, false},
		{"1:2:3:4", NoTime, false},
		{"-1:00", NoTime, false},
	}
	for _, tc := range tests {
		got, ok := ParseRaceTime(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestFormatLapTimeRoundTrip(t *testing.T) {
	for _, in := range []string{"00:00:00.000", "00:01:23.456", "01:02:03.999", "12:34:56.001"} {
		d, ok := ParseRaceTime(in)
		require.True(t, ok, "input %q", in)
		assert.Equal(t, in, FormatLapTime(d))
	}
}

func TestFormatLapTimeUnset(t *testing.T) {
	assert.Equal(t, "", FormatLapTime(NoTime))
}

func TestFormatGap(t *testing.T) {
	assert.Equal(t, "0.500", FormatGap(500*time.Millisecond))
	assert.Equal(t, "12.345", FormatGap(12*time.Second+345*time.Millisecond))
	assert.Equal(t, "1:05.200", FormatGap(65*time.Second+200*time.Millisecond))
	assert.Equal(t, "2.000", FormatGap(-2*time.Second))
}

func TestFormatLapCount(t *testing.T) {
	assert.Equal(t, "1 lap", FormatLapCount(1))
	assert.Equal(t, "3 laps", FormatLapCount(3))
	assert.Equal(t, "2 laps", FormatLapCount(-2))
}

func TestParseFlag(t *testing.T) {
	assert.Equal(t, FlagGreen, ParseFlag("Green"))
	assert.Equal(t, FlagYellow, ParseFlag(" caution "))
	assert.Equal(t, FlagCheckered, ParseFlag("Finish"))
	assert.Equal(t, FlagUnknown, ParseFlag("purple"))
	assert.Equal(t, FlagUnknown, ParseFlag(""))
}
