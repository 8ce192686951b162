package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, ok := ParseIntervalDuration(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "m", "0h", "5y", "x1d"} {
		_, ok := ParseIntervalDuration(bad)
		assert.False(t, ok, bad)
	}
}

func TestNewEpochCron(t *testing.T) {
	s, err := NewEpochCron("", time.UTC, func() {})
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.True(t, s.Next().IsZero())

	_, err = NewEpochCron("not a cron", time.UTC, func() {})
	assert.Error(t, err)

	fired := 0
	s, err = NewEpochCron("30 16 * * 1-5", time.UTC, func() { fired++ })
	require.NoError(t, err)
	require.NotNil(t, s)
	s.fire()
	assert.Equal(t, 1, fired)
}

func TestEpochCronNextBeforeStart(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s, err := NewEpochCron("30 16 * * 1-5", ny, func() {})
	require.NoError(t, err)
	// 2026-10-16 是周五。
	s.now = func() time.Time { return time.Date(2026, 10, 16, 17, 0, 0, 0, ny) }

	next := s.Next()
	want := time.Date(2026, 10, 19, 16, 30, 0, 0, ny)
	assert.True(t, next.Equal(want), "got %s", next)
	assert.Equal(t, "America/New_York", next.Location().String())
}
