package pausewindow

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, loc *time.Location, hh, mm, ss int) time.Time {
	t.Helper()
	return time.Date(2025, 6, 14, hh, mm, ss, 0, loc)
}

func window(start, end string, tz string) Settings {
	s, _ := ParseClock(start)
	e, _ := ParseClock(end)
	return Settings{Enabled: true, StartMinutes: s, EndMinutes: e, Timezone: tz}
}

func TestPausedAt_NonWrappingBoundaries(t *testing.T) {
	loc := time.UTC
	s := window("01:00", "08:00", "UTC")

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"at start", at(t, loc, 1, 0, 0), true},
		{"last second", at(t, loc, 7, 59, 59), true},
		{"second before start", at(t, loc, 0, 59, 59), false},
		{"at end", at(t, loc, 8, 0, 0), false},
		{"midday", at(t, loc, 12, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.PausedAt(tt.now, loc))
		})
	}
}

func TestPausedAt_WrappingBoundaries(t *testing.T) {
	loc := time.UTC
	s := window("22:00", "06:00", "UTC")

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"late evening", at(t, loc, 23, 0, 0), true},
		{"early morning", at(t, loc, 5, 59, 0), true},
		{"at start", at(t, loc, 22, 0, 0), true},
		{"just past midnight", at(t, loc, 0, 0, 0), true},
		{"before start", at(t, loc, 21, 59, 0), false},
		{"at end", at(t, loc, 6, 0, 0), false},
		{"afternoon", at(t, loc, 15, 30, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.PausedAt(tt.now, loc))
		})
	}
}

func TestPausedAt_DisabledNeverPauses(t *testing.T) {
	s := window("00:00", "23:59", "UTC")
	s.Enabled = false

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for m := 0; m < minutesPerDay; m += 7 {
		now := start.Add(time.Duration(m) * time.Minute)
		require.False(t, s.PausedAt(now, time.UTC), "paused at %s", now)
	}

	_, ok := s.NextPauseAt(start, time.UTC)
	assert.False(t, ok)
	_, ok = s.NextResumeAt(start, time.UTC)
	assert.False(t, ok)
	assert.Zero(t, s.SecondsUntilResume(start, time.UTC))
}

func TestPausedAt_ConvertsToConfiguredZone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	s := window("01:00", "08:00", "Asia/Kolkata")

	// 20:00 UTC is 01:30 IST the next day
	now := time.Date(2025, 6, 14, 20, 0, 0, 0, time.UTC)
	assert.True(t, s.PausedAt(now, kolkata))

	// 03:00 UTC is 08:30 IST
	now = time.Date(2025, 6, 14, 3, 0, 0, 0, time.UTC)
	assert.False(t, s.PausedAt(now, kolkata))
}

func TestResumeMatchesSecondsUntilResume(t *testing.T) {
	loc := time.UTC
	cases := []Settings{
		window("01:00", "08:00", "UTC"),
		window("22:00", "06:00", "UTC"),
		window("23:30", "00:15", "UTC"),
	}

	start := time.Date(2025, 6, 14, 0, 0, 0, 0, loc)
	for _, s := range cases {
		for m := 0; m < minutesPerDay; m += 13 {
			now := start.Add(time.Duration(m)*time.Minute + 17*time.Second)
			if !s.PausedAt(now, loc) {
				continue
			}
			resume, ok := s.NextResumeAt(now, loc)
			require.True(t, ok)
			secs := s.SecondsUntilResume(now, loc)
			assert.Equal(t, resume, now.Add(time.Duration(secs)*time.Second),
				"window %s-%s at %s", s.StartTime(), s.EndTime(), now)
		}
	}
}

func TestSecondsUntilResume(t *testing.T) {
	loc := time.UTC
	s := window("22:00", "06:00", "UTC")

	assert.Equal(t, int64(0), s.SecondsUntilResume(at(t, loc, 12, 0, 0), loc))
	assert.Equal(t, int64(7*3600), s.SecondsUntilResume(at(t, loc, 23, 0, 0), loc))
	assert.Equal(t, int64(60), s.SecondsUntilResume(at(t, loc, 5, 59, 0), loc))
}

func TestNextPauseAndResume(t *testing.T) {
	loc := time.UTC
	day := func(d, hh, mm int) time.Time { return time.Date(2025, 6, d, hh, mm, 0, 0, loc) }

	tests := []struct {
		name       string
		settings   Settings
		now        time.Time
		wantPause  time.Time
		wantResume time.Time
	}{
		{
			name:       "non-wrapping before window",
			settings:   window("01:00", "08:00", "UTC"),
			now:        day(14, 0, 30),
			wantPause:  day(14, 1, 0),
			wantResume: day(14, 8, 0),
		},
		{
			name:       "non-wrapping inside window",
			settings:   window("01:00", "08:00", "UTC"),
			now:        day(14, 3, 0),
			wantPause:  day(15, 1, 0),
			wantResume: day(14, 8, 0),
		},
		{
			name:       "non-wrapping after window",
			settings:   window("01:00", "08:00", "UTC"),
			now:        day(14, 9, 0),
			wantPause:  day(15, 1, 0),
			wantResume: day(15, 8, 0),
		},
		{
			name:       "wrapping before window",
			settings:   window("22:00", "06:00", "UTC"),
			now:        day(14, 21, 0),
			wantPause:  day(14, 22, 0),
			wantResume: day(15, 6, 0),
		},
		{
			name:       "wrapping inside window before midnight",
			settings:   window("22:00", "06:00", "UTC"),
			now:        day(14, 23, 0),
			wantPause:  day(15, 22, 0),
			wantResume: day(15, 6, 0),
		},
		{
			name:       "wrapping inside window after midnight",
			settings:   window("22:00", "06:00", "UTC"),
			now:        day(14, 2, 0),
			wantPause:  day(14, 22, 0),
			wantResume: day(14, 6, 0),
		},
		{
			name:       "wrapping at end boundary",
			settings:   window("22:00", "06:00", "UTC"),
			now:        day(14, 6, 0),
			wantPause:  day(14, 22, 0),
			wantResume: day(15, 6, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pause, ok := tt.settings.NextPauseAt(tt.now, loc)
			require.True(t, ok)
			assert.True(t, tt.wantPause.Equal(pause), "next pause = %s, want %s", pause, tt.wantPause)
			assert.True(t, pause.After(tt.now), "next pause must be in the future")

			resume, ok := tt.settings.NextResumeAt(tt.now, loc)
			require.True(t, ok)
			assert.True(t, tt.wantResume.Equal(resume), "next resume = %s, want %s", resume, tt.wantResume)
			assert.True(t, resume.After(tt.now), "next resume must be in the future")
		})
	}
}

func TestWindowAt_AcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s := window("01:00", "05:00", "America/New_York")

	// 2025-03-09: clocks jump from 02:00 to 03:00, the window is one hour shorter
	now := time.Date(2025, 3, 9, 4, 0, 0, 0, ny)
	w := s.WindowAt(now, ny)
	assert.True(t, w.Contains(now))
	assert.Equal(t, 3*time.Hour, w.End.Sub(w.Start))
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Settings
		wantErr bool
	}{
		{"default", DefaultSettings("UTC"), false},
		{"equal start and end", Settings{Enabled: true, StartMinutes: 60, EndMinutes: 60, Timezone: "UTC"}, true},
		{"start out of range", Settings{StartMinutes: 1440, EndMinutes: 60, Timezone: "UTC"}, true},
		{"negative end", Settings{StartMinutes: 10, EndMinutes: -1, Timezone: "UTC"}, true},
		{"bad zone", Settings{StartMinutes: 10, EndMinutes: 20, Timezone: "Nowhere/Land"}, true},
		{"empty zone", Settings{StartMinutes: 10, EndMinutes: 20}, true},
		{"host local zone", Settings{StartMinutes: 10, EndMinutes: 20, Timezone: "Local"}, true},
		{"wrapping", Settings{StartMinutes: 22 * 60, EndMinutes: 6 * 60, Timezone: "Europe/London"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSettings)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClockParsing(t *testing.T) {
	m, err := ParseClock("22:30")
	require.NoError(t, err)
	assert.Equal(t, 22*60+30, m)
	assert.Equal(t, "22:30", FormatClock(m))
	assert.Equal(t, "00:00", FormatClock(minutesPerDay))

	for _, bad := range []string{"24:00", "7:5", "noon", ""} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidSettings, bad)
	}
}
