package pausewindow

import (
	"errors"
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// Default window applied when stored settings are missing or unusable.
const (
	DefaultStartMinutes = 1 * 60
	DefaultEndMinutes   = 8 * 60
)

var (
	ErrNotFound        = errors.New("pause window settings not found")
	ErrInvalidSettings = errors.New("invalid pause window settings")
)

// Settings is the singleton pause window record. Minutes count from local midnight
// in Timezone.
type Settings struct {
	Enabled      bool      `json:"enabled"`
	StartMinutes int       `json:"start_minutes"`
	EndMinutes   int       `json:"end_minutes"`
	Timezone     string    `json:"timezone"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// DefaultSettings returns the compiled-in window: enabled, 01:00-08:00.
func DefaultSettings(timezone string) Settings {
	if timezone == "" {
		timezone = "UTC"
	}
	return Settings{
		Enabled:      true,
		StartMinutes: DefaultStartMinutes,
		EndMinutes:   DefaultEndMinutes,
		Timezone:     timezone,
	}
}

// Wraps reports whether the window runs past midnight.
func (s Settings) Wraps() bool {
	return s.StartMinutes >= s.EndMinutes
}

// StartTime renders the window start as HH:MM.
func (s Settings) StartTime() string {
	return FormatClock(s.StartMinutes)
}

// EndTime renders the window end as HH:MM.
func (s Settings) EndTime() string {
	return FormatClock(s.EndMinutes)
}

// Validate checks ranges and that Timezone loads.
func (s Settings) Validate() error {
	if s.StartMinutes < 0 || s.StartMinutes >= minutesPerDay {
		return fmt.Errorf("%w: start minutes %d out of range", ErrInvalidSettings, s.StartMinutes)
	}
	if s.EndMinutes < 0 || s.EndMinutes >= minutesPerDay {
		return fmt.Errorf("%w: end minutes %d out of range", ErrInvalidSettings, s.EndMinutes)
	}
	if s.StartMinutes == s.EndMinutes {
		return fmt.Errorf("%w: start and end must differ", ErrInvalidSettings)
	}
	// "Local" loads but means whatever zone the host runs in
	if s.Timezone == "" || s.Timezone == "Local" {
		return fmt.Errorf("%w: timezone %q is not an IANA zone", ErrInvalidSettings, s.Timezone)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSettings, s.Timezone)
	}
	return nil
}

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidSettings, value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes since midnight to "HH:MM".
func FormatClock(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
