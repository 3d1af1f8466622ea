package pausewindow

import "time"

// Window is one concrete occurrence of the daily pause interval, [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// WindowAt resolves the occurrence of the window that is relevant to now.
//
// Start and end are first placed on now's local date. A wrapping window
// (start >= end) then has either its start moved back a day, when now is still
// before today's end, or its end moved forward a day otherwise.
func (s Settings) WindowAt(now time.Time, loc *time.Location) Window {
	local := now.In(loc)
	start := clockOn(local, 0, s.StartMinutes)
	end := clockOn(local, 0, s.EndMinutes)

	if s.Wraps() {
		if local.Before(end) {
			start = clockOn(local, -1, s.StartMinutes)
		} else {
			end = clockOn(local, 1, s.EndMinutes)
		}
	}

	return Window{Start: start, End: end}
}

// PausedAt reports whether now is inside the window. Disabled settings never pause.
func (s Settings) PausedAt(now time.Time, loc *time.Location) bool {
	if !s.Enabled {
		return false
	}
	return s.WindowAt(now, loc).Contains(now)
}

// NextPauseAt returns the next instant the window opens. ok is false when disabled.
func (s Settings) NextPauseAt(now time.Time, loc *time.Location) (time.Time, bool) {
	if !s.Enabled {
		return time.Time{}, false
	}

	w := s.WindowAt(now, loc)
	if now.Before(w.Start) {
		return w.Start, true
	}
	return clockOn(w.Start, 1, s.StartMinutes), true
}

// NextResumeAt returns the close of the current window when paused, otherwise the
// close of the next window. ok is false when disabled.
func (s Settings) NextResumeAt(now time.Time, loc *time.Location) (time.Time, bool) {
	if !s.Enabled {
		return time.Time{}, false
	}

	w := s.WindowAt(now, loc)
	if w.Contains(now) || now.Before(w.Start) {
		return w.End, true
	}
	return clockOn(w.End, 1, s.EndMinutes), true
}

// SecondsUntilResume is 0 when not paused, else the whole seconds left in the window,
// rounded down. now + SecondsUntilResume equals NextResumeAt only for a now without a
// fractional second; Service truncates before calling.
func (s Settings) SecondsUntilResume(now time.Time, loc *time.Location) int64 {
	if !s.Enabled {
		return 0
	}

	w := s.WindowAt(now, loc)
	if !w.Contains(now) {
		return 0
	}
	return int64(w.End.Sub(now) / time.Second)
}

// clockOn builds the instant at minutes past midnight on ref's local date shifted by
// dayOffset days. time.Date normalises DST gaps.
func clockOn(ref time.Time, dayOffset, minutes int) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d+dayOffset, minutes/60, minutes%60, 0, 0, ref.Location())
}
