// Package staleness decides whether a previously fetched document needs re-fetching.
package staleness

import "time"

// Per-entity TTLs
const (
	ScorecardTTL  = 60 * time.Second
	SquadTTL      = 10 * time.Minute
	CommentaryTTL = 30 * time.Second
)

// ShouldRefresh reports whether an entity last fetched at lastFetchedAtMs (epoch
// milliseconds, 0 for never) must be fetched again. Incomplete entities always refresh.
func ShouldRefresh(now time.Time, lastFetchedAtMs int64, ttl time.Duration, isComplete bool) bool {
	if lastFetchedAtMs <= 0 || !isComplete {
		return true
	}
	age := now.UnixMilli() - lastFetchedAtMs
	return age >= ttl.Milliseconds()
}

// Policy binds a TTL and a clock for one entity type.
type Policy struct {
	TTL time.Duration
	Now func() time.Time
}

var (
	Scorecard  = Policy{TTL: ScorecardTTL}
	Squad      = Policy{TTL: SquadTTL}
	Commentary = Policy{TTL: CommentaryTTL}
)

// ShouldRefresh applies the policy at the current time
func (p Policy) ShouldRefresh(lastFetchedAtMs int64, isComplete bool) bool {
	return ShouldRefresh(p.now(), lastFetchedAtMs, p.TTL, isComplete)
}

// Fresh is the inverse of ShouldRefresh
func (p Policy) Fresh(lastFetchedAtMs int64, isComplete bool) bool {
	return !p.ShouldRefresh(lastFetchedAtMs, isComplete)
}

// WithClock returns a copy of p reading time from now
func (p Policy) WithClock(now func() time.Time) Policy {
	p.Now = now
	return p
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
