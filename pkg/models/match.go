package models

import (
	"encoding/json"
	"strings"
)

// Match states reported while a match is under way
var liveStates = map[string]struct{}{
	"in progress":   {},
	"innings break": {},
	"stumps":        {},
	"lunch":         {},
	"tea":           {},
	"drink":         {},
	"rain":          {},
	"wet outfield":  {},
	"toss":          {},
	"delay":         {},
}

// NormalizeState lowercases and trims a match state
func NormalizeState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}

// IsLiveState reports whether a normalized state means the match is under way
func IsLiveState(state string) bool {
	_, ok := liveStates[NormalizeState(state)]
	return ok
}

type LiveMatchesResponse struct {
	TypeMatches []TypeMatches `json:"typeMatches"`
}

type TypeMatches struct {
	MatchType     string          `json:"matchType"`
	SeriesMatches []SeriesMatches `json:"seriesMatches"`
}

// SeriesMatches entries are either a series wrapper or an advert slot
type SeriesMatches struct {
	SeriesAdWrapper *SeriesAdWrapper `json:"seriesAdWrapper,omitempty"`
}

type SeriesAdWrapper struct {
	SeriesID   FlexInt `json:"seriesId"`
	SeriesName string  `json:"seriesName"`
	Matches    []Match `json:"matches"`
}

type Match struct {
	MatchInfo  MatchInfo       `json:"matchInfo"`
	MatchScore json.RawMessage `json:"matchScore,omitempty"`
}

// Matches flattens type -> series -> matches, skipping advert slots
func (r *LiveMatchesResponse) Matches() []Match {
	var out []Match
	for _, tm := range r.TypeMatches {
		for _, sm := range tm.SeriesMatches {
			if sm.SeriesAdWrapper == nil {
				continue
			}
			out = append(out, sm.SeriesAdWrapper.Matches...)
		}
	}
	return out
}

type Team struct {
	TeamID    FlexInt `json:"teamId"`
	TeamName  string  `json:"teamName"`
	TeamSName string  `json:"teamSName,omitempty"`
	ImageID   FlexInt `json:"imageId,omitempty"`
}

type Venue struct {
	ID       FlexInt `json:"id,omitempty"`
	Ground   string  `json:"ground"`
	City     string  `json:"city"`
	Timezone string  `json:"timezone,omitempty"`
}

type MatchInfo struct {
	MatchID     FlexInt `json:"matchId"`
	SeriesID    FlexInt `json:"seriesId"`
	SeriesName  string  `json:"seriesName"`
	MatchDesc   string  `json:"matchDesc"`
	MatchFormat string  `json:"matchFormat"`
	StartDate   FlexInt `json:"startDate"`
	EndDate     FlexInt `json:"endDate"`
	State       string  `json:"state"`
	Status      string  `json:"status"`
	Team1       Team    `json:"team1"`
	Team2       Team    `json:"team2"`
	VenueInfo   *Venue  `json:"venueInfo,omitempty"`

	Extra Extra `json:"-"`
}

type matchInfoFields MatchInfo

func (m *MatchInfo) UnmarshalJSON(data []byte) error {
	var fields matchInfoFields
	extra, err := decodeWithExtra(data, &fields)
	if err != nil {
		return err
	}
	*m = MatchInfo(fields)
	m.Extra = extra
	m.State = NormalizeState(m.State)
	return nil
}

func (m MatchInfo) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(matchInfoFields(m), m.Extra)
}

// IsLive reports whether the match is currently being played
func (m MatchInfo) IsLive() bool {
	return IsLiveState(m.State)
}

// IsUpcoming reports whether the match has not started yet
func (m MatchInfo) IsUpcoming() bool {
	switch m.State {
	case "preview", "upcoming":
		return true
	}
	return false
}

// MatchDocument is the stored form of a match in live_matches and matches
type MatchDocument struct {
	MatchID       int64           `json:"matchId"`
	MatchInfo     MatchInfo       `json:"matchInfo"`
	MatchScore    json.RawMessage `json:"matchScore,omitempty"`
	IsLive        bool            `json:"isLive"`
	LastFetchedAt int64           `json:"lastFetchedAt"`
}

// NewMatchDocument builds the stored form of m fetched at fetchedAtMs
func NewMatchDocument(m Match, fetchedAtMs int64) MatchDocument {
	return MatchDocument{
		MatchID:       m.MatchInfo.MatchID.Int64(),
		MatchInfo:     m.MatchInfo,
		MatchScore:    m.MatchScore,
		IsLive:        m.MatchInfo.IsLive(),
		LastFetchedAt: fetchedAtMs,
	}
}
