package models

import "encoding/json"

type ScoreDetails struct {
	Runs    int     `json:"runs"`
	Wickets int     `json:"wickets"`
	Overs   float64 `json:"overs"`
	RunRate float64 `json:"runRate,omitempty"`
}

type Innings struct {
	InningsID       int             `json:"inningsId"`
	BatTeamDetails  json.RawMessage `json:"batTeamDetails,omitempty"`
	BowlTeamDetails json.RawMessage `json:"bowlTeamDetails,omitempty"`
	ScoreDetails    ScoreDetails    `json:"scoreDetails"`

	Extra Extra `json:"-"`
}

type inningsFields Innings

func (i *Innings) UnmarshalJSON(data []byte) error {
	var fields inningsFields
	extra, err := decodeWithExtra(data, &fields)
	if err != nil {
		return err
	}
	*i = Innings(fields)
	i.Extra = extra
	return nil
}

func (i Innings) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(inningsFields(i), i.Extra)
}

type Scorecard struct {
	ScoreCard       []Innings       `json:"scoreCard"`
	MatchHeader     json.RawMessage `json:"matchHeader,omitempty"`
	Status          string          `json:"status"`
	IsMatchComplete bool            `json:"isMatchComplete"`

	Extra Extra `json:"-"`
}

type scorecardFields Scorecard

func (s *Scorecard) UnmarshalJSON(data []byte) error {
	var fields scorecardFields
	extra, err := decodeWithExtra(data, &fields)
	if err != nil {
		return err
	}
	*s = Scorecard(fields)
	s.Extra = extra
	return nil
}

func (s Scorecard) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(scorecardFields(s), s.Extra)
}

type ScorecardDocument struct {
	MatchID       int64     `json:"matchId"`
	Scorecard     Scorecard `json:"scorecard"`
	LastFetchedAt int64     `json:"lastFetchedAt"`
}

// Complete reports whether the document holds at least one innings
func (d ScorecardDocument) Complete() bool {
	return len(d.Scorecard.ScoreCard) > 0
}
