package models

import "encoding/json"

type CommentaryEntry struct {
	CommText    string  `json:"commText"`
	Timestamp   int64   `json:"timestamp"`
	BallNbr     int     `json:"ballNbr"`
	OverNumber  float64 `json:"overNumber,omitempty"`
	InningsID   int     `json:"inningsId"`
	Event       string  `json:"event,omitempty"`
	BatTeamName string  `json:"batTeamName,omitempty"`

	Extra Extra `json:"-"`
}

type commentaryEntryFields CommentaryEntry

func (c *CommentaryEntry) UnmarshalJSON(data []byte) error {
	var fields commentaryEntryFields
	extra, err := decodeWithExtra(data, &fields)
	if err != nil {
		return err
	}
	*c = CommentaryEntry(fields)
	c.Extra = extra
	return nil
}

func (c CommentaryEntry) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(commentaryEntryFields(c), c.Extra)
}

// CommentaryKey identifies one ball (or one non-ball message) across fetches
type CommentaryKey struct {
	InningsID int
	Timestamp int64
	BallNbr   int
}

func (c CommentaryEntry) Key() CommentaryKey {
	return CommentaryKey{InningsID: c.InningsID, Timestamp: c.Timestamp, BallNbr: c.BallNbr}
}

type CommentaryResponse struct {
	CommentaryList []CommentaryEntry `json:"commentaryList"`
	MatchHeader    json.RawMessage   `json:"matchHeader,omitempty"`
	Miniscore      json.RawMessage   `json:"miniscore,omitempty"`
}

type CommentaryDocument struct {
	MatchID       int64             `json:"matchId"`
	Entries       []CommentaryEntry `json:"entries"`
	Miniscore     json.RawMessage   `json:"miniscore,omitempty"`
	LastFetchedAt int64             `json:"lastFetchedAt"`
}
