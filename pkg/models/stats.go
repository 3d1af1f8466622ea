package models

// Series stat types fetched by the series stats job
const (
	StatsMostRuns     = "mostRuns"
	StatsMostWickets  = "mostWickets"
	StatsHighestScore = "highestScore"
)

var SeriesStatTypes = []string{StatsMostRuns, StatsMostWickets, StatsHighestScore}

type StatsRow struct {
	Values []string `json:"values"`
}

type AppIndex struct {
	SeoTitle string `json:"seoTitle"`
	WebURL   string `json:"webURL,omitempty"`
}

type SeriesStatsResponse struct {
	Headers  []string   `json:"headers"`
	Values   []StatsRow `json:"values"`
	AppIndex *AppIndex  `json:"appIndex,omitempty"`

	Extra Extra `json:"-"`
}

type seriesStatsFields SeriesStatsResponse

func (s *SeriesStatsResponse) UnmarshalJSON(data []byte) error {
	var fields seriesStatsFields
	extra, err := decodeWithExtra(data, &fields)
	if err != nil {
		return err
	}
	*s = SeriesStatsResponse(fields)
	s.Extra = extra
	return nil
}

func (s SeriesStatsResponse) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(seriesStatsFields(s), s.Extra)
}

// StatsTable is one stat type rendered as header + rows
type StatsTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Table drops the per-row wrapper objects
func (s SeriesStatsResponse) Table() StatsTable {
	rows := make([][]string, 0, len(s.Values))
	for _, v := range s.Values {
		rows = append(rows, v.Values)
	}
	return StatsTable{Headers: s.Headers, Rows: rows}
}

type SeriesStatsDocument struct {
	SeriesID      int64                 `json:"seriesId"`
	SeriesName    string                `json:"seriesName"`
	Stats         map[string]StatsTable `json:"stats"`
	LastFetchedAt int64                 `json:"lastFetchedAt"`
}
