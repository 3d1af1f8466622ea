package models

type Player struct {
	ID           FlexInt `json:"id"`
	Name         string  `json:"name"`
	FullName     string  `json:"fullName,omitempty"`
	Role         string  `json:"role,omitempty"`
	BattingStyle string  `json:"battingStyle,omitempty"`
	BowlingStyle string  `json:"bowlingStyle,omitempty"`
	Captain      bool    `json:"captain,omitempty"`
	Keeper       bool    `json:"keeper,omitempty"`
	IsHeader     bool    `json:"isHeader,omitempty"`

	Extra Extra `json:"-"`
}

type playerFields Player

func (p *Player) UnmarshalJSON(data []byte) error {
	var fields playerFields
	extra, err := decodeWithExtra(data, &fields)
	if err != nil {
		return err
	}
	*p = Player(fields)
	p.Extra = extra
	return nil
}

func (p Player) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(playerFields(p), p.Extra)
}

// TeamSquadResponse is the payload of /mcenter/v1/{matchId}/team/{teamId}. Section
// titles such as "playing XI" arrive as header entries in the player list.
type TeamSquadResponse struct {
	Player []Player `json:"player"`
}

// Players returns the roster without section headers
func (r TeamSquadResponse) Players() []Player {
	players := make([]Player, 0, len(r.Player))
	for _, p := range r.Player {
		if p.IsHeader || p.ID == 0 {
			continue
		}
		players = append(players, p)
	}
	return players
}

type TeamSquad struct {
	TeamID   int64    `json:"teamId"`
	TeamName string   `json:"teamName"`
	Players  []Player `json:"players"`
}

type SquadDocument struct {
	MatchID       int64     `json:"matchId"`
	Team1         TeamSquad `json:"team1"`
	Team2         TeamSquad `json:"team2"`
	LastFetchedAt int64     `json:"lastFetchedAt"`
}

// Complete reports whether both rosters are populated
func (d SquadDocument) Complete() bool {
	return len(d.Team1.Players) > 0 && len(d.Team2.Players) > 0
}
