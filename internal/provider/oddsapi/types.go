package oddsapi

import (
	"strconv"
	"time"
)

// Wire types mirroring The Odds API v4 JSON. Fields the pipeline never
// reads are omitted.

// Event is one fixture from the events endpoint.
type Event struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	SportTitle   string    `json:"sport_title,omitempty"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
}

// OddsEvent is a fixture with per-book market prices attached.
type OddsEvent struct {
	Event
	Bookmakers []Bookmaker `json:"bookmakers"`
}

// Bookmaker groups one book's markets for an event.
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title,omitempty"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market is one market's outcome list at a book. The markets
// availability endpoint returns these without outcomes.
type Market struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"last_update,omitempty"`
	Outcomes   []Outcome `json:"outcomes,omitempty"`
}

// Outcome is one priced side. Description carries the player name on
// prop markets.
type Outcome struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       int      `json:"price"`
	Point       *float64 `json:"point,omitempty"`
}

// ScoreEvent is one fixture from the scores endpoint. Scores is null
// until the game starts.
type ScoreEvent struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	CommenceTime time.Time   `json:"commence_time"`
	Completed    bool        `json:"completed"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Scores       []TeamScore `json:"scores"`
	LastUpdate   *time.Time  `json:"last_update,omitempty"`
}

// TeamScore is one team's final or current score. The API sends the
// value as a string.
type TeamScore struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

// ScoreFor returns the numeric score for the named team.
func (s ScoreEvent) ScoreFor(team string) (float64, bool) {
	for _, ts := range s.Scores {
		if ts.Name != team {
			continue
		}
		value, err := strconv.ParseFloat(ts.Score, 64)
		if err != nil {
			return 0, false
		}
		return value, true
	}
	return 0, false
}

// HomeScore returns the home team's score.
func (s ScoreEvent) HomeScore() (float64, bool) { return s.ScoreFor(s.HomeTeam) }

// AwayScore returns the away team's score.
func (s ScoreEvent) AwayScore() (float64, bool) { return s.ScoreFor(s.AwayTeam) }

// HistorySample is one point of a line-movement series: the event's
// full odds snapshot as the provider recorded it at At.
type HistorySample struct {
	At    time.Time `json:"at"`
	Event OddsEvent `json:"event"`
}
