// models/models.go
package models

import (
	"time"

	"github.com/spinhall/casino-server/games/roulette"
)

// Game mode identifiers, also used as the room's game type on the wire.
const (
	GameRoulette = "roulette"
	GameDuckRace = "duckrace"
)

// BigWinThreshold is the payout-to-stake ratio above which a public
// congratulation is raised.
const BigWinThreshold = 10

// PlayerRoundResult is one player's slice of a finished round.
type PlayerRoundResult struct {
	UserID   int64                `json:"user_id"`
	Username string               `json:"username"`
	Seat     int                  `json:"seat"`
	Rank     int                  `json:"rank,omitempty"`
	Staked   int64                `json:"staked"`
	Winnings int64                `json:"winnings"`
	Bets     []roulette.Bet       `json:"bets,omitempty"`
	Wins     []roulette.WinRecord `json:"wins,omitempty"`
}

// RoundRecord is the complete, typed record of a finished round handed to the
// history writer. Storage shape is the writer's concern.
type RoundRecord struct {
	RoundID    string              `json:"round_id"`
	RoomID     string              `json:"room_id"`
	RoomName   string              `json:"room_name"`
	Game       string              `json:"game"`
	Outcome    *roulette.Outcome   `json:"outcome,omitempty"`
	WinnerID   int64               `json:"winner_id,omitempty"`
	Pot        int64               `json:"pot"`
	TotalStake int64               `json:"total_stake"`
	TotalPaid  int64               `json:"total_paid"`
	Players    []PlayerRoundResult `json:"players"`
	FinishedAt time.Time           `json:"finished_at"`
}

// BigWins returns the players whose payout-to-stake ratio meets the
// threshold, for the congratulation side-channel.
func (r *RoundRecord) BigWins() []PlayerRoundResult {
	var wins []PlayerRoundResult
	for _, p := range r.Players {
		if p.Staked > 0 && p.Winnings >= p.Staked*BigWinThreshold {
			wins = append(wins, p)
		}
	}
	return wins
}
