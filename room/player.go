package room

import (
	"time"

	"github.com/spinhall/casino-server/games/roulette"
	"github.com/spinhall/casino-server/network"
)

// Player is a seat in a room. All fields are owned by the room worker
// goroutine; nothing outside the room may touch them.
type Player struct {
	UserID      int64
	Username    string
	Seat        int
	Connected   bool
	Ready       bool
	Locked      bool
	Bets        []roulette.Bet
	TotalStaked int64
	Position    int
	JoinedAt    time.Time
}

func (p *Player) info() network.PlayerInfo {
	return network.PlayerInfo{
		UserID:      p.UserID,
		Username:    p.Username,
		Seat:        p.Seat,
		Connected:   p.Connected,
		Ready:       p.Ready,
		Locked:      p.Locked,
		BetCount:    len(p.Bets),
		TotalStaked: p.TotalStaked,
		Position:    p.Position,
	}
}

func (p *Player) resetRound() {
	p.Ready = false
	p.Locked = false
	p.Bets = nil
	p.TotalStaked = 0
	p.Position = 0
}
