package room

import (
	"errors"

	"github.com/spinhall/casino-server/models"
)

// RoundHistory is the round engine's view of the history writer: a
// fire-and-forget submit plus the cached recent outcomes for snapshots.
// Defined here so tests can stub it without a database.
type RoundHistory interface {
	Submit(record *models.RoundRecord)
	RecentOutcomes(roomID string, limit int) []int
}

var (
	ErrRoomClosed      = errors.New("room closed")
	ErrRoomFull        = errors.New("room full")
	ErrRoundInProgress = errors.New("race already in progress")
	ErrNotInRoom       = errors.New("player not in room")
	ErrWrongPhase      = errors.New("action not allowed in this phase")
	ErrNoSuchBet       = errors.New("no bet at that index")
	ErrNoBets          = errors.New("lock requires at least one bet")
	ErrBetTooLarge     = errors.New("bet exceeds table limit")
	ErrUnknownGame     = errors.New("unknown game type")
)
