// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/spinhall/casino-server/models"
)

// RoundStore is the durable side of the round history writer.
type RoundStore interface {
	SaveRound(record *models.RoundRecord) error
	PlayerRounds(userID int64, limit int) ([]models.RoundRecord, error)
	SaveBigWin(roundID string, result models.PlayerRoundResult) error
	Close() error
}

var ErrRecordNotFound = fmt.Errorf("record not found")
