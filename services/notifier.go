package services

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/spinhall/casino-server/models"
)

// Notifier is the public chat / analytics side-channel. Every call is best
// effort: failures are logged by the caller and never reach players.
type Notifier interface {
	PublishBigWin(roundID string, result models.PlayerRoundResult) error
	PublishRound(record *models.RoundRecord) error
}

const (
	subjectBigWin = "casino.bigwin"
	subjectRounds = "casino.rounds"
)

// NATSNotifier publishes congratulations and round summaries on NATS.
type NATSNotifier struct {
	nc *nats.Conn
}

func NewNATSNotifier(url string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url, nats.Name("casino-server"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSNotifier{nc: nc}, nil
}

type bigWinEvent struct {
	RoundID  string `json:"round_id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Staked   int64  `json:"staked"`
	Winnings int64  `json:"winnings"`
	Message  string `json:"message"`
}

func (n *NATSNotifier) PublishBigWin(roundID string, result models.PlayerRoundResult) error {
	event := bigWinEvent{
		RoundID:  roundID,
		UserID:   result.UserID,
		Username: result.Username,
		Staked:   result.Staked,
		Winnings: result.Winnings,
		Message: fmt.Sprintf("%s just won %d on a %d stake! 🎉",
			result.Username, result.Winnings, result.Staked),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.nc.Publish(subjectBigWin, data)
}

func (n *NATSNotifier) PublishRound(record *models.RoundRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return n.nc.Publish(subjectRounds, data)
}

func (n *NATSNotifier) Close() {
	n.nc.Drain()
}
