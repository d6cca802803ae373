package room

import (
	"context"
	"time"

	"github.com/spinhall/casino-server/logger"
	"github.com/spinhall/casino-server/models"
	"github.com/spinhall/casino-server/network"
	"github.com/spinhall/casino-server/state"
	"github.com/spinhall/casino-server/wallet"
)

// SetReady toggles a player's ready flag. When every seated player is ready
// and the table is full enough, the countdown starts on the spot.
func (r *Room) SetReady(userID int64, ready bool) error {
	return r.do(func() error {
		if r.Game != models.GameDuckRace {
			return ErrWrongGame
		}
		p, ok := r.players[userID]
		if !ok {
			return ErrNotInRoom
		}
		if r.Phase() != PhaseWaiting {
			return ErrWrongPhase
		}

		p.Ready = ready
		r.broadcastAll(network.MsgTypeReadyChanged, &network.ReadyChangedMsg{UserID: userID, Ready: ready})
		if ready {
			r.maybeStartCountdown(userID)
		}
		return nil
	})
}

func (r *Room) maybeStartCountdown(triggeredBy int64) {
	if r.Phase() != PhaseWaiting || len(r.players) < r.cfg.MinSeats {
		return
	}
	for _, p := range r.players {
		if !p.Ready || !p.Connected {
			return
		}
	}
	r.machine.ChangeTo(&raceCountdown{room: r, triggeredBy: triggeredBy})
}

type raceWaiting struct{ room *Room }

func (s *raceWaiting) Name() string { return PhaseWaiting }
func (s *raceWaiting) Enter() {
	s.room.broadcastAll(network.MsgTypePhaseStarted, &network.PhaseStartedMsg{Phase: PhaseWaiting})
}
func (s *raceWaiting) Exit()                {}
func (s *raceWaiting) Tick(_ time.Duration) {}
func (s *raceWaiting) SecondsLeft() int     { return 0 }

type raceCountdown struct {
	room        *Room
	triggeredBy int64
	cd          state.Countdown
}

func (s *raceCountdown) Name() string { return PhaseCountdown }

// Enter collects the stake from every participant before the countdown is
// armed. A single failed debit aborts the whole start: everyone already
// debited is refunded and the room drops back to waiting.
func (s *raceCountdown) Enter() {
	r := s.room
	r.roundStart = time.Now()

	if !r.collectStakes() {
		r.machine.ChangeTo(&raceWaiting{room: r})
		for _, p := range r.seatOrdered() {
			if p.Connected {
				r.sendSnapshot(p)
			}
		}
		return
	}
	r.pot = r.Stake * int64(len(r.players))

	s.cd.OnSecond = func(secondsLeft int) {
		r.broadcastAll(network.MsgTypeCountdownTick, &network.CountdownTickMsg{
			Phase:       PhaseCountdown,
			SecondsLeft: secondsLeft,
		})
	}
	s.cd.OnExpire = func() {
		r.machine.ChangeTo(&raceRacing{room: r})
	}
	s.cd.Reset(r.cfg.CountdownSeconds)

	r.broadcastAll(network.MsgTypePhaseStarted, &network.PhaseStartedMsg{
		Phase:       PhaseCountdown,
		SecondsLeft: s.cd.SecondsLeft(),
		TriggeredBy: s.triggeredBy,
	})
}
func (s *raceCountdown) Exit()                      {}
func (s *raceCountdown) Tick(elapsed time.Duration) { s.cd.Tick(elapsed) }
func (s *raceCountdown) SecondsLeft() int           { return s.cd.SecondsLeft() }

// collectStakes debits the entry stake from every player in seat order and
// reports whether all debits went through. On failure the already-debited
// players are credited back and everyone gets a cancellation plus a fresh
// snapshot, so no wallet is ever left short without a race.
func (r *Room) collectStakes() bool {
	var debited []*Player
	for _, p := range r.seatOrdered() {
		newBalance, err := r.deps.Wallet.Adjust(context.Background(), p.UserID, r.Stake, wallet.KindDebit)
		if err != nil {
			logger.Log.Warnw("stake debit failed",
				"room", r.ID, "user", p.UserID, "stake", r.Stake, "err", err)
			if r.deps.Monitor != nil {
				r.deps.Monitor.IncWalletFailures()
			}
			for _, d := range debited {
				r.refundPlayer(d)
			}
			r.broadcastAll(network.MsgTypeRoundCancelled, &network.RoundCancelledMsg{
				RoundID: r.roundID,
				Reason:  "stake collection failed",
			})
			for _, q := range r.players {
				q.Ready = false
			}
			return false
		}
		p.TotalStaked = r.Stake
		debited = append(debited, p)
		r.send(p.UserID, network.MsgTypeBalanceUpdate, &network.BalanceUpdateMsg{
			Balance: newBalance,
			Reason:  network.BalanceReasonStake,
		})
	}
	return true
}

type raceRacing struct {
	room *Room
	acc  time.Duration
}

func (s *raceRacing) Name() string { return PhaseRacing }
func (s *raceRacing) Enter() {
	r := s.room
	for _, p := range r.players {
		p.Position = 0
	}
	r.broadcastAll(network.MsgTypePhaseStarted, &network.PhaseStartedMsg{Phase: PhaseRacing})
	r.broadcastAll(network.MsgTypeRaceStarted, &network.RaceStartedMsg{
		RoundID: r.roundID,
		Finish:  r.cfg.RaceFinish,
		Pot:     r.pot,
	})
}
func (s *raceRacing) Exit()            {}
func (s *raceRacing) SecondsLeft() int { return 0 }

func (s *raceRacing) Tick(elapsed time.Duration) {
	s.acc += elapsed
	step := s.room.cfg.RaceTick()
	if step <= 0 {
		step = tickInterval
	}
	for s.acc >= step {
		s.acc -= step
		if s.room.advanceRace() {
			return
		}
	}
}

// advanceRace moves every participant forward one step and reports whether
// the race finished. Disconnected players keep racing; their stake is in
// the pot. Ties on the same tick go to the furthest position, then the
// lowest seat.
func (r *Room) advanceRace() bool {
	ordered := r.seatOrdered()
	positions := make([]network.LanePosition, 0, len(ordered))
	var winner *Player
	for _, p := range ordered {
		p.Position += r.deps.Rand.DrawAdvance(r.cfg.RaceAdvanceMin, r.cfg.RaceAdvanceMax)
		positions = append(positions, network.LanePosition{
			UserID:   p.UserID,
			Seat:     p.Seat,
			Position: p.Position,
		})
		if p.Position >= r.cfg.RaceFinish {
			if winner == nil || p.Position > winner.Position {
				winner = p
			}
		}
	}
	r.broadcastAll(network.MsgTypeRaceProgress, &network.RaceProgressMsg{Positions: positions})

	if winner == nil {
		return false
	}
	r.winnerID = winner.UserID
	r.machine.ChangeTo(&raceFinished{room: r})
	return true
}

type raceFinished struct {
	room *Room
	cd   state.Countdown
}

func (s *raceFinished) Name() string { return PhaseFinished }
func (s *raceFinished) Enter() {
	r := s.room
	r.settleRace()
	s.cd.OnExpire = r.resetToWaiting
	s.cd.Reset(r.cfg.ResultsSeconds)
}
func (s *raceFinished) Exit()                      {}
func (s *raceFinished) Tick(elapsed time.Duration) { s.cd.Tick(elapsed) }
func (s *raceFinished) SecondsLeft() int           { return s.cd.SecondsLeft() }

// settleRace pays the pot to the winner and fans out ranked results. Every
// participant, including disconnected ones, gets a tailored copy; sends to
// absent sessions are dropped by the registry.
func (r *Room) settleRace() {
	winner, ok := r.players[r.winnerID]
	if !ok {
		logger.Log.Errorw("race finished without winner", "room", r.ID, "round", r.roundID)
		r.abortRound("winner missing")
		return
	}

	var winnerBalance int64
	newBalance, err := r.deps.Wallet.Adjust(context.Background(), winner.UserID, r.pot, wallet.KindCredit)
	if err != nil {
		logger.Log.Errorw("pot credit failed",
			"room", r.ID, "user", winner.UserID, "pot", r.pot, "err", err)
		if r.deps.Monitor != nil {
			r.deps.Monitor.IncWalletFailures()
		}
	} else {
		winnerBalance = newBalance
		r.send(winner.UserID, network.MsgTypeBalanceUpdate, &network.BalanceUpdateMsg{
			Balance: newBalance,
			Reason:  network.BalanceReasonWin,
		})
	}

	// rank by final position, furthest first, seat as tiebreak
	ranked := r.seatOrdered()
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j-1].Position < ranked[j].Position; j-- {
			ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
		}
	}

	var (
		totalStake int64
		shared     []network.PlayerResultMsg
		records    []models.PlayerRoundResult
	)
	for rank, p := range ranked {
		totalStake += p.TotalStaked
		winnings := int64(0)
		if p.UserID == winner.UserID {
			winnings = r.pot
		}
		shared = append(shared, network.PlayerResultMsg{
			UserID:   p.UserID,
			Seat:     p.Seat,
			Rank:     rank + 1,
			Staked:   p.TotalStaked,
			Winnings: winnings,
		})
		records = append(records, models.PlayerRoundResult{
			UserID:   p.UserID,
			Username: p.Username,
			Seat:     p.Seat,
			Rank:     rank + 1,
			Staked:   p.TotalStaked,
			Winnings: winnings,
		})
	}

	base := network.RoundFinishedMsg{
		RoundID:     r.roundID,
		WinnerID:    winner.UserID,
		Results:     shared,
		NextRoundIn: r.cfg.ResultsSeconds,
		TotalStake:  totalStake,
		TotalPayout: r.pot,
	}
	for rank, p := range ranked {
		msg := base
		balance := winnerBalance
		if p.UserID != winner.UserID {
			balance, _ = r.deps.Wallet.Balance(context.Background(), p.UserID)
		}
		winnings := int64(0)
		if p.UserID == winner.UserID {
			winnings = r.pot
		}
		msg.Own = &network.OwnResultMsg{
			Rank:       rank + 1,
			Staked:     p.TotalStaked,
			Winnings:   winnings,
			NewBalance: balance,
		}
		r.send(p.UserID, network.MsgTypeRoundFinished, &msg)
	}

	for _, p := range r.players {
		p.TotalStaked = 0
	}

	if r.deps.History != nil {
		r.deps.History.Submit(&models.RoundRecord{
			RoundID:    r.roundID,
			RoomID:     r.ID,
			RoomName:   r.Name,
			Game:       r.Game,
			WinnerID:   winner.UserID,
			Pot:        r.pot,
			TotalStake: totalStake,
			TotalPaid:  r.pot,
			Players:    records,
			FinishedAt: time.Now(),
		})
	}
	if r.deps.Monitor != nil {
		r.deps.Monitor.RoundFinished(r.Game, time.Since(r.roundStart))
	}
}
