package room

import (
	"context"
	"errors"
	"time"

	"github.com/spinhall/casino-server/games/roulette"
	"github.com/spinhall/casino-server/logger"
	"github.com/spinhall/casino-server/models"
	"github.com/spinhall/casino-server/network"
	"github.com/spinhall/casino-server/state"
	"github.com/spinhall/casino-server/wallet"
)

var (
	ErrWrongGame  = errors.New("action not available in this game")
	ErrBetsLocked = errors.New("bets are locked")
)

// PlaceBet validates and debits a bet, then records it. The wallet debit
// happens before any room state changes so a failed debit leaves the room
// untouched.
func (r *Room) PlaceBet(userID int64, bet roulette.Bet) error {
	return r.do(func() error {
		p, err := r.bettingPlayer(userID)
		if err != nil {
			return err
		}
		if err := roulette.ValidateBet(bet); err != nil {
			return err
		}
		if bet.Amount > r.cfg.MaxBet {
			return ErrBetTooLarge
		}

		newBalance, err := r.deps.Wallet.Adjust(context.Background(), userID, bet.Amount, wallet.KindDebit)
		if err != nil {
			if r.deps.Monitor != nil && !errors.Is(err, wallet.ErrInsufficientFunds) {
				r.deps.Monitor.IncWalletFailures()
			}
			return err
		}

		p.Bets = append(p.Bets, bet)
		p.TotalStaked += bet.Amount
		if r.deps.Monitor != nil {
			r.deps.Monitor.IncBetsPlaced()
		}

		placed := &network.BetPlacedMsg{UserID: userID, Bet: bet, Total: p.TotalStaked}
		r.send(userID, network.MsgTypeBetPlaced, placed)
		r.send(userID, network.MsgTypeBalanceUpdate, &network.BalanceUpdateMsg{
			Balance: newBalance,
			Reason:  network.BalanceReasonBet,
		})
		r.broadcastExcept(userID, network.MsgTypeBetPlaced, placed)
		return nil
	})
}

// RemoveBet refunds and discards the bet at the given index.
func (r *Room) RemoveBet(userID int64, index int) error {
	return r.do(func() error {
		p, err := r.bettingPlayer(userID)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(p.Bets) {
			return ErrNoSuchBet
		}

		amount := p.Bets[index].Amount
		newBalance, err := r.deps.Wallet.Adjust(context.Background(), userID, amount, wallet.KindCredit)
		if err != nil {
			if r.deps.Monitor != nil {
				r.deps.Monitor.IncWalletFailures()
			}
			return err
		}

		p.Bets = append(p.Bets[:index], p.Bets[index+1:]...)
		p.TotalStaked -= amount

		removed := &network.BetRemovedMsg{UserID: userID, Index: index, Total: p.TotalStaked}
		r.send(userID, network.MsgTypeBetRemoved, removed)
		r.send(userID, network.MsgTypeBalanceUpdate, &network.BalanceUpdateMsg{
			Balance: newBalance,
			Reason:  network.BalanceReasonRemove,
		})
		r.broadcastExcept(userID, network.MsgTypeBetRemoved, removed)
		return nil
	})
}

// ClearBets refunds all of the player's bets in one wallet credit.
func (r *Room) ClearBets(userID int64) error {
	return r.do(func() error {
		p, err := r.bettingPlayer(userID)
		if err != nil {
			return err
		}
		if len(p.Bets) == 0 {
			return nil
		}

		newBalance, err := r.deps.Wallet.Adjust(context.Background(), userID, p.TotalStaked, wallet.KindCredit)
		if err != nil {
			if r.deps.Monitor != nil {
				r.deps.Monitor.IncWalletFailures()
			}
			return err
		}

		p.Bets = nil
		p.TotalStaked = 0

		cleared := &network.BetsClearedMsg{UserID: userID}
		r.send(userID, network.MsgTypeBetsCleared, cleared)
		r.send(userID, network.MsgTypeBalanceUpdate, &network.BalanceUpdateMsg{
			Balance: newBalance,
			Reason:  network.BalanceReasonRemove,
		})
		r.broadcastExcept(userID, network.MsgTypeBetsCleared, cleared)
		return nil
	})
}

// LockBets freezes the player's bets. The first lock of an idle table starts
// the betting countdown; once every player holding bets has locked, the spin
// starts early. The lock-changed event always goes out before any phase
// transition it triggers.
func (r *Room) LockBets(userID int64) error {
	return r.do(func() error {
		p, err := r.bettingPlayer(userID)
		if err != nil {
			return err
		}
		if len(p.Bets) == 0 {
			return ErrNoBets
		}

		p.Locked = true
		r.broadcastAll(network.MsgTypeLockChanged, &network.LockChangedMsg{UserID: userID, Locked: true})

		switch r.Phase() {
		case PhaseWaiting:
			r.machine.ChangeTo(&rouletteBetting{room: r, triggeredBy: userID})
		case PhaseBetting:
			if r.allBettorsLocked() {
				r.machine.ChangeTo(&rouletteSpinning{room: r})
			}
		}
		return nil
	})
}

// bettingPlayer resolves the acting player and enforces when bet mutations
// are legal: roulette rooms only, during waiting or betting, before lock.
func (r *Room) bettingPlayer(userID int64) (*Player, error) {
	if r.Game != models.GameRoulette {
		return nil, ErrWrongGame
	}
	p, ok := r.players[userID]
	if !ok {
		return nil, ErrNotInRoom
	}
	switch r.Phase() {
	case PhaseWaiting, PhaseBetting:
	default:
		return nil, ErrWrongPhase
	}
	if p.Locked {
		return nil, ErrBetsLocked
	}
	return p, nil
}

func (r *Room) allBettorsLocked() bool {
	for _, p := range r.players {
		if len(p.Bets) > 0 && !p.Locked {
			return false
		}
	}
	return true
}

func (r *Room) anyBets() bool {
	for _, p := range r.players {
		if len(p.Bets) > 0 {
			return true
		}
	}
	return false
}

type rouletteWaiting struct{ room *Room }

func (s *rouletteWaiting) Name() string { return PhaseWaiting }
func (s *rouletteWaiting) Enter() {
	s.room.broadcastAll(network.MsgTypePhaseStarted, &network.PhaseStartedMsg{Phase: PhaseWaiting})
}
func (s *rouletteWaiting) Exit()                {}
func (s *rouletteWaiting) Tick(_ time.Duration) {}
func (s *rouletteWaiting) SecondsLeft() int     { return 0 }

type rouletteBetting struct {
	room        *Room
	triggeredBy int64
	cd          state.Countdown
}

func (s *rouletteBetting) Name() string { return PhaseBetting }
func (s *rouletteBetting) Enter() {
	r := s.room
	r.roundStart = time.Now()
	s.cd.OnSecond = func(secondsLeft int) {
		r.broadcastAll(network.MsgTypeCountdownTick, &network.CountdownTickMsg{
			Phase:       PhaseBetting,
			SecondsLeft: secondsLeft,
		})
	}
	s.cd.OnExpire = func() {
		if !r.anyBets() {
			r.machine.ChangeTo(&rouletteWaiting{room: r})
			return
		}
		r.machine.ChangeTo(&rouletteSpinning{room: r})
	}
	s.cd.Reset(r.cfg.BettingSeconds)

	r.broadcastAll(network.MsgTypePhaseStarted, &network.PhaseStartedMsg{
		Phase:       PhaseBetting,
		SecondsLeft: s.cd.SecondsLeft(),
		TriggeredBy: s.triggeredBy,
	})
}
func (s *rouletteBetting) Exit()                      {}
func (s *rouletteBetting) Tick(elapsed time.Duration) { s.cd.Tick(elapsed) }
func (s *rouletteBetting) SecondsLeft() int           { return s.cd.SecondsLeft() }

type rouletteSpinning struct {
	room *Room
	cd   state.Countdown
}

func (s *rouletteSpinning) Name() string { return PhaseSpinning }
func (s *rouletteSpinning) Enter() {
	r := s.room

	// the outcome is fixed the moment the wheel starts; the spin duration
	// is presentation only
	number := r.deps.Rand.DrawOutcome(roulette.MaxNumber)
	outcome, err := roulette.Classify(number)
	if err != nil {
		logger.Log.Errorw("outcome draw out of range", "room", r.ID, "number", number)
		outcome, _ = roulette.Classify(0)
	}
	r.outcome = &outcome

	s.cd.OnExpire = func() {
		r.machine.ChangeTo(&rouletteResults{room: r})
	}
	s.cd.Reset(r.cfg.SpinSeconds)

	r.broadcastAll(network.MsgTypePhaseStarted, &network.PhaseStartedMsg{
		Phase:       PhaseSpinning,
		SecondsLeft: s.cd.SecondsLeft(),
	})
	r.broadcastAll(network.MsgTypeSpinStarted, &network.SpinStartedMsg{
		RoundID:     r.roundID,
		SecondsLeft: s.cd.SecondsLeft(),
	})
}
func (s *rouletteSpinning) Exit()                      {}
func (s *rouletteSpinning) Tick(elapsed time.Duration) { s.cd.Tick(elapsed) }
func (s *rouletteSpinning) SecondsLeft() int           { return s.cd.SecondsLeft() }

type rouletteResults struct {
	room *Room
	cd   state.Countdown
}

func (s *rouletteResults) Name() string { return PhaseResults }
func (s *rouletteResults) Enter() {
	r := s.room
	r.settleRoulette()
	s.cd.OnExpire = r.resetToWaiting
	s.cd.Reset(r.cfg.ResultsSeconds)
}
func (s *rouletteResults) Exit()                      {}
func (s *rouletteResults) Tick(elapsed time.Duration) { s.cd.Tick(elapsed) }
func (s *rouletteResults) SecondsLeft() int           { return s.cd.SecondsLeft() }

// settleRoulette resolves every player's bets against the drawn outcome,
// credits winners and fans out the round-finished events. Each bettor gets
// a tailored copy with their own result and balance at send time.
func (r *Room) settleRoulette() {
	outcome := r.outcome
	if outcome == nil {
		logger.Log.Errorw("results entered without outcome", "room", r.ID)
		return
	}

	type settled struct {
		player *Player
		result roulette.Result
	}

	var (
		totalStake  int64
		totalPayout int64
		all         []settled
		shared      []network.PlayerResultMsg
		records     []models.PlayerRoundResult
	)
	for _, p := range r.seatOrdered() {
		if len(p.Bets) == 0 {
			continue
		}
		res, err := roulette.ResolveRound(p.Bets, outcome.Number)
		if err != nil {
			logger.Log.Errorw("bet resolution failed", "room", r.ID, "user", p.UserID, "err", err)
			continue
		}
		totalStake += res.TotalStake
		totalPayout += res.TotalPayout
		all = append(all, settled{player: p, result: res})
		shared = append(shared, network.PlayerResultMsg{
			UserID:   p.UserID,
			Seat:     p.Seat,
			Staked:   res.TotalStake,
			Winnings: res.TotalPayout,
		})
		records = append(records, models.PlayerRoundResult{
			UserID:   p.UserID,
			Username: p.Username,
			Seat:     p.Seat,
			Staked:   res.TotalStake,
			Winnings: res.TotalPayout,
			Bets:     p.Bets,
			Wins:     res.Wins,
		})
	}

	balances := make(map[int64]int64, len(all))
	for _, s := range all {
		if s.result.TotalPayout == 0 {
			continue
		}
		newBalance, err := r.deps.Wallet.Adjust(context.Background(), s.player.UserID, s.result.TotalPayout, wallet.KindCredit)
		if err != nil {
			logger.Log.Errorw("payout credit failed",
				"room", r.ID, "user", s.player.UserID, "amount", s.result.TotalPayout, "err", err)
			if r.deps.Monitor != nil {
				r.deps.Monitor.IncWalletFailures()
			}
			continue
		}
		balances[s.player.UserID] = newBalance
		r.send(s.player.UserID, network.MsgTypeBalanceUpdate, &network.BalanceUpdateMsg{
			Balance: newBalance,
			Reason:  network.BalanceReasonWin,
		})
	}

	base := network.RoundFinishedMsg{
		RoundID:     r.roundID,
		Outcome:     outcome,
		Results:     shared,
		NextRoundIn: r.cfg.ResultsSeconds,
		TotalStake:  totalStake,
		TotalPayout: totalPayout,
	}

	bettors := make(map[int64]bool, len(all))
	for _, s := range all {
		bettors[s.player.UserID] = true
		msg := base
		balance, ok := balances[s.player.UserID]
		if !ok {
			balance, _ = r.deps.Wallet.Balance(context.Background(), s.player.UserID)
		}
		var wins []network.WinRecordMsg
		for _, w := range s.result.Wins {
			wins = append(wins, network.WinRecordMsg{Bet: w.Bet, Payout: w.Payout})
		}
		msg.Own = &network.OwnResultMsg{
			Staked:     s.result.TotalStake,
			Winnings:   s.result.TotalPayout,
			NewBalance: balance,
			Wins:       wins,
		}
		r.send(s.player.UserID, network.MsgTypeRoundFinished, &msg)
	}
	for id := range r.players {
		if !bettors[id] {
			r.send(id, network.MsgTypeRoundFinished, &base)
		}
	}

	// money is settled now; clear stakes so a later abort cannot refund twice
	for _, s := range all {
		s.player.Bets = nil
		s.player.TotalStaked = 0
	}

	if r.deps.History != nil {
		r.deps.History.Submit(&models.RoundRecord{
			RoundID:    r.roundID,
			RoomID:     r.ID,
			RoomName:   r.Name,
			Game:       r.Game,
			Outcome:    outcome,
			TotalStake: totalStake,
			TotalPaid:  totalPayout,
			Players:    records,
			FinishedAt: time.Now(),
		})
	}
	if r.deps.Monitor != nil {
		r.deps.Monitor.RoundFinished(r.Game, time.Since(r.roundStart))
	}
}
