// Package room is the round engine. Every room runs a single worker
// goroutine that owns all room state; external callers enqueue closures on
// the action channel and the same goroutine drives the phase machine off a
// base ticker, so no player action can ever interleave with a phase
// transition.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spinhall/casino-server/broadcast"
	"github.com/spinhall/casino-server/config"
	"github.com/spinhall/casino-server/games/roulette"
	"github.com/spinhall/casino-server/logger"
	"github.com/spinhall/casino-server/models"
	"github.com/spinhall/casino-server/monitor"
	"github.com/spinhall/casino-server/network"
	"github.com/spinhall/casino-server/rng"
	"github.com/spinhall/casino-server/state"
	"github.com/spinhall/casino-server/wallet"
)

// Phase names shared by both game variants. Roulette rounds run
// waiting/betting/spinning/results, races run waiting/countdown/racing/finished.
const (
	PhaseWaiting   = "waiting"
	PhaseBetting   = "betting"
	PhaseSpinning  = "spinning"
	PhaseResults   = "results"
	PhaseCountdown = "countdown"
	PhaseRacing    = "racing"
	PhaseFinished  = "finished"
)

const tickInterval = 100 * time.Millisecond

// Deps are the collaborators a room needs. Monitor may be nil.
type Deps struct {
	Broadcaster broadcast.Broadcaster
	Wallet      wallet.Gateway
	History     RoundHistory
	Rand        rng.Source
	Monitor     *monitor.Monitor
}

type Room struct {
	ID         string
	Name       string
	Game       string
	Persistent bool
	Stake      int64

	cfg  config.GameConfig
	deps Deps

	roundID    string
	roundStart time.Time
	pot        int64
	outcome    *roulette.Outcome
	winnerID   int64

	machine *state.Machine
	players map[int64]*Player

	actions   chan func()
	closeCh   chan struct{}
	closeOnce sync.Once
	onClose   func(roomID string)
}

func New(game, name string, stake int64, persistent bool, cfg config.GameConfig, deps Deps) (*Room, error) {
	r := &Room{
		ID:         uuid.NewString(),
		Name:       name,
		Game:       game,
		Persistent: persistent,
		Stake:      stake,
		cfg:        cfg,
		deps:       deps,
		roundID:    uuid.NewString(),
		players:    make(map[int64]*Player),
		actions:    make(chan func()),
		closeCh:    make(chan struct{}),
	}

	switch game {
	case models.GameRoulette:
		r.machine = state.NewMachine(&rouletteWaiting{room: r})
	case models.GameDuckRace:
		r.machine = state.NewMachine(&raceWaiting{room: r})
	default:
		return nil, ErrUnknownGame
	}

	go r.loop()
	return r, nil
}

func (r *Room) loop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case f := <-r.actions:
			f()
		case <-ticker.C:
			r.machine.Tick(tickInterval)
		case <-r.closeCh:
			return
		}
	}
}

// do runs f on the room worker and waits for its result. Everything the
// closure touches is worker-owned state.
func (r *Room) do(f func() error) error {
	reply := make(chan error, 1)
	select {
	case r.actions <- func() { reply <- f() }:
	case <-r.closeCh:
		return ErrRoomClosed
	}
	select {
	case err := <-reply:
		return err
	case <-r.closeCh:
		return ErrRoomClosed
	}
}

// Phase reports the current phase name.
func (r *Room) Phase() string {
	return r.machine.CurrentName()
}

// PlayerCount reports the number of seated players.
func (r *Room) PlayerCount() int {
	n := 0
	_ = r.do(func() error {
		n = len(r.players)
		return nil
	})
	return n
}

// Close aborts any live round, refunds stakes and stops the worker.
func (r *Room) Close() {
	_ = r.do(func() error {
		r.abortRound("room closing")
		r.destroy()
		return nil
	})
}

func (r *Room) destroy() {
	r.closeOnce.Do(func() {
		close(r.closeCh)
		if r.onClose != nil {
			r.onClose(r.ID)
		}
	})
}

// Join seats a player, or reconnects one whose seat was held across a
// disconnect. New players are rejected while a round is running.
func (r *Room) Join(userID int64, username string) error {
	return r.do(func() error {
		if p, ok := r.players[userID]; ok {
			p.Connected = true
			r.broadcastExcept(userID, network.MsgTypePlayerJoined, &network.PlayerJoinedMsg{Player: p.info()})
			r.sendSnapshot(p)
			return nil
		}
		if len(r.players) >= r.cfg.MaxSeats {
			return ErrRoomFull
		}
		if r.roundActive() {
			return ErrRoundInProgress
		}

		p := &Player{
			UserID:    userID,
			Username:  username,
			Seat:      r.lowestFreeSeat(),
			Connected: true,
			JoinedAt:  time.Now(),
		}
		r.players[userID] = p
		r.broadcastExcept(userID, network.MsgTypePlayerJoined, &network.PlayerJoinedMsg{Player: p.info()})
		r.sendSnapshot(p)
		return nil
	})
}

// Leave removes a player on explicit request.
func (r *Room) Leave(userID int64) error {
	return r.do(func() error { return r.dropPlayer(userID) })
}

// Disconnect handles a dead connection. Unlike Leave it never errors; the
// session may or may not belong to this room anymore.
func (r *Room) Disconnect(userID int64) {
	_ = r.do(func() error {
		if _, ok := r.players[userID]; ok {
			return r.dropPlayer(userID)
		}
		return nil
	})
}

// dropPlayer removes a player, or marks them disconnected when they still
// have money in the live round so settlement can reconcile them later.
func (r *Room) dropPlayer(userID int64) error {
	p, ok := r.players[userID]
	if !ok {
		return ErrNotInRoom
	}

	if r.roundActive() && p.TotalStaked > 0 {
		p.Connected = false
		r.broadcastExcept(userID, network.MsgTypePlayerLeft, &network.PlayerLeftMsg{
			UserID:       userID,
			Seat:         p.Seat,
			Disconnected: true,
		})
		r.checkEmpty()
		return nil
	}

	r.refundPlayer(p)
	delete(r.players, userID)
	r.broadcastAll(network.MsgTypePlayerLeft, &network.PlayerLeftMsg{UserID: userID, Seat: p.Seat})

	if r.Game == models.GameDuckRace && r.Phase() == PhaseWaiting {
		// the departure may leave everyone remaining ready
		r.maybeStartCountdown(0)
	}
	r.checkEmpty()
	return nil
}

func (r *Room) roundActive() bool {
	return r.Phase() != PhaseWaiting
}

func (r *Room) lowestFreeSeat() int {
	for seat := 1; seat <= r.cfg.MaxSeats; seat++ {
		taken := false
		for _, p := range r.players {
			if p.Seat == seat {
				taken = true
				break
			}
		}
		if !taken {
			return seat
		}
	}
	return len(r.players) + 1
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// seatOrdered returns the players sorted by seat so wallet calls and
// broadcast payloads are deterministic.
func (r *Room) seatOrdered() []*Player {
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Seat > out[j].Seat; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func (r *Room) userIDs(exclude int64) []int64 {
	ids := make([]int64, 0, len(r.players))
	for id := range r.players {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Room) broadcastAll(msgID uint16, payload interface{}) {
	r.deps.Broadcaster.BroadcastToUsers(r.userIDs(0), msgID, payload)
}

func (r *Room) broadcastExcept(exclude int64, msgID uint16, payload interface{}) {
	r.deps.Broadcaster.BroadcastToUsers(r.userIDs(exclude), msgID, payload)
}

func (r *Room) send(userID int64, msgID uint16, payload interface{}) {
	if err := r.deps.Broadcaster.SendToUser(userID, msgID, payload); err != nil {
		logger.Log.Warnw("room send failed", "room", r.ID, "user", userID, "err", err)
	}
}

func (r *Room) sendSnapshot(p *Player) {
	balance, err := r.deps.Wallet.Balance(context.Background(), p.UserID)
	if err != nil {
		logger.Log.Warnw("snapshot balance fetch failed", "room", r.ID, "user", p.UserID, "err", err)
	}

	msg := &network.RoomStateMsg{
		RoomID:      r.ID,
		Name:        r.Name,
		Game:        r.Game,
		RoundID:     r.roundID,
		Phase:       r.Phase(),
		SecondsLeft: r.phaseSecondsLeft(),
		Stake:       r.Stake,
		Pot:         r.pot,
		Balance:     balance,
		YourBets:    p.Bets,
		YourReady:   p.Ready,
	}
	for _, o := range r.seatOrdered() {
		msg.Players = append(msg.Players, o.info())
	}
	if r.Game == models.GameRoulette && r.deps.History != nil {
		msg.RecentOutcomes = r.deps.History.RecentOutcomes(r.ID, 20)
	}
	r.send(p.UserID, network.MsgTypeRoomState, msg)
}

func (r *Room) phaseSecondsLeft() int {
	if cd, ok := r.machine.Current().(interface{ SecondsLeft() int }); ok {
		return cd.SecondsLeft()
	}
	return 0
}

// refundPlayer credits back whatever the player has staked in the live
// round. Failures are logged; the ledger is reconciled out of band.
func (r *Room) refundPlayer(p *Player) {
	if p.TotalStaked == 0 {
		return
	}
	newBalance, err := r.deps.Wallet.Adjust(context.Background(), p.UserID, p.TotalStaked, wallet.KindCredit)
	if err != nil {
		logger.Log.Errorw("refund failed", "room", r.ID, "user", p.UserID, "amount", p.TotalStaked, "err", err)
		if r.deps.Monitor != nil {
			r.deps.Monitor.IncWalletFailures()
		}
	} else {
		r.send(p.UserID, network.MsgTypeBalanceUpdate, &network.BalanceUpdateMsg{
			Balance: newBalance,
			Reason:  network.BalanceReasonRefund,
		})
	}
	p.Bets = nil
	p.TotalStaked = 0
}

// abortRound refunds every live stake and announces the cancellation if a
// round was actually running.
func (r *Room) abortRound(reason string) {
	for _, p := range r.seatOrdered() {
		r.refundPlayer(p)
	}
	if r.roundActive() {
		r.broadcastAll(network.MsgTypeRoundCancelled, &network.RoundCancelledMsg{
			RoundID: r.roundID,
			Reason:  reason,
		})
	}
	r.pot = 0
	r.outcome = nil
	r.winnerID = 0
}

// checkEmpty runs after every roster change. A room with nobody connected
// cannot settle a round, so the round is aborted; non-persistent rooms are
// then destroyed, persistent ones recycle to waiting with an empty roster.
func (r *Room) checkEmpty() {
	if r.connectedCount() > 0 {
		return
	}
	r.abortRound("room empty")
	if !r.Persistent {
		r.destroy()
		return
	}
	for id := range r.players {
		delete(r.players, id)
	}
	if r.roundActive() {
		r.startWaiting()
	}
}

// resetToWaiting reconciles the roster after a finished round and arms the
// next one: disconnected players are dropped now that their money has been
// settled, per-round player state is cleared and a fresh round id is drawn.
func (r *Room) resetToWaiting() {
	for id, p := range r.players {
		if !p.Connected {
			delete(r.players, id)
			r.broadcastAll(network.MsgTypePlayerLeft, &network.PlayerLeftMsg{UserID: id, Seat: p.Seat})
		}
	}
	if len(r.players) == 0 && !r.Persistent {
		r.destroy()
		return
	}
	for _, p := range r.players {
		p.resetRound()
	}
	r.pot = 0
	r.outcome = nil
	r.winnerID = 0
	r.startWaiting()
}

func (r *Room) startWaiting() {
	r.roundID = uuid.NewString()
	switch r.Game {
	case models.GameDuckRace:
		r.machine.ChangeTo(&raceWaiting{room: r})
	default:
		r.machine.ChangeTo(&rouletteWaiting{room: r})
	}
}
