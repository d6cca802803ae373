package room

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/spinhall/casino-server/config"
	"github.com/spinhall/casino-server/games/roulette"
	"github.com/spinhall/casino-server/logger"
	"github.com/spinhall/casino-server/models"
	"github.com/spinhall/casino-server/network"
	"github.com/spinhall/casino-server/wallet"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		BettingSeconds:   1,
		SpinSeconds:      0,
		ResultsSeconds:   0,
		CountdownSeconds: 0,
		RaceTickMillis:   50,
		RaceFinish:       100,
		RaceAdvanceMin:   1,
		RaceAdvanceMax:   9,
		MinSeats:         2,
		MaxSeats:         4,
		MaxBet:           1000,
	}
}

type sentMsg struct {
	userID  int64
	msgID   uint16
	payload interface{}
}

type mockBroadcaster struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (b *mockBroadcaster) SendToUser(userID int64, msgID uint16, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, sentMsg{userID: userID, msgID: msgID, payload: payload})
	return nil
}

func (b *mockBroadcaster) BroadcastToUsers(userIDs []int64, msgID uint16, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range userIDs {
		b.msgs = append(b.msgs, sentMsg{userID: id, msgID: msgID, payload: payload})
	}
}

func (b *mockBroadcaster) count(userID int64, msgID uint16) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.msgs {
		if m.userID == userID && m.msgID == msgID {
			n++
		}
	}
	return n
}

// indexOf returns the position of the first matching message, -1 if absent.
func (b *mockBroadcaster) indexOf(userID int64, msgID uint16) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, m := range b.msgs {
		if m.userID == userID && m.msgID == msgID {
			return i
		}
	}
	return -1
}

func (b *mockBroadcaster) last(userID int64, msgID uint16) (interface{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.msgs) - 1; i >= 0; i-- {
		if b.msgs[i].userID == userID && b.msgs[i].msgID == msgID {
			return b.msgs[i].payload, true
		}
	}
	return nil, false
}

type adjustCall struct {
	userID int64
	amount int64
}

type mockWallet struct {
	mu        sync.Mutex
	balances  map[int64]int64
	failDebit map[int64]bool
	debits    []adjustCall
	credits   []adjustCall
}

func newMockWallet() *mockWallet {
	return &mockWallet{
		balances:  make(map[int64]int64),
		failDebit: make(map[int64]bool),
	}
}

func (w *mockWallet) Balance(_ context.Context, userID int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID], nil
}

func (w *mockWallet) Adjust(_ context.Context, userID int64, amount int64, kind wallet.AdjustKind) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if kind == wallet.KindDebit {
		if w.failDebit[userID] {
			return 0, wallet.ErrUnavailable
		}
		if w.balances[userID] < amount {
			return 0, wallet.ErrInsufficientFunds
		}
		w.balances[userID] -= amount
		w.debits = append(w.debits, adjustCall{userID: userID, amount: amount})
	} else {
		w.balances[userID] += amount
		w.credits = append(w.credits, adjustCall{userID: userID, amount: amount})
	}
	return w.balances[userID], nil
}

func (w *mockWallet) creditsFor(userID int64) []adjustCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []adjustCall
	for _, c := range w.credits {
		if c.userID == userID {
			out = append(out, c)
		}
	}
	return out
}

type mockHistory struct {
	mu      sync.Mutex
	records []*models.RoundRecord
}

func (h *mockHistory) Submit(record *models.RoundRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
}

func (h *mockHistory) RecentOutcomes(string, int) []int { return nil }

func (h *mockHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// scriptedRand hands out a fixed outcome and cycles through a fixed advance
// sequence so race winners are deterministic.
type scriptedRand struct {
	mu       sync.Mutex
	outcome  int
	advances []int
	i        int
}

func (s *scriptedRand) DrawOutcome(int) int { return s.outcome }

func (s *scriptedRand) DrawAdvance(min, _ int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.advances) == 0 {
		return min
	}
	v := s.advances[s.i%len(s.advances)]
	s.i++
	return v
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

type fixture struct {
	room    *Room
	wallet  *mockWallet
	bcast   *mockBroadcaster
	history *mockHistory
}

func newFixture(t *testing.T, game string, stake int64, persistent bool) *fixture {
	t.Helper()
	f := &fixture{
		wallet:  newMockWallet(),
		bcast:   &mockBroadcaster{},
		history: &mockHistory{},
	}
	r, err := New(game, "test-room", stake, persistent, testGameConfig(), Deps{
		Broadcaster: f.bcast,
		Wallet:      f.wallet,
		History:     f.history,
		Rand:        &scriptedRand{outcome: 17, advances: []int{60, 10}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Close)
	f.room = r
	return f
}

func TestJoinAssignsLowestFreeSeat(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	for _, uid := range []int64{1, 2, 3} {
		if err := f.room.Join(uid, "player"); err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
	}
	if err := f.room.Leave(2); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := f.room.Join(4, "player"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	payload, ok := f.bcast.last(4, network.MsgTypeRoomState)
	if !ok {
		t.Fatal("no snapshot for joiner")
	}
	snap := payload.(*network.RoomStateMsg)
	var seat int
	for _, p := range snap.Players {
		if p.UserID == 4 {
			seat = p.Seat
		}
	}
	if seat != 2 {
		t.Fatalf("seat = %d, want 2 (the freed one)", seat)
	}
}

func TestJoinRejectedWhenFull(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	for uid := int64(1); uid <= 4; uid++ {
		if err := f.room.Join(uid, "player"); err != nil {
			t.Fatalf("join %d: %v", uid, err)
		}
	}
	if err := f.room.Join(5, "late"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("err = %v, want ErrRoomFull", err)
	}
}

func TestJoinRejectedMidRound(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	f.wallet.balances[1] = 100
	if err := f.room.Join(1, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := f.room.PlaceBet(1, roulette.Bet{Type: roulette.BetStraight, Numbers: []int{17}, Amount: 10}); err != nil {
		t.Fatalf("place bet: %v", err)
	}
	if err := f.room.LockBets(1); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := f.room.Phase(); got != PhaseBetting {
		t.Fatalf("phase = %q, want betting", got)
	}

	if err := f.room.Join(2, "late"); !errors.Is(err, ErrRoundInProgress) {
		t.Fatalf("err = %v, want ErrRoundInProgress", err)
	}
}

func TestPlaceBetDebitsWallet(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	f.wallet.balances[1] = 100
	f.room.Join(1, "alice")
	f.room.Join(2, "bob")

	bet := roulette.Bet{Type: roulette.BetRed, Amount: 30}
	if err := f.room.PlaceBet(1, bet); err != nil {
		t.Fatalf("place bet: %v", err)
	}

	if bal, _ := f.wallet.Balance(context.Background(), 1); bal != 70 {
		t.Fatalf("balance = %d, want 70", bal)
	}
	if n := f.bcast.count(1, network.MsgTypeBetPlaced); n != 1 {
		t.Fatalf("actor bet-placed count = %d, want 1", n)
	}
	if n := f.bcast.count(2, network.MsgTypeBetPlaced); n != 1 {
		t.Fatalf("observer bet-placed count = %d, want 1", n)
	}
	payload, _ := f.bcast.last(1, network.MsgTypeBalanceUpdate)
	upd := payload.(*network.BalanceUpdateMsg)
	if upd.Balance != 70 || upd.Reason != network.BalanceReasonBet {
		t.Fatalf("balance update = %+v", upd)
	}
}

func TestPlaceBetInsufficientFundsLeavesRoomUntouched(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	f.wallet.balances[1] = 5
	f.room.Join(1, "alice")

	err := f.room.PlaceBet(1, roulette.Bet{Type: roulette.BetRed, Amount: 30})
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if n := f.bcast.count(1, network.MsgTypeBetPlaced); n != 0 {
		t.Fatalf("bet-placed sent on failed debit")
	}
	if err := f.room.LockBets(1); !errors.Is(err, ErrNoBets) {
		t.Fatalf("lock err = %v, want ErrNoBets (no bet should have been recorded)", err)
	}
}

func TestRemoveBetRefunds(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	f.wallet.balances[1] = 100
	f.room.Join(1, "alice")
	f.room.PlaceBet(1, roulette.Bet{Type: roulette.BetRed, Amount: 30})
	f.room.PlaceBet(1, roulette.Bet{Type: roulette.BetStraight, Numbers: []int{17}, Amount: 10})

	if err := f.room.RemoveBet(1, 0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if bal, _ := f.wallet.Balance(context.Background(), 1); bal != 90 {
		t.Fatalf("balance = %d, want 90", bal)
	}
	if err := f.room.RemoveBet(1, 5); !errors.Is(err, ErrNoSuchBet) {
		t.Fatalf("err = %v, want ErrNoSuchBet", err)
	}
}

func TestRouletteRoundSettlement(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	f.wallet.balances[1] = 100
	f.room.Join(1, "alice")

	// straight on 17; the scripted wheel always lands 17
	if err := f.room.PlaceBet(1, roulette.Bet{Type: roulette.BetStraight, Numbers: []int{17}, Amount: 10}); err != nil {
		t.Fatal(err)
	}
	if err := f.room.LockBets(1); err != nil {
		t.Fatal(err)
	}

	// lock-changed must precede the phase change it triggered
	li := f.bcast.indexOf(1, network.MsgTypeLockChanged)
	pi := f.bcast.indexOf(1, network.MsgTypePhaseStarted)
	if li == -1 || pi == -1 || li > pi {
		t.Fatalf("lock-changed at %d, phase-started at %d; want lock first", li, pi)
	}

	waitFor(t, 3*time.Second, func() bool {
		return f.bcast.count(1, network.MsgTypeRoundFinished) > 0
	})

	payload, _ := f.bcast.last(1, network.MsgTypeRoundFinished)
	fin := payload.(*network.RoundFinishedMsg)
	if fin.Outcome == nil || fin.Outcome.Number != 17 {
		t.Fatalf("outcome = %+v, want number 17", fin.Outcome)
	}
	if fin.Own == nil {
		t.Fatal("bettor got no own result")
	}
	if fin.Own.Winnings != 360 {
		t.Fatalf("winnings = %d, want 360 (stake back plus 35x)", fin.Own.Winnings)
	}
	if fin.Own.NewBalance != 450 {
		t.Fatalf("new balance = %d, want 450", fin.Own.NewBalance)
	}
	if bal, _ := f.wallet.Balance(context.Background(), 1); bal != 450 {
		t.Fatalf("wallet balance = %d, want 450", bal)
	}

	waitFor(t, 3*time.Second, func() bool { return f.history.count() == 1 })
	waitFor(t, 3*time.Second, func() bool { return f.room.Phase() == PhaseWaiting })
}

// When the last connected player leaves a persistent room mid-round, the
// round is aborted with refunds and the room recycles to an idle table.
func TestRoundAbortedWhenRoomEmpties(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	f.wallet.balances[1] = 100
	f.room.Join(1, "alice")
	f.room.PlaceBet(1, roulette.Bet{Type: roulette.BetRed, Amount: 10})
	f.room.LockBets(1)
	if f.room.Phase() != PhaseBetting {
		t.Fatal("betting did not start")
	}

	f.room.Disconnect(1)

	if got := f.room.Phase(); got != PhaseWaiting {
		t.Fatalf("phase = %q, want waiting after abort", got)
	}
	if bal, _ := f.wallet.Balance(context.Background(), 1); bal != 100 {
		t.Fatalf("balance = %d, want 100 (live stake refunded on abort)", bal)
	}
	if n := f.room.PlayerCount(); n != 0 {
		t.Fatalf("player count = %d, want 0", n)
	}

	// the table is usable again
	if err := f.room.Join(2, "bob"); err != nil {
		t.Fatalf("rejoin after abort: %v", err)
	}
}

// A player who disconnects with money in the live round keeps their seat
// until settlement and is never refunded mid-round.
func TestDisconnectMidRoundIsNotRefunded(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	f.wallet.balances[1] = 100
	f.wallet.balances[2] = 100
	f.room.Join(1, "alice")
	f.room.Join(2, "bob")

	// bob bets on a number the scripted wheel will not land
	if err := f.room.PlaceBet(2, roulette.Bet{Type: roulette.BetStraight, Numbers: []int{5}, Amount: 10}); err != nil {
		t.Fatal(err)
	}
	if err := f.room.LockBets(2); err != nil {
		t.Fatal(err)
	}
	f.room.Disconnect(2)

	if n := f.room.PlayerCount(); n != 2 {
		t.Fatalf("player count = %d, want 2 (seat held across disconnect)", n)
	}

	waitFor(t, 4*time.Second, func() bool {
		return f.bcast.count(2, network.MsgTypeRoundFinished) > 0
	})
	if calls := f.wallet.creditsFor(2); len(calls) != 0 {
		t.Fatalf("disconnected player was credited: %+v", calls)
	}
	payload, _ := f.bcast.last(2, network.MsgTypeRoundFinished)
	fin := payload.(*network.RoundFinishedMsg)
	if fin.Own == nil || fin.Own.Winnings != 0 || fin.Own.Staked != 10 {
		t.Fatalf("own result = %+v, want staked 10 winnings 0", fin.Own)
	}

	// reconciliation on recycle drops the dead seat
	waitFor(t, 3*time.Second, func() bool { return f.room.PlayerCount() == 1 })
}

func TestRaceHappyPath(t *testing.T) {
	f := newFixture(t, models.GameDuckRace, 50, true)
	f.wallet.balances[1] = 200
	f.wallet.balances[2] = 200
	f.room.Join(1, "alice")
	f.room.Join(2, "bob")

	if err := f.room.SetReady(1, true); err != nil {
		t.Fatal(err)
	}
	if f.room.Phase() != PhaseWaiting {
		t.Fatal("countdown started with one ready player")
	}
	if err := f.room.SetReady(2, true); err != nil {
		t.Fatal(err)
	}

	// both stakes collected up front
	if bal, _ := f.wallet.Balance(context.Background(), 1); bal != 150 {
		t.Fatalf("alice balance = %d, want 150", bal)
	}
	if bal, _ := f.wallet.Balance(context.Background(), 2); bal != 150 {
		t.Fatalf("bob balance = %d, want 150", bal)
	}

	ri := f.bcast.indexOf(2, network.MsgTypeReadyChanged)
	pi := f.bcast.indexOf(2, network.MsgTypePhaseStarted)
	if ri == -1 || pi == -1 {
		t.Fatal("missing ready-changed or phase-started")
	}

	waitFor(t, 5*time.Second, func() bool {
		return f.bcast.count(1, network.MsgTypeRoundFinished) > 0
	})

	// the scripted advances give seat 1 the bigger steps every tick
	payload, _ := f.bcast.last(1, network.MsgTypeRoundFinished)
	fin := payload.(*network.RoundFinishedMsg)
	if fin.WinnerID != 1 {
		t.Fatalf("winner = %d, want 1", fin.WinnerID)
	}
	if fin.TotalPayout != 100 {
		t.Fatalf("pot = %d, want 100", fin.TotalPayout)
	}
	if fin.Own == nil || fin.Own.Rank != 1 || fin.Own.Winnings != 100 {
		t.Fatalf("winner own result = %+v", fin.Own)
	}

	// winner nets +stake, loser is down one stake
	if bal, _ := f.wallet.Balance(context.Background(), 1); bal != 250 {
		t.Fatalf("winner balance = %d, want 250", bal)
	}
	if bal, _ := f.wallet.Balance(context.Background(), 2); bal != 150 {
		t.Fatalf("loser balance = %d, want 150", bal)
	}

	payload, _ = f.bcast.last(2, network.MsgTypeRoundFinished)
	fin = payload.(*network.RoundFinishedMsg)
	if fin.Own == nil || fin.Own.Rank != 2 || fin.Own.Winnings != 0 {
		t.Fatalf("loser own result = %+v", fin.Own)
	}

	if n := f.bcast.count(1, network.MsgTypeRaceProgress); n == 0 {
		t.Fatal("no race progress broadcast")
	}
	waitFor(t, 3*time.Second, func() bool { return f.history.count() == 1 })
}

// A failed stake debit mid-collection refunds everyone already debited and
// drops the room back to waiting with no round running.
func TestRaceStakeCollectionFailure(t *testing.T) {
	f := newFixture(t, models.GameDuckRace, 50, true)
	f.wallet.balances[1] = 200
	f.wallet.balances[2] = 200
	f.wallet.failDebit[2] = true
	f.room.Join(1, "alice")
	f.room.Join(2, "bob")

	f.room.SetReady(1, true)
	if err := f.room.SetReady(2, true); err != nil {
		t.Fatal(err)
	}

	if got := f.room.Phase(); got != PhaseWaiting {
		t.Fatalf("phase = %q, want waiting after aborted start", got)
	}
	if bal, _ := f.wallet.Balance(context.Background(), 1); bal != 200 {
		t.Fatalf("alice balance = %d, want 200 (debit refunded)", bal)
	}
	if n := f.bcast.count(1, network.MsgTypeRoundCancelled); n != 1 {
		t.Fatalf("round-cancelled count = %d, want 1", n)
	}
	if n := f.bcast.count(2, network.MsgTypeRoundCancelled); n != 1 {
		t.Fatalf("round-cancelled count for bob = %d, want 1", n)
	}
	if n := f.bcast.count(1, network.MsgTypeRaceStarted); n != 0 {
		t.Fatal("race started despite failed stake collection")
	}

	// both players got a fresh snapshot showing the idle table
	payload, ok := f.bcast.last(1, network.MsgTypeRoomState)
	if !ok {
		t.Fatal("no post-abort snapshot")
	}
	snap := payload.(*network.RoomStateMsg)
	if snap.Phase != PhaseWaiting || snap.Pot != 0 {
		t.Fatalf("snapshot = phase %q pot %d, want waiting/0", snap.Phase, snap.Pot)
	}
}

func TestLeaveRefundsOutstandingBets(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	f.wallet.balances[1] = 100
	f.room.Join(1, "alice")
	f.room.Join(2, "bob")
	f.room.PlaceBet(1, roulette.Bet{Type: roulette.BetRed, Amount: 40})

	if err := f.room.Leave(1); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if bal, _ := f.wallet.Balance(context.Background(), 1); bal != 100 {
		t.Fatalf("balance = %d, want 100 (bet refunded on leave before round)", bal)
	}
	if n := f.bcast.count(2, network.MsgTypePlayerLeft); n != 1 {
		t.Fatalf("player-left count = %d, want 1", n)
	}
}

func TestEmptyRoomIsDestroyed(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, false)
	f.room.Join(1, "alice")
	if err := f.room.Leave(1); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return f.room.Join(2, "bob") == ErrRoomClosed
	})
}

func TestReadyRejectedInRouletteRoom(t *testing.T) {
	f := newFixture(t, models.GameRoulette, 0, true)
	f.room.Join(1, "alice")
	if err := f.room.SetReady(1, true); !errors.Is(err, ErrWrongGame) {
		t.Fatalf("err = %v, want ErrWrongGame", err)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(testGameConfig(), Deps{
		Broadcaster: &mockBroadcaster{},
		Wallet:      newMockWallet(),
		History:     &mockHistory{},
		Rand:        &scriptedRand{outcome: 17},
	})

	if _, err := m.CreateRoom("poker", "", 0, false); !errors.Is(err, ErrUnknownGame) {
		t.Fatalf("err = %v, want ErrUnknownGame", err)
	}
	if _, err := m.CreateRoom(models.GameDuckRace, "", 0, false); !errors.Is(err, ErrStakeRequired) {
		t.Fatalf("err = %v, want ErrStakeRequired", err)
	}

	r, err := m.CreateRoom(models.GameRoulette, "", 0, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Name == "" {
		t.Fatal("room got no default name")
	}
	if got, ok := m.GetRoom(r.ID); !ok || got != r {
		t.Fatal("GetRoom did not return the created room")
	}
	if found := m.FindAvailableRoom(models.GameRoulette); found != r {
		t.Fatal("FindAvailableRoom did not return the waiting room")
	}
	if found := m.FindAvailableRoom(models.GameDuckRace); found != nil {
		t.Fatal("FindAvailableRoom matched the wrong game")
	}

	m.CloseAll()
	waitFor(t, 2*time.Second, func() bool { return m.Count() == 0 })
}
