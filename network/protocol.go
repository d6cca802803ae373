package network

import "github.com/spinhall/casino-server/games/roulette"

// Message IDs. Inbound 1xx are room/bet actions from clients, outbound 3xx
// are room events, 4xx errors.
const (
	MsgTypePing = 1
	MsgTypePong = 2

	MsgTypeJoinRoom   = 101
	MsgTypeLeaveRoom  = 102
	MsgTypeCreateRoom = 103
	MsgTypePlaceBet   = 110
	MsgTypeRemoveBet  = 111
	MsgTypeClearBets  = 112
	MsgTypeLockBets   = 113
	MsgTypeSetReady   = 114

	MsgTypeRoomState      = 301
	MsgTypePlayerJoined   = 310
	MsgTypePlayerLeft     = 311
	MsgTypeBetPlaced      = 320
	MsgTypeBetRemoved     = 321
	MsgTypeBetsCleared    = 322
	MsgTypeLockChanged    = 323
	MsgTypeReadyChanged   = 324
	MsgTypePhaseStarted   = 330
	MsgTypeCountdownTick  = 331
	MsgTypeSpinStarted    = 332
	MsgTypeRaceStarted    = 333
	MsgTypeRaceProgress   = 334
	MsgTypeRoundFinished  = 335
	MsgTypeRoundCancelled = 336
	MsgTypeBalanceUpdate  = 340

	MsgTypeError = 400
)

// Close codes used on the websocket itself rather than inside a packet.
const (
	CloseAuthFailed = 4401
	CloseReplaced   = 4000
)

// Error codes carried by ErrorMsg.
const (
	ErrCodeProtocol     = "protocol"
	ErrCodeValidation   = "validation"
	ErrCodeResource     = "resource"
	ErrCodeDependency   = "dependency"
	ErrCodeRoomNotFound = "room_not_found"
)

// Balance update reasons.
const (
	BalanceReasonBet    = "bet"
	BalanceReasonRemove = "bet_removed"
	BalanceReasonRefund = "refund"
	BalanceReasonWin    = "win"
	BalanceReasonStake  = "stake"
)

type JoinRoomReq struct {
	RoomID string `json:"room_id,omitempty"`
	Game   string `json:"game,omitempty"`
}

type CreateRoomReq struct {
	Game       string `json:"game"`
	Name       string `json:"name,omitempty"`
	Stake      int64  `json:"stake,omitempty"`
	Persistent bool   `json:"persistent,omitempty"`
}

type PlaceBetReq struct {
	Bet roulette.Bet `json:"bet"`
}

type RemoveBetReq struct {
	Index int `json:"index"`
}

type SetReadyReq struct {
	Ready bool `json:"ready"`
}

type PlayerInfo struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Seat        int    `json:"seat"`
	Connected   bool   `json:"connected"`
	Ready       bool   `json:"ready"`
	Locked      bool   `json:"locked"`
	BetCount    int    `json:"bet_count"`
	TotalStaked int64  `json:"total_staked"`
	Position    int    `json:"position"`
}

// RoomStateMsg is the full snapshot sent on join and after room-wide aborts.
type RoomStateMsg struct {
	RoomID         string         `json:"room_id"`
	Name           string         `json:"name"`
	Game           string         `json:"game"`
	RoundID        string         `json:"round_id"`
	Phase          string         `json:"phase"`
	SecondsLeft    int            `json:"seconds_left"`
	Stake          int64          `json:"stake,omitempty"`
	Pot            int64          `json:"pot"`
	Players        []PlayerInfo   `json:"players"`
	Balance        int64          `json:"balance"`
	YourBets       []roulette.Bet `json:"your_bets,omitempty"`
	YourReady      bool           `json:"your_ready"`
	RecentOutcomes []int          `json:"recent_outcomes,omitempty"`
}

type PlayerJoinedMsg struct {
	Player PlayerInfo `json:"player"`
}

// PlayerLeftMsg announces a roster change. Disconnected means the seat is
// kept because the player still has money in the live round.
type PlayerLeftMsg struct {
	UserID       int64 `json:"user_id"`
	Seat         int   `json:"seat"`
	Disconnected bool  `json:"disconnected,omitempty"`
}

type BetPlacedMsg struct {
	UserID int64        `json:"user_id"`
	Bet    roulette.Bet `json:"bet"`
	Total  int64        `json:"total"`
}

type BetRemovedMsg struct {
	UserID int64 `json:"user_id"`
	Index  int   `json:"index"`
	Total  int64 `json:"total"`
}

type BetsClearedMsg struct {
	UserID int64 `json:"user_id"`
}

type LockChangedMsg struct {
	UserID int64 `json:"user_id"`
	Locked bool  `json:"locked"`
}

type ReadyChangedMsg struct {
	UserID int64 `json:"user_id"`
	Ready  bool  `json:"ready"`
}

type PhaseStartedMsg struct {
	Phase       string `json:"phase"`
	SecondsLeft int    `json:"seconds_left"`
	TriggeredBy int64  `json:"triggered_by,omitempty"`
}

type CountdownTickMsg struct {
	Phase       string `json:"phase"`
	SecondsLeft int    `json:"seconds_left"`
}

type SpinStartedMsg struct {
	RoundID     string `json:"round_id"`
	SecondsLeft int    `json:"seconds_left"`
}

type RaceStartedMsg struct {
	RoundID string `json:"round_id"`
	Finish  int    `json:"finish"`
	Pot     int64  `json:"pot"`
}

type LanePosition struct {
	UserID   int64 `json:"user_id"`
	Seat     int   `json:"seat"`
	Position int   `json:"position"`
}

type RaceProgressMsg struct {
	Positions []LanePosition `json:"positions"`
}

type WinRecordMsg struct {
	Bet    roulette.Bet `json:"bet"`
	Payout int64        `json:"payout"`
}

type PlayerResultMsg struct {
	UserID   int64 `json:"user_id"`
	Seat     int   `json:"seat"`
	Rank     int   `json:"rank,omitempty"`
	Staked   int64 `json:"staked"`
	Winnings int64 `json:"winnings"`
}

// RoundFinishedMsg carries the shared view of a finished round; the acting
// player additionally receives Own filled in with their balance at send time.
type RoundFinishedMsg struct {
	RoundID     string            `json:"round_id"`
	Outcome     *roulette.Outcome `json:"outcome,omitempty"`
	WinnerID    int64             `json:"winner_id,omitempty"`
	Results     []PlayerResultMsg `json:"results"`
	Own         *OwnResultMsg     `json:"own,omitempty"`
	NextRoundIn int               `json:"next_round_in"`
	TotalStake  int64             `json:"total_stake"`
	TotalPayout int64             `json:"total_payout"`
}

type OwnResultMsg struct {
	Rank       int            `json:"rank,omitempty"`
	Staked     int64          `json:"staked"`
	Winnings   int64          `json:"winnings"`
	NewBalance int64          `json:"new_balance"`
	Wins       []WinRecordMsg `json:"wins,omitempty"`
}

type RoundCancelledMsg struct {
	RoundID string `json:"round_id"`
	Reason  string `json:"reason"`
}

type BalanceUpdateMsg struct {
	Balance int64  `json:"balance"`
	Reason  string `json:"reason"`
}

type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
