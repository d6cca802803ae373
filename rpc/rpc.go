package rpc

import (
	"net"
	"net/rpc"

	"github.com/spinhall/casino-server/logger"
	"github.com/spinhall/casino-server/models"
	"github.com/spinhall/casino-server/persistence"
)

// Server manages the admin RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// HistoryService exposes per-player round history to back-office tooling.
// Methods follow the net/rpc signature rules.
type HistoryService struct {
	store persistence.RoundStore
}

func NewHistoryService(store persistence.RoundStore) *HistoryService {
	return &HistoryService{store: store}
}

type PlayerRoundsArgs struct {
	UserID int64
	Limit  int
}

type PlayerRoundsReply struct {
	Rounds []models.RoundRecord
}

func (hs *HistoryService) GetPlayerRounds(args *PlayerRoundsArgs, reply *PlayerRoundsReply) error {
	rounds, err := hs.store.PlayerRounds(args.UserID, args.Limit)
	if err != nil {
		return err
	}
	reply.Rounds = rounds
	return nil
}

type PlayerStatsReply struct {
	TotalRounds int
	TotalStaked int64
	TotalWon    int64
}

// GetPlayerStats aggregates over the player's recent rounds.
func (hs *HistoryService) GetPlayerStats(args *PlayerRoundsArgs, reply *PlayerStatsReply) error {
	rounds, err := hs.store.PlayerRounds(args.UserID, args.Limit)
	if err != nil {
		return err
	}
	for _, round := range rounds {
		for _, p := range round.Players {
			if p.UserID != args.UserID {
				continue
			}
			reply.TotalRounds++
			reply.TotalStaked += p.Staked
			reply.TotalWon += p.Winnings
		}
	}
	return nil
}
