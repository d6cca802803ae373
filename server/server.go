// Package server owns the websocket edge: upgrading, authenticating and
// routing framed packets into the room engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/spinhall/casino-server/auth"
	"github.com/spinhall/casino-server/games/roulette"
	"github.com/spinhall/casino-server/logger"
	"github.com/spinhall/casino-server/models"
	"github.com/spinhall/casino-server/monitor"
	"github.com/spinhall/casino-server/network"
	"github.com/spinhall/casino-server/room"
	"github.com/spinhall/casino-server/session"
	"github.com/spinhall/casino-server/wallet"
)

type GameServer struct {
	addr     string
	upgrader websocket.Upgrader

	verifier auth.Verifier
	sessions *session.Manager
	rooms    *room.Manager
	mon      *monitor.Monitor

	httpServer *http.Server
}

func NewGameServer(addr string, verifier auth.Verifier, sessions *session.Manager, rooms *room.Manager, mon *monitor.Monitor) *GameServer {
	return &GameServer{
		addr:     addr,
		verifier: verifier,
		sessions: sessions,
		rooms:    rooms,
		mon:      mon,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
}

func (s *GameServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	logger.Log.Infof("Game server listening on %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	s.rooms.CloseAll()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// SweepSessions evicts connections that missed the previous liveness probe
// and reconciles their room membership. Scheduled periodically from main.
func (s *GameServer) SweepSessions() {
	for _, sess := range s.sessions.SweepStale() {
		logger.Log.Infof("Evicting stale session, user %d", sess.UserID)
		if roomID := sess.RoomID(); roomID != "" {
			if r, ok := s.rooms.GetRoom(roomID); ok {
				r.Disconnect(sess.UserID)
			}
		}
		if s.mon != nil {
			s.mon.DecOnlinePlayers()
		}
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	wsConn := network.NewWSConnection(conn)

	identity, err := s.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		logger.Log.Infof("Rejected connection from %s: %v", wsConn.RemoteAddr(), err)
		wsConn.CloseWithCode(network.CloseAuthFailed, "authentication failed")
		return
	}

	s.handleConnection(wsConn, identity)
}

func (s *GameServer) handleConnection(conn network.Connection, identity auth.Identity) {
	sess := session.NewSession(identity.UserID, identity.Username, conn)
	if replaced := s.sessions.Add(sess); replaced != nil {
		// the room binding survives a reconnect
		sess.SetRoomID(replaced.RoomID())
	}
	if s.mon != nil {
		s.mon.IncOnlinePlayers()
	}

	logger.Log.Infof("User %d (%s) connected from %s", sess.UserID, sess.Username, conn.RemoteAddr())

	defer func() {
		logger.Log.Infof("User %d disconnected", sess.UserID)
		// Remove reports false when a newer connection already replaced
		// this session; room membership then belongs to the replacement
		// and a stale disconnect must not evict the player.
		if s.sessions.Remove(sess) {
			if roomID := sess.RoomID(); roomID != "" {
				if r, ok := s.rooms.GetRoom(roomID); ok {
					r.Disconnect(sess.UserID)
				}
			}
		}
		if s.mon != nil {
			s.mon.DecOnlinePlayers()
		}
		conn.Close()
	}()

	for {
		packet, err := conn.ReadPacket()
		if err != nil {
			return
		}
		sess.MarkAlive()
		s.handlePacket(sess, packet)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypePing:
		sess.Send(network.MsgTypePong, nil)
	case network.MsgTypeCreateRoom:
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess)
	case network.MsgTypePlaceBet:
		s.handlePlaceBet(sess, packet)
	case network.MsgTypeRemoveBet:
		s.handleRemoveBet(sess, packet)
	case network.MsgTypeClearBets:
		s.inRoom(sess, func(r *room.Room) error { return r.ClearBets(sess.UserID) })
	case network.MsgTypeLockBets:
		s.inRoom(sess, func(r *room.Room) error { return r.LockBets(sess.UserID) })
	case network.MsgTypeSetReady:
		s.handleSetReady(sess, packet)
	default:
		logger.Log.Infof("Unknown message type %d from user %d", packet.MsgID, sess.UserID)
		s.sendError(sess, network.ErrCodeProtocol, "unknown message type")
	}
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	var req network.CreateRoomReq
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, network.ErrCodeProtocol, "malformed create-room request")
		return
	}
	if sess.RoomID() != "" {
		s.sendError(sess, network.ErrCodeValidation, "already in a room")
		return
	}

	r, err := s.rooms.CreateRoom(req.Game, req.Name, req.Stake, req.Persistent)
	if err != nil {
		s.sendError(sess, errCode(err), err.Error())
		return
	}
	if err := r.Join(sess.UserID, sess.Username); err != nil {
		s.sendError(sess, errCode(err), err.Error())
		return
	}
	sess.SetRoomID(r.ID)
	logger.Log.Infof("User %d created %s room %s", sess.UserID, r.Game, r.ID)
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req network.JoinRoomReq
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, network.ErrCodeProtocol, "malformed join request")
		return
	}
	// joining the room the session is already bound to is a rejoin and
	// resends the snapshot; joining anywhere else needs a leave first
	if bound := sess.RoomID(); bound != "" && bound != req.RoomID {
		s.sendError(sess, network.ErrCodeValidation, "already in a room")
		return
	}

	var r *room.Room
	if req.RoomID != "" {
		var ok bool
		if r, ok = s.rooms.GetRoom(req.RoomID); !ok {
			s.sendError(sess, network.ErrCodeRoomNotFound, "no such room")
			return
		}
	} else {
		game := req.Game
		if game == "" {
			game = models.GameRoulette
		}
		if r = s.rooms.FindAvailableRoom(game); r == nil {
			s.sendError(sess, network.ErrCodeRoomNotFound, "no open room for game")
			return
		}
	}

	if err := r.Join(sess.UserID, sess.Username); err != nil {
		s.sendError(sess, errCode(err), err.Error())
		return
	}
	sess.SetRoomID(r.ID)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) {
	s.inRoom(sess, func(r *room.Room) error {
		err := r.Leave(sess.UserID)
		if err == nil || errors.Is(err, room.ErrRoomClosed) {
			sess.SetRoomID("")
			return nil
		}
		return err
	})
}

func (s *GameServer) handlePlaceBet(sess *session.Session, packet *network.Packet) {
	var req network.PlaceBetReq
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, network.ErrCodeProtocol, "malformed bet")
		return
	}
	s.inRoom(sess, func(r *room.Room) error { return r.PlaceBet(sess.UserID, req.Bet) })
}

func (s *GameServer) handleRemoveBet(sess *session.Session, packet *network.Packet) {
	var req network.RemoveBetReq
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, network.ErrCodeProtocol, "malformed remove-bet request")
		return
	}
	s.inRoom(sess, func(r *room.Room) error { return r.RemoveBet(sess.UserID, req.Index) })
}

func (s *GameServer) handleSetReady(sess *session.Session, packet *network.Packet) {
	var req network.SetReadyReq
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, network.ErrCodeProtocol, "malformed ready request")
		return
	}
	s.inRoom(sess, func(r *room.Room) error { return r.SetReady(sess.UserID, req.Ready) })
}

// inRoom resolves the session's room and reports any action error back to
// the client as a typed error event.
func (s *GameServer) inRoom(sess *session.Session, action func(r *room.Room) error) {
	roomID := sess.RoomID()
	if roomID == "" {
		s.sendError(sess, network.ErrCodeValidation, "not in a room")
		return
	}
	r, ok := s.rooms.GetRoom(roomID)
	if !ok {
		sess.SetRoomID("")
		s.sendError(sess, network.ErrCodeRoomNotFound, "room is gone")
		return
	}
	if err := action(r); err != nil {
		s.sendError(sess, errCode(err), err.Error())
	}
}

func (s *GameServer) sendError(sess *session.Session, code, message string) {
	sess.Send(network.MsgTypeError, &network.ErrorMsg{Code: code, Message: message})
}

// errCode maps an action error onto the wire error taxonomy.
func errCode(err error) string {
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return network.ErrCodeResource
	case errors.Is(err, wallet.ErrUnavailable):
		return network.ErrCodeDependency
	case errors.Is(err, room.ErrRoomClosed), errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrRoundInProgress):
		return network.ErrCodeResource
	case errors.Is(err, roulette.ErrNumberOutOfRange):
		return network.ErrCodeValidation
	default:
		return network.ErrCodeValidation
	}
}
