// session/session.go
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/spinhall/casino-server/logger"
	"github.com/spinhall/casino-server/network"
)

// Session binds one authenticated user to one live connection. A user has at
// most one session; a newer connection for the same user replaces the old one.
type Session struct {
	UserID    int64
	Username  string
	Conn      network.Connection
	CreatedAt time.Time

	mu         sync.Mutex
	roomID     string
	alive      bool
	lastActive time.Time
}

func NewSession(userID int64, username string, conn network.Connection) *Session {
	now := time.Now()
	s := &Session{
		UserID:     userID,
		Username:   username,
		Conn:       conn,
		CreatedAt:  now,
		alive:      true,
		lastActive: now,
	}
	conn.SetPongHandler(s.MarkAlive)
	return s
}

// Send marshals the payload and writes one framed packet.
func (s *Session) Send(msgID uint16, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
	return s.Conn.Send(msgID, data)
}

// RoomID reports the room this session is bound to, "" when lobby-only.
// Guarded because the read loop writes it and the sweep timer reads it.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) SetRoomID(roomID string) {
	s.mu.Lock()
	s.roomID = roomID
	s.mu.Unlock()
}

// MarkAlive records a liveness proof (pong or any inbound packet).
func (s *Session) MarkAlive() {
	s.mu.Lock()
	s.alive = true
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// probe clears the alive flag and reports whether the session had answered
// the previous probe.
func (s *Session) probe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasAlive := s.alive
	s.alive = false
	return wasAlive
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager is the connection registry: authenticated user id -> live session.
type Manager struct {
	sessions map[int64]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
	}
}

// Add registers a session. If the user already has a live connection the old
// one is force-closed and returned so the caller can reconcile room state.
func (m *Manager) Add(s *Session) (replaced *Session) {
	m.mutex.Lock()
	old, exists := m.sessions[s.UserID]
	m.sessions[s.UserID] = s
	m.mutex.Unlock()

	if exists {
		logger.Log.Infof("User %d reconnected, closing previous connection", s.UserID)
		old.Conn.CloseWithCode(network.CloseReplaced, "replaced by newer connection")
		return old
	}
	return nil
}

// Remove drops the session for userID, but only if it is still the given one;
// a stale disconnect must not evict a fresh reconnect. Reports whether the
// session was actually removed so callers can gate their own cleanup (room
// membership) behind the same staleness check.
func (m *Manager) Remove(s *Session) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if current, exists := m.sessions[s.UserID]; exists && current == s {
		delete(m.sessions, s.UserID)
		return true
	}
	return false
}

func (m *Manager) Get(userID int64) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, exists := m.sessions[userID]
	return s, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// SendToUser delivers one event to a user; silently a no-op when the user is
// not connected.
func (m *Manager) SendToUser(userID int64, msgID uint16, payload interface{}) error {
	s, exists := m.Get(userID)
	if !exists {
		return nil
	}
	return s.Send(msgID, payload)
}

// BroadcastToUsers fans an event out to every listed user, best effort.
func (m *Manager) BroadcastToUsers(userIDs []int64, msgID uint16, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("Broadcast marshal failed: %v", err)
		return
	}
	for _, id := range userIDs {
		if s, exists := m.Get(id); exists {
			if err := s.Conn.Send(msgID, data); err != nil {
				logger.Log.Warnf("Broadcast to user %d failed: %v", id, err)
			}
		}
	}
}

// SweepStale probes every session: one that never answered the previous probe
// is closed and evicted. Returns the evicted sessions so the caller can tear
// down their room membership; a session a newer connection has already
// replaced is never reported, its room now belongs to the replacement.
func (m *Manager) SweepStale() []*Session {
	m.mutex.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mutex.RUnlock()

	var evicted []*Session
	for _, s := range all {
		if !s.probe() {
			logger.Log.Infof("Evicting unresponsive connection for user %d", s.UserID)
			s.Conn.Close()
			if m.Remove(s) {
				evicted = append(evicted, s)
			}
			continue
		}
		if err := s.Conn.Ping(); err != nil {
			logger.Log.Infof("Ping failed for user %d: %v", s.UserID, err)
			s.Conn.Close()
			if m.Remove(s) {
				evicted = append(evicted, s)
			}
		}
	}
	return evicted
}
