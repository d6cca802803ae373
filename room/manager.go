package room

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spinhall/casino-server/config"
	"github.com/spinhall/casino-server/models"
)

var ErrStakeRequired = errors.New("race rooms need a positive stake")

// Manager owns the live rooms. It only guards the map; everything inside a
// room is the room worker's business.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg  config.GameConfig
	deps Deps
}

func NewManager(cfg config.GameConfig, deps Deps) *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
		cfg:   cfg,
		deps:  deps,
	}
}

func (m *Manager) CreateRoom(game, name string, stake int64, persistent bool) (*Room, error) {
	if game != models.GameRoulette && game != models.GameDuckRace {
		return nil, ErrUnknownGame
	}
	if game == models.GameDuckRace && stake <= 0 {
		return nil, ErrStakeRequired
	}

	r, err := New(game, name, stake, persistent, m.cfg, m.deps)
	if err != nil {
		return nil, err
	}
	if r.Name == "" {
		r.Name = fmt.Sprintf("%s-%s", game, r.ID[:8])
	}
	r.onClose = m.dropRoom

	m.mu.Lock()
	m.rooms[r.ID] = r
	count := len(m.rooms)
	m.mu.Unlock()

	m.setGauge(count)
	return r, nil
}

func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// FindAvailableRoom returns a waiting room of the given game with a free
// seat, nil if none exists.
func (m *Manager) FindAvailableRoom(game string) *Room {
	m.mu.RLock()
	candidates := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		if r.Game == game {
			candidates = append(candidates, r)
		}
	}
	m.mu.RUnlock()

	for _, r := range candidates {
		if r.Phase() == PhaseWaiting && r.PlayerCount() < m.cfg.MaxSeats {
			return r
		}
	}
	return nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// CloseAll shuts down every room, refunding live stakes.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	for _, r := range rooms {
		r.Close()
	}
}

// dropRoom is installed as every room's onClose hook.
func (m *Manager) dropRoom(id string) {
	m.mu.Lock()
	delete(m.rooms, id)
	count := len(m.rooms)
	m.mu.Unlock()
	m.setGauge(count)
}

func (m *Manager) setGauge(count int) {
	if m.deps.Monitor != nil {
		m.deps.Monitor.SetActiveRooms(count)
	}
}
