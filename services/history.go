// services/history.go
package services

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spinhall/casino-server/logger"
	"github.com/spinhall/casino-server/models"
	"github.com/spinhall/casino-server/persistence"
)

const (
	recentOutcomesKey = "casino:recent:"
	recentOutcomesCap = 50
	submitTimeout     = 5 * time.Second
)

// HistoryWriter persists finished rounds and raises the side-channel events.
// Submit is fire-and-forget: rooms hand the record off and move on; nothing
// here may block round progress or surface errors to players.
type HistoryWriter struct {
	store    persistence.RoundStore
	notifier Notifier
	redis    *redis.Client
}

func NewHistoryWriter(store persistence.RoundStore, notifier Notifier, rdb *redis.Client) *HistoryWriter {
	return &HistoryWriter{store: store, notifier: notifier, redis: rdb}
}

func (h *HistoryWriter) Submit(record *models.RoundRecord) {
	go h.write(record)
}

func (h *HistoryWriter) write(record *models.RoundRecord) {
	if h.store != nil {
		if err := h.store.SaveRound(record); err != nil {
			logger.Log.Errorf("Round %s history write failed: %v", record.RoundID, err)
		}
	}

	if h.redis != nil && record.Outcome != nil {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		key := recentOutcomesKey + record.RoomID
		pipe := h.redis.Pipeline()
		pipe.LPush(ctx, key, record.Outcome.Number)
		pipe.LTrim(ctx, key, 0, recentOutcomesCap-1)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Log.Warnf("Recent outcome cache update failed for room %s: %v", record.RoomID, err)
		}
		cancel()
	}

	if h.notifier != nil {
		if err := h.notifier.PublishRound(record); err != nil {
			logger.Log.Warnf("Round %s analytics publish failed: %v", record.RoundID, err)
		}
	}

	for _, win := range record.BigWins() {
		if h.store != nil {
			if err := h.store.SaveBigWin(record.RoundID, win); err != nil {
				logger.Log.Errorf("Big win write failed for user %d: %v", win.UserID, err)
			}
		}
		if h.notifier != nil {
			if err := h.notifier.PublishBigWin(record.RoundID, win); err != nil {
				logger.Log.Warnf("Big win publish failed for user %d: %v", win.UserID, err)
			}
		}
	}
}

// RecentOutcomes returns the last drawn numbers for a room, newest first.
// Best effort: an empty slice on any cache failure.
func (h *HistoryWriter) RecentOutcomes(roomID string, limit int) []int {
	if h.redis == nil {
		return nil
	}
	if limit <= 0 || limit > recentOutcomesCap {
		limit = recentOutcomesCap
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	values, err := h.redis.LRange(ctx, recentOutcomesKey+roomID, 0, int64(limit-1)).Result()
	if err != nil {
		logger.Log.Warnf("Recent outcome fetch failed for room %s: %v", roomID, err)
		return nil
	}

	outcomes := make([]int, 0, len(values))
	for _, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			logger.Log.Warnf("Corrupt recent outcome %q for room %s", v, roomID)
			continue
		}
		outcomes = append(outcomes, n)
	}
	return outcomes
}
