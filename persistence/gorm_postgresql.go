// persistence/gorm_postgresql.go
package persistence

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spinhall/casino-server/models"
)

// GormPostgreSQL stores finished rounds in PostgreSQL.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// RoundModel is the storage row for a finished round; the player slice and
// outcome are JSONB documents.
type RoundModel struct {
	ID         uint           `gorm:"primaryKey"`
	RoundID    string         `gorm:"uniqueIndex;not null"`
	RoomID     string         `gorm:"index;not null"`
	RoomName   string         `gorm:"not null"`
	Game       string         `gorm:"index;not null"`
	WinnerID   int64          `gorm:"index"`
	Pot        int64          `gorm:"not null"`
	TotalStake int64          `gorm:"not null"`
	TotalPaid  int64          `gorm:"not null"`
	Outcome    datatypes.JSON `gorm:"type:jsonb"`
	Players    datatypes.JSON `gorm:"type:jsonb;not null"`
	FinishedAt time.Time      `gorm:"index;not null"`
	CreatedAt  time.Time
}

type BigWinModel struct {
	ID        uint           `gorm:"primaryKey"`
	RoundID   string         `gorm:"index;not null"`
	UserID    int64          `gorm:"index;not null"`
	Staked    int64          `gorm:"not null"`
	Winnings  int64          `gorm:"not null"`
	Detail    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&RoundModel{},
		&BigWinModel{},
	)
}

func (p *GormPostgreSQL) SaveRound(record *models.RoundRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}
	var outcome datatypes.JSON
	if record.Outcome != nil {
		raw, err := json.Marshal(record.Outcome)
		if err != nil {
			return fmt.Errorf("marshal outcome: %w", err)
		}
		outcome = datatypes.JSON(raw)
	}

	row := RoundModel{
		RoundID:    record.RoundID,
		RoomID:     record.RoomID,
		RoomName:   record.RoomName,
		Game:       record.Game,
		WinnerID:   record.WinnerID,
		Pot:        record.Pot,
		TotalStake: record.TotalStake,
		TotalPaid:  record.TotalPaid,
		Outcome:    outcome,
		Players:    datatypes.JSON(players),
		FinishedAt: record.FinishedAt,
	}
	return p.db.Create(&row).Error
}

func (p *GormPostgreSQL) PlayerRounds(userID int64, limit int) ([]models.RoundRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows []RoundModel
	err := p.db.
		Where("players @> ?", fmt.Sprintf(`[{"user_id": %d}]`, userID)).
		Order("finished_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]models.RoundRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.RoundRecord{
			RoundID:    row.RoundID,
			RoomID:     row.RoomID,
			RoomName:   row.RoomName,
			Game:       row.Game,
			WinnerID:   row.WinnerID,
			Pot:        row.Pot,
			TotalStake: row.TotalStake,
			TotalPaid:  row.TotalPaid,
			FinishedAt: row.FinishedAt,
		}
		if len(row.Players) > 0 {
			if err := json.Unmarshal(row.Players, &rec.Players); err != nil {
				return nil, fmt.Errorf("unmarshal players for %s: %w", row.RoundID, err)
			}
		}
		if len(row.Outcome) > 0 {
			if err := json.Unmarshal(row.Outcome, &rec.Outcome); err != nil {
				return nil, fmt.Errorf("unmarshal outcome for %s: %w", row.RoundID, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (p *GormPostgreSQL) SaveBigWin(roundID string, result models.PlayerRoundResult) error {
	detail, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal big win: %w", err)
	}
	row := BigWinModel{
		RoundID:  roundID,
		UserID:   result.UserID,
		Staked:   result.Staked,
		Winnings: result.Winnings,
		Detail:   datatypes.JSON(detail),
	}
	return p.db.Create(&row).Error
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
