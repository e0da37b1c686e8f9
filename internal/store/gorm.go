package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Gorm stores rounds in postgres.
type Gorm struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Round{}); err != nil {
		return nil, fmt.Errorf("migrate rounds: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) RecordRound(ctx context.Context, r Round) error {
	r.ID = 0
	if err := g.db.WithContext(ctx).Create(&r).Error; err != nil {
		return fmt.Errorf("record round: %w", err)
	}
	return nil
}

func (g *Gorm) RecentRounds(ctx context.Context, roomCode string, limit int) ([]Round, error) {
	var rounds []Round
	q := g.db.WithContext(ctx).Where("room_code = ?", roomCode).Order("ended_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rounds).Error; err != nil {
		return nil, fmt.Errorf("recent rounds: %w", err)
	}
	return rounds, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
