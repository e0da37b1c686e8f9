// Package store keeps a history of finished rounds.
package store

import (
	"context"
	"sync"
	"time"
)

// Round is one finished round of a room.
type Round struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	RoomCode string    `gorm:"index;size:16" json:"room_code"`
	Mode     string    `gorm:"size:32" json:"mode"`
	Winner   string    `gorm:"size:16" json:"winner"`
	Players  int       `json:"players"`
	EndedAt  time.Time `json:"ended_at"`
}

type Recorder interface {
	RecordRound(ctx context.Context, r Round) error
	RecentRounds(ctx context.Context, roomCode string, limit int) ([]Round, error)
	Close() error
}

// Memory is a Recorder for tests and single-node runs without a database.
type Memory struct {
	mu     sync.Mutex
	rounds []Round
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordRound(_ context.Context, r Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uint(len(m.rounds) + 1)
	m.rounds = append(m.rounds, r)
	return nil
}

// RecentRounds returns newest first.
func (m *Memory) RecentRounds(_ context.Context, roomCode string, limit int) ([]Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Round
	for i := len(m.rounds) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if m.rounds[i].RoomCode == roomCode {
			out = append(out, m.rounds[i])
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
