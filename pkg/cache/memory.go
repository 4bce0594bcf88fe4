package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Memory is a process local BlockTimes.
type Memory struct {
	entries *xsync.Map[uint64, time.Time]
}

func NewMemory() *Memory {
	return &Memory{entries: xsync.NewMap[uint64, time.Time]()}
}

func (m *Memory) Get(_ context.Context, height uint64) (time.Time, bool, error) {
	t, ok := m.entries.Load(height)
	return t, ok, nil
}

func (m *Memory) Put(_ context.Context, height uint64, t time.Time) error {
	m.entries.Store(height, t)
	return nil
}

// Len is the number of cached heights.
func (m *Memory) Len() int {
	return m.entries.Size()
}
