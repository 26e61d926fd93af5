// Package store holds MessageRepository implementations.
package store

import (
	"context"
	"sync"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
)

// Memory is an unbounded, append-only repository.
type Memory struct {
	mu       sync.RWMutex
	messages []*domain.Message
}

var _ domain.MessageRepository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, msg *domain.Message) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, msg)
	return msg, nil
}

// FindAll returns a copy of the stored messages in insertion order.
func (m *Memory) FindAll(_ context.Context) ([]*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Message, len(m.messages))
	copy(out, m.messages)
	return out, nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, msg := range m.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, sensorlink.ErrMessageNotFound
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}
