package domaintest

import (
	"context"
	"sync"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
)

// Repository is a MessageRepository double that can be told to fail.
type Repository struct {
	mu       sync.Mutex
	messages []*domain.Message
	saveErr  error
}

var _ domain.MessageRepository = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) FailSaves(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

func (r *Repository) Save(_ context.Context, msg *domain.Message) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.messages = append(r.messages, msg)
	return msg, nil
}

func (r *Repository) FindAll(_ context.Context) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Message(nil), r.messages...), nil
}

func (r *Repository) FindByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, sensorlink.ErrMessageNotFound
}

func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}
