package registry

import (
	"context"
	"sync"

	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/pkg/errors"
)

// Handler processes one decoded broker notification.
type Handler interface {
	Handle(ctx context.Context, n *domain.Notification) error
	CanHandle(sensorType domain.SensorType) bool
}

// HandlerFunc adapts a function to Handler. It accepts every sensor type
// it is registered under.
type HandlerFunc func(ctx context.Context, n *domain.Notification) error

func (f HandlerFunc) Handle(ctx context.Context, n *domain.Notification) error {
	return f(ctx, n)
}

func (f HandlerFunc) CanHandle(domain.SensorType) bool {
	return true
}

type HandlerRegistry interface {
	Register(sensorType domain.SensorType, handler Handler)

	Get(sensorType domain.SensorType) (Handler, bool)

	// Handle routes n by sensor type. Unknown sensor types yield a
	// BROKER_FILTER_MISS error.
	Handle(ctx context.Context, n *domain.Notification) error
}

type DefaultHandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[domain.SensorType]Handler
}

func NewHandlerRegistry() *DefaultHandlerRegistry {
	return &DefaultHandlerRegistry{
		handlers: make(map[domain.SensorType]Handler),
	}
}

func (r *DefaultHandlerRegistry) Register(sensorType domain.SensorType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[sensorType] = handler
}

func (r *DefaultHandlerRegistry) Get(sensorType domain.SensorType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[sensorType]
	return handler, ok
}

func (r *DefaultHandlerRegistry) Handle(ctx context.Context, n *domain.Notification) error {
	handler, ok := r.Get(n.SensorType)
	if !ok || !handler.CanHandle(n.SensorType) {
		return errors.BrokerFilterMiss(string(n.SensorType))
	}

	return handler.Handle(ctx, n)
}
