package registry

import (
	"context"
	"testing"

	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	accepts domain.SensorType
	got     []*domain.Notification
}

func (h *recordingHandler) Handle(_ context.Context, n *domain.Notification) error {
	h.got = append(h.got, n)
	return nil
}

func (h *recordingHandler) CanHandle(sensorType domain.SensorType) bool {
	return sensorType == h.accepts
}

func TestHandlerRegistry_RoutesBySensorType(t *testing.T) {
	reg := NewHandlerRegistry()
	dht := &recordingHandler{accepts: domain.SensorTypeDHT22}
	reg.Register(domain.SensorTypeDHT22, dht)

	n := &domain.Notification{SensorType: domain.SensorTypeDHT22, UserID: "42"}
	require.NoError(t, reg.Handle(context.Background(), n))

	require.Len(t, dht.got, 1)
	assert.Same(t, n, dht.got[0])
}

func TestHandlerRegistry_UnknownSensorTypeIsFilterMiss(t *testing.T) {
	reg := NewHandlerRegistry()
	dht := &recordingHandler{accepts: domain.SensorTypeDHT22}
	reg.Register(domain.SensorTypeDHT22, dht)

	for _, st := range []domain.SensorType{domain.SensorTypeBMP180, "", "dht_22"} {
		err := reg.Handle(context.Background(), &domain.Notification{SensorType: st, UserID: "42"})
		assert.True(t, errors.HasCode(err, errors.CodeBrokerFilterMiss), string(st))
	}
	assert.Empty(t, dht.got)
}

func TestHandlerRegistry_HandlerRefusingTypeIsFilterMiss(t *testing.T) {
	reg := NewHandlerRegistry()
	reg.Register(domain.SensorTypeBMP180, &recordingHandler{accepts: domain.SensorTypeDHT22})

	err := reg.Handle(context.Background(), &domain.Notification{SensorType: domain.SensorTypeBMP180})
	assert.True(t, errors.HasCode(err, errors.CodeBrokerFilterMiss))
}

func TestHandlerFunc(t *testing.T) {
	reg := NewHandlerRegistry()
	var calls int
	reg.Register(domain.SensorTypeBMP180, HandlerFunc(func(context.Context, *domain.Notification) error {
		calls++
		return nil
	}))

	require.NoError(t, reg.Handle(context.Background(), &domain.Notification{SensorType: domain.SensorTypeBMP180}))
	assert.Equal(t, 1, calls)
}
