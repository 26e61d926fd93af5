package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := range 3 {
		_, err := m.Save(ctx, &domain.Message{ID: fmt.Sprint(i), Content: "c", Sender: "1", Timestamp: time.Now()})
		require.NoError(t, err)
	}

	all, err := m.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, msg := range all {
		assert.Equal(t, fmt.Sprint(i), msg.ID)
	}

	got, err := m.FindByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)

	_, err = m.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, sensorlink.ErrMessageNotFound)
}

func TestMemory_FindAllReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, _ = m.Save(ctx, &domain.Message{ID: "a"})

	all, _ := m.FindAll(ctx)
	all[0] = &domain.Message{ID: "mutated"}

	again, _ := m.FindAll(ctx)
	assert.Equal(t, "a", again[0].ID)
}

func TestMemory_ConcurrentSave(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Save(ctx, &domain.Message{ID: fmt.Sprint(i)})
		}()
	}
	wg.Wait()

	all, _ := m.FindAll(ctx)
	assert.Len(t, all, 100)
}
