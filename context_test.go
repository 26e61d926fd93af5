package sensorlink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityFromContext(t *testing.T) {
	ctx := WithIdentity(context.Background(), "42")

	identity, ok := IdentityFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "42", identity)

	_, ok = IdentityFromContext(context.Background())
	assert.False(t, ok)

	_, ok = IdentityFromContext(WithIdentity(context.Background(), ""))
	assert.False(t, ok)
}
