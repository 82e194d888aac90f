package lock

import (
	"context"
	"testing"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	unlock, err := l.Acquire(ctx, "sync")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "sync")
	assert.ErrorIs(t, err, port.ErrLockNotObtained)

	other, err := l.Acquire(ctx, "other")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx))

	again, err := l.Acquire(ctx, "sync")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestLocalLocker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalLocker().Acquire(ctx, "sync")
	assert.ErrorIs(t, err, context.Canceled)
}
