package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff(attempts int) Backoff {
	return Backoff{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
		Jitter:          0.5,
		MaxElapsed:      5 * time.Second,
		MaxAttempts:     attempts,
	}
}

func TestUntilSucceeds(t *testing.T) {
	calls := 0
	var notified []string
	err := Until(context.Background(), "cluster", fastBackoff(10), func(context.Context) (bool, string, error) {
		calls++
		if calls < 3 {
			return false, "creating", nil
		}
		return true, "available", nil
	}, func(status string, _ time.Duration) {
		notified = append(notified, status)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"creating", "creating"}, notified)
}

func TestUntilStillPending(t *testing.T) {
	calls := 0
	err := Until(context.Background(), "cluster dwh", fastBackoff(4), func(context.Context) (bool, string, error) {
		calls++
		return false, "creating", nil
	}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStillPending))
	var pending *PendingError
	require.True(t, errors.As(err, &pending))
	assert.Equal(t, "creating", pending.LastStatus)
	assert.Equal(t, 4, pending.Attempts)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "cluster dwh still pending")
}

func TestUntilPermanentError(t *testing.T) {
	boom := errors.New("access denied")
	calls := 0
	err := Until(context.Background(), "cluster", fastBackoff(10), func(context.Context) (bool, string, error) {
		calls++
		return false, "", boom
	}, nil)

	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := fastBackoff(0)
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond

	err := Until(ctx, "cluster", b, func(context.Context) (bool, string, error) {
		cancel()
		return false, "creating", nil
	}, nil)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrStillPending))
}
