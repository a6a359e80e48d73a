package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinBudget(t *testing.T) {
	l := New(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Allow("alice"), "request %d should pass", i+1)
	}
	assert.ErrorIs(t, l.Allow("alice"), ErrRateLimited, "request over budget should be denied")
}

func TestUsersAreIndependent(t *testing.T) {
	l := New(1, time.Hour)

	assert.NoError(t, l.Allow("alice"))
	assert.ErrorIs(t, l.Allow("alice"), ErrRateLimited)
	assert.NoError(t, l.Allow("bob"))
}

func TestNoRefillMidWindow(t *testing.T) {
	l := New(2, 300*time.Millisecond)

	require.NoError(t, l.Allow("alice"))
	require.NoError(t, l.Allow("alice"))
	require.ErrorIs(t, l.Allow("alice"), ErrRateLimited)

	// Still inside the same window: the budget must stay spent.
	time.Sleep(150 * time.Millisecond)
	assert.ErrorIs(t, l.Allow("alice"), ErrRateLimited)
}

func TestWindowResetsAfterElapsing(t *testing.T) {
	l := New(2, 100*time.Millisecond)

	require.NoError(t, l.Allow("alice"))
	require.NoError(t, l.Allow("alice"))
	require.ErrorIs(t, l.Allow("alice"), ErrRateLimited)

	time.Sleep(120 * time.Millisecond)
	assert.NoError(t, l.Allow("alice"))
}

func TestNewSanitizesConfig(t *testing.T) {
	l := New(0, 0)
	assert.Equal(t, 5, l.count)
	assert.Equal(t, time.Minute, l.window)
}
