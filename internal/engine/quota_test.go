package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimits(t *testing.T) {
	q := NewQuotaEnforcer(3, 5)

	for _, depth := range []int{1, 2, 3, 2, 3} {
		require.NoError(t, q.Enter("area", "call-1", depth))
	}
	assert.Equal(t, 5, q.Steps())
	assert.Equal(t, 3, q.Deepest())
}

func TestQuotaEnforcer_StepsExceeded(t *testing.T) {
	q := NewQuotaEnforcer(0, 3)
	for range 3 {
		require.NoError(t, q.Enter("area", "call-1", 1))
	}

	err := q.Enter("area", "call-1", 2)
	require.Error(t, err)
	assert.True(t, IsStepsExceededError(err))

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, "call-1", stepsErr.CallToken)
	assert.Equal(t, 4, stepsErr.Steps)
	assert.Equal(t, 3, stepsErr.Limit)
}

func TestQuotaEnforcer_DepthExceeded(t *testing.T) {
	q := NewQuotaEnforcer(2, 0)
	require.NoError(t, q.Enter("fact", "", 1))
	require.NoError(t, q.Enter("fact", "", 2))

	err := q.Enter("fact", "", 3)
	require.Error(t, err)
	assert.True(t, IsDepthExceeded(err))
	assert.Equal(t, "fact", err.(*DispatchError).Generic)
	assert.Equal(t, 2, q.Steps(), "a refused frame is not counted")
}

func TestQuotaEnforcer_ZeroIsUnlimited(t *testing.T) {
	q := NewQuotaEnforcer(0, 0)
	for i := range 10000 {
		require.NoError(t, q.Enter("g", "", i+1))
	}
}

func TestStepsExceededError_Message(t *testing.T) {
	err := &StepsExceededError{CallToken: "call-abc", Steps: 11, Limit: 10}
	msg := err.Error()
	assert.Contains(t, msg, "call-abc")
	assert.Contains(t, msg, "11")
	assert.Contains(t, msg, "10")

	anonymous := &StepsExceededError{Steps: 2, Limit: 1}
	assert.NotContains(t, anonymous.Error(), "call  ")
}

func TestIsStepsExceededError_Wrapped(t *testing.T) {
	stepsErr := &StepsExceededError{CallToken: "call-1", Steps: 10, Limit: 5}
	wrapped := fmt.Errorf("dispatch area: %w", stepsErr)

	assert.True(t, IsStepsExceededError(wrapped))
	assert.False(t, IsStepsExceededError(fmt.Errorf("other")))
}
