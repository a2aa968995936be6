package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(ErrValidation, "unit count must be positive")
	assert.Equal(t, "[VALIDATION] unit count must be positive", err.Error())

	cause := errors.New("dial tcp: connection refused")
	err = NewError(ErrAgentUnreachable, "probe failed").WithCause(cause).WithAgentID("hotel-booking-agent")
	assert.Contains(t, err.Error(), "AGENT_UNREACHABLE")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "hotel-booking-agent", err.AgentID)
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	err := NewError(ErrRegistryFault, "store unavailable")
	assert.Equal(t, ErrRegistryFault, CodeOf(err))

	wrapped := fmt.Errorf("discovery cycle: %w", err)
	assert.Equal(t, ErrRegistryFault, CodeOf(wrapped))

	assert.Equal(t, ErrInternal, CodeOf(errors.New("plain")))
}

func TestIsCode(t *testing.T) {
	err := NewError(ErrUnsupportedTask, "unknown task type")
	require.True(t, IsCode(err, ErrUnsupportedTask))
	require.False(t, IsCode(err, ErrValidation))
	require.False(t, IsCode(errors.New("plain"), ErrUnsupportedTask))
}

func TestIsRetryable(t *testing.T) {
	err := NewError(ErrAgentUnreachable, "probe timeout").WithRetryable(true)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(NewError(ErrValidation, "bad input")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
