package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEAndIs(t *testing.T) {
	cause := errors.New("boom")
	err := E(RedisUnavailable, cause, "redis unavailable")
	require.True(t, Is(err, RedisUnavailable))
	require.False(t, Is(err, ConfigError))
	require.ErrorIs(t, err, cause)
}

func TestIsFalseForPlainError(t *testing.T) {
	require.False(t, Is(errors.New("plain"), RedisUnavailable))
}

func TestErrDontPerformIsDontPerformKind(t *testing.T) {
	require.True(t, Is(ErrDontPerform, DontPerform))
}

func TestErrorMessageIncludesMessageWithoutCause(t *testing.T) {
	err := E(ConfigError, nil, "queue name must not be empty")
	require.Contains(t, err.Error(), "queue name must not be empty")
}
