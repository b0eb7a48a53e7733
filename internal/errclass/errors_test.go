package errclass_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinchtab/pinchlock/internal/errclass"
)

func TestErrorString(t *testing.T) {
	assert.Equal(t, "E_LOCK_HELD", errclass.ErrLockHeld.Error())
	assert.Equal(t, "E_LOCK_HELD: held by pid 42", errclass.ErrLockHeld.WithMessage("held by pid 42").Error())
}

func TestIsMatchesByCode(t *testing.T) {
	err := errclass.ErrLockHeld.WithMessagef("held by pid %d for %s", 42, "3s")
	require.ErrorIs(t, err, errclass.ErrLockHeld)
	require.NotErrorIs(t, err, errclass.ErrRunTimeout)
}

func TestIsWithStandardError(t *testing.T) {
	require.False(t, errors.Is(errclass.ErrLaunchFailed, errors.New("launch failed")))
	require.False(t, errors.Is(errors.New("launch failed"), errclass.ErrLaunchFailed))
}

func TestWithMessageDoesNotMutateBase(t *testing.T) {
	_ = errclass.ErrRunTimeout.WithMessage("consumer exceeded 2s")
	assert.Empty(t, errclass.ErrRunTimeout.Message)
}
