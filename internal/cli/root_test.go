package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pinchtab/pinchlock/internal/errclass"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"lock held", errclass.ErrLockHeld, exitLockHeld},
		{"lock held wrapped", errclass.ErrLockHeld.WithMessage("held by pid 42"), exitLockHeld},
		{"launch failed", errclass.ErrLaunchFailed, exitLaunchFailed},
		{"chrome unavailable", errclass.ErrChromeUnavailable, exitLaunchFailed},
		{"run timeout", errclass.ErrRunTimeout, exitTimeout},
		{"consumer code passes through", &consumerExitError{code: 7}, 7},
		{"consumer code wrapped", fmt.Errorf("run: %w", &consumerExitError{code: 3}), 3},
		{"unknown error", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestConsumerExitErrorMessage(t *testing.T) {
	err := &consumerExitError{code: 9}
	assert.Equal(t, "consumer exited with code 9", err.Error())
}
