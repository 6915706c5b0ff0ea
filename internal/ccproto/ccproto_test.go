package ccproto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "aborted", Aborted.String())
	assert.Equal(t, "intercepted-retry", InterceptedRetry.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}

func TestFatalErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := &FatalError{Op: "lock", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "lock")
	assert.Contains(t, err.Error(), "boom")
}
