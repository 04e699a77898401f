package store_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/listenupapp/reading-server/internal/store"
)

func TestError_Error(t *testing.T) {
	err := &store.Error{Message: "not found"}
	assert.Equal(t, "not found", err.Error())
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := &store.Error{Message: "write failed", Err: cause}

	assert.Equal(t, "write failed: disk I/O error", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestError_WithMessage(t *testing.T) {
	modified := store.ErrNotFound.WithMessage("session not found")

	assert.Equal(t, "session not found", modified.Error())
	assert.Equal(t, "resource not found", store.ErrNotFound.Message)
}

func TestSentinels_MatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create session: %w", store.ErrOpenSessionExists)

	assert.ErrorIs(t, err, store.ErrOpenSessionExists)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}
