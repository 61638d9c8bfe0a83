package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("specific message matches sentinel by code", func(t *testing.T) {
		err := NewDomainError("INVALID_INPUT", "customer id is required")
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.False(t, errors.Is(err, ErrAlreadyExists))
	})

	t.Run("wrapped error still matches", func(t *testing.T) {
		err := fmt.Errorf("add referral: %w", NewDomainError("ALREADY_EXISTS", "customer already referred"))
		assert.True(t, errors.Is(err, ErrAlreadyExists))
	})

	t.Run("non domain error does not match", func(t *testing.T) {
		assert.False(t, errors.Is(errors.New("INVALID_INPUT"), ErrInvalidInput))
	})

	t.Run("error message is the message field", func(t *testing.T) {
		assert.Equal(t, "Operation timed out", ErrTimeout.Error())
	})
}
