package helper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	t.Run("Preserves the inner message", func(t *testing.T) {
		inner := errors.New("database connection is nil")
		err := NewError("database connection validation", inner)

		assert.Contains(t, err.Error(), "database connection validation")
		assert.Contains(t, err.Error(), "database connection is nil")
	})

	t.Run("Supports errors.Is through wrapping", func(t *testing.T) {
		sentinel := errors.New("no rows")
		err := NewError("scan", fmt.Errorf("select: %w", sentinel))

		assert.ErrorIs(t, err, sentinel)
	})
}
