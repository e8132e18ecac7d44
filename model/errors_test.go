package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileError(t *testing.T) {
	t.Run("Carries operation and path", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := NewFileError("read", "/data/letter.txt", cause)

		assert.Contains(t, err.Error(), "read")
		assert.Contains(t, err.Error(), "/data/letter.txt")
		assert.ErrorIs(t, err, cause, "Expected wrapped cause to survive")
	})

	t.Run("Matches through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("processing failed: %w", NewFileError("write", "/out.txt", errors.New("disk full")))

		fileErr := &FileError{}
		require.ErrorAs(t, wrapped, &fileErr)
		assert.Equal(t, "write", fileErr.Op)
		assert.Equal(t, "/out.txt", fileErr.Path)
	})
}

func TestEncryptionError(t *testing.T) {
	t.Run("Wrong passphrase surfaces as verify", func(t *testing.T) {
		err := NewEncryptionError("verify", errors.New("passphrase does not match store"))

		assert.Contains(t, err.Error(), "encryption verify")

		encErr := &EncryptionError{}
		require.ErrorAs(t, err, &encErr)
		assert.Equal(t, "verify", encErr.Op)
	})
}

func TestConfigError(t *testing.T) {
	t.Run("Names the field at fault", func(t *testing.T) {
		err := NewConfigError("VEIL_PASSPHRASE", errors.New("must be at least 8 characters"))

		assert.Contains(t, err.Error(), "VEIL_PASSPHRASE")
		assert.Contains(t, err.Error(), "8 characters")
	})
}

func TestValidationError(t *testing.T) {
	t.Run("Names the document", func(t *testing.T) {
		err := NewValidationError("letter", errors.New("rejected by reviewer"))

		assert.Contains(t, err.Error(), "letter")

		valErr := &ValidationError{}
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "letter", valErr.Document)
	})
}

func TestErrCancelled(t *testing.T) {
	t.Run("Is detectable through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("batch stopped: %w", ErrCancelled)

		assert.ErrorIs(t, wrapped, ErrCancelled)
	})

	t.Run("Is not a file error", func(t *testing.T) {
		fileErr := &FileError{}
		assert.False(t, errors.As(ErrCancelled, &fileErr))
	})
}
