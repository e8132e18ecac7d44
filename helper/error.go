package helper

import "fmt"

// NewError wraps an error with the context it happened in. The inner
// message is preserved so callers can still match on it.
func NewError(context string, err error) error {
	return fmt.Errorf("error in %s: %w", context, err)
}
