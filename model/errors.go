package model

import (
	"errors"
	"fmt"
)

// ErrCancelled reports that a run was stopped on purpose, either through
// context cancellation or an interactive abort. Batch processing treats it
// differently from a real failure: outputs are rolled back and no audit
// entry claims success.
var ErrCancelled = errors.New("processing cancelled")

// ErrSkipped reports that a reviewer skipped a document during interactive
// validation. Nothing was written or audited for it.
var ErrSkipped = errors.New("document skipped")

// FileError reports a failure while reading, writing or decoding a
// document. Path is kept for diagnostics, never document content.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func NewFileError(op string, path string, err error) *FileError {
	return &FileError{Op: op, Path: path, Err: err}
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// EncryptionError reports a failure in key derivation, encryption or
// decryption. A wrong passphrase surfaces as Op "verify".
type EncryptionError struct {
	Op  string
	Err error
}

func NewEncryptionError(op string, err error) *EncryptionError {
	return &EncryptionError{Op: op, Err: err}
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption %s: %v", e.Op, e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid or missing configuration value.
// Field names the environment variable or flag at fault.
type ConfigError struct {
	Field string
	Err   error
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError reports that interactive validation failed or was
// rejected for a document.
type ValidationError struct {
	Document string
	Err      error
}

func NewValidationError(document string, err error) *ValidationError {
	return &ValidationError{Document: document, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation of %s: %v", e.Document, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
