package model

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxDocumentBytes caps how much text a single document may carry.
// Larger inputs are rejected before any detection work starts.
const MaxDocumentBytes = 10 << 20

// Document represents one input text on its way through pseudonymization
type Document struct {
	RID        uuid.UUID `json:"rid"`
	Name       string    `json:"name"`
	Source     string    `json:"source,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	Content    string    `json:"content,omitempty"`
}

// NewDocument wraps an in-memory text. The name is only used for logging
// and audit summaries.
func NewDocument(name string, content string) (*Document, error) {
	if !utf8.ValidString(content) {
		return nil, NewFileError("decode", name, fmt.Errorf("content is not valid UTF-8 text"))
	}
	if len(content) > MaxDocumentBytes {
		return nil, NewFileError("read", name, fmt.Errorf("document exceeds %d bytes", MaxDocumentBytes))
	}
	return &Document{
		RID:     uuid.New(),
		Name:    name,
		Content: content,
	}, nil
}

// NewDocumentFromFile reads a file and creates a Document with the file
// content. The name defaults to the filename without extension, the
// source to the file path.
func NewDocumentFromFile(filePath string) (*Document, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, NewFileError("stat", filePath, err)
	}
	if info.Size() > MaxDocumentBytes {
		return nil, NewFileError("read", filePath, fmt.Errorf("document exceeds %d bytes", MaxDocumentBytes))
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, NewFileError("read", filePath, err)
	}
	if !utf8.Valid(content) {
		return nil, NewFileError("decode", filePath, fmt.Errorf("content is not valid UTF-8 text"))
	}

	// Filename without extension for the default name
	filename := filepath.Base(filePath)
	name := filename[:len(filename)-len(filepath.Ext(filename))]
	if name == "" {
		name = filename
	}

	return &Document{
		RID:     uuid.New(),
		Name:    name,
		Source:  filePath,
		Content: string(content),
	}, nil
}

// DefaultOutputPath derives the output file path next to the source,
// e.g. letter.txt becomes letter_pseudonymized.txt.
func (d *Document) DefaultOutputPath(suffix string) string {
	if d.Source == "" {
		return d.Name + suffix + ".txt"
	}
	ext := filepath.Ext(d.Source)
	return d.Source[:len(d.Source)-len(ext)] + suffix + ext
}
