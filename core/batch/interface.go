package batch

import (
	"context"

	"github.com/mjuillard/veil/model"
)

// ValidateFunc reviews the proposed assignments for one document and
// returns the detections that may be replaced. Returning model.ErrSkipped
// leaves the document untouched, model.ErrCancelled stops the run.
type ValidateFunc func(ctx context.Context, document *model.Document, assignments []model.Assignment) ([]model.DetectedEntity, error)

// Processor pseudonymizes a single document. A nil validate means every
// detection is accepted without review.
type Processor interface {
	ProcessDocument(ctx context.Context, document *model.Document, validate ValidateFunc) (*model.ProcessingResult, error)
}

// Factory builds the processor for one worker. Detector and store session
// are not shared between workers, so each call must return an instance
// the worker owns alone. Processors that implement io.Closer are closed
// when the run ends.
type Factory func() (Processor, error)
