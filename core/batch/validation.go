package batch

import (
	"context"

	"github.com/mjuillard/veil/model"
)

// ValidationRequest is one document waiting for human review. The worker
// that published it blocks until Reply or Skip is called or the run is
// cancelled. The first answer wins, later calls are ignored.
type ValidationRequest struct {
	Document    *model.Document
	Assignments []model.Assignment

	reply chan validationReply
}

type validationReply struct {
	approved []model.DetectedEntity
	skip     bool
}

// Reply releases the waiting worker with the approved detections. An
// empty slice is a valid answer and produces an output without any
// replacements.
func (v *ValidationRequest) Reply(approved []model.DetectedEntity) {
	select {
	case v.reply <- validationReply{approved: approved}:
	default:
	}
}

// Skip releases the waiting worker without processing the document.
func (v *ValidationRequest) Skip() {
	select {
	case v.reply <- validationReply{skip: true}:
	default:
	}
}

// Detections returns every detection the assignments propose, the answer
// for an approve-all reply.
func (v *ValidationRequest) Detections() []model.DetectedEntity {
	detections := make([]model.DetectedEntity, 0, len(v.Assignments))
	for _, assignment := range v.Assignments {
		detections = append(detections, assignment.Detection)
	}
	return detections
}

// Validations returns the channel on which workers publish documents
// awaiting review. The caller must consume it while a run with validation
// enabled is active; the channel is closed when the run ends.
func (r *Runner) Validations() <-chan *ValidationRequest {
	return r.validations
}

// awaitValidation publishes a request and blocks the worker until the
// controller answers or the run is cancelled. It satisfies ValidateFunc.
func (r *Runner) awaitValidation(ctx context.Context, document *model.Document, assignments []model.Assignment) ([]model.DetectedEntity, error) {
	request := &ValidationRequest{
		Document:    document,
		Assignments: assignments,
		reply:       make(chan validationReply, 1),
	}

	select {
	case r.validations <- request:
	case <-r.done:
		return nil, model.ErrCancelled
	case <-ctx.Done():
		return nil, model.ErrCancelled
	}

	select {
	case reply := <-request.reply:
		if reply.skip {
			return nil, model.ErrSkipped
		}
		return reply.approved, nil
	case <-r.done:
		return nil, model.ErrCancelled
	case <-ctx.Done():
		return nil, model.ErrCancelled
	}
}
