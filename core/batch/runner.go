// Package batch runs pseudonymization over many documents with a fixed
// number of workers. Nothing NLP or store scoped is shared between
// workers; each one gets its own processor from the factory and the
// store's transactional batch save is the serialization point between
// them.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mjuillard/veil/core/redact"
	"github.com/mjuillard/veil/helper"
	"github.com/mjuillard/veil/model"
)

// State is the runner lifecycle state.
type State string

const (
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCancelled State = "cancelled"
)

// Runner executes one batch over a pool of workers with cooperative
// pause and cancellation. A Runner is good for a single Run call.
type Runner struct {
	factory Factory
	config  model.BatchConfig
	logger  *slog.Logger

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	done  chan struct{}

	validations chan *ValidationRequest

	// Output files written during the run, tracked until their document
	// succeeds. Still tracked files are removed when the run ends, so a
	// cancelled batch never leaves partial, unaudited output. The value
	// records whether the file already existed before the run; those are
	// never removed.
	outputs map[string]bool
}

// outcome carries one finished document from a worker to the collector.
type outcome struct {
	document *model.Document
	result   *model.ProcessingResult
	err      error
}

// NewRunner creates a batch runner. The factory builds one processor per
// worker when Run starts.
func NewRunner(factory Factory, config model.BatchConfig, logger *slog.Logger) (*Runner, error) {
	if factory == nil {
		return nil, helper.NewError("factory validation", fmt.Errorf("processor factory is nil"))
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.OutputSuffix == "" {
		config.OutputSuffix = model.DefaultBatchConfig().OutputSuffix
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	runner := &Runner{
		factory:     factory,
		config:      config,
		logger:      logger,
		state:       StateRunning,
		done:        make(chan struct{}),
		validations: make(chan *ValidationRequest),
		outputs:     map[string]bool{},
	}
	runner.cond = sync.NewCond(&runner.mu)
	return runner, nil
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Pause holds workers before their next document. Workers already inside
// a document finish it first.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRunning {
		r.state = StatePaused
	}
}

// Resume releases paused workers.
func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StatePaused {
		r.state = StateRunning
		r.cond.Broadcast()
	}
}

// Cancel stops the run. Paused workers and workers waiting for
// validation wake up and return without finishing their documents.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateCancelled {
		return
	}
	r.state = StateCancelled
	close(r.done)
	r.cond.Broadcast()
}

// waitReady blocks while the runner is paused and reports whether the
// worker may start another document.
func (r *Runner) waitReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.state == StatePaused {
		r.cond.Wait()
	}
	return r.state == StateRunning
}

// Run processes the documents and returns the aggregated summary. Per
// document failures are collected and do not stop the run, cancellation
// does; a cancelled run returns its partial summary together with
// model.ErrCancelled.
func (r *Runner) Run(ctx context.Context, documents []*model.Document) (*model.BatchSummary, error) {
	started := time.Now()

	processors := make([]Processor, r.config.Workers)
	for i := range processors {
		processor, err := r.factory()
		if err != nil {
			r.closeProcessors(processors[:i])
			close(r.validations)
			return nil, helper.NewError("create batch processor", err)
		}
		processors[i] = processor
	}
	defer r.closeProcessors(processors)

	r.logger.Info("Starting batch run",
		slog.Int("documents", len(documents)),
		slog.Int("workers", r.config.Workers))

	var validate ValidateFunc
	if !r.config.SkipValidation {
		validate = r.awaitValidation
	}

	// Translate context cancellation into Cancel so condition and
	// validation waits wake up too.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			r.Cancel()
		case <-watchDone:
		}
	}()

	jobs := make(chan *model.Document)
	go func() {
		defer close(jobs)
		for _, document := range documents {
			select {
			case jobs <- document:
			case <-r.done:
				return
			}
		}
	}()

	outcomes := make(chan outcome)
	var wg sync.WaitGroup
	for _, processor := range processors {
		wg.Add(1)
		go func(processor Processor) {
			defer wg.Done()
			r.work(ctx, processor, jobs, outcomes, validate)
		}(processor)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	summary := &model.BatchSummary{}
	for out := range outcomes {
		r.collect(summary, out)
	}

	close(r.validations)
	r.removePendingOutputs()

	summary.Duration = time.Since(started)
	summary.Cancelled = r.State() == StateCancelled

	r.logger.Info("Batch run finished",
		slog.Int("processed", summary.Processed),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
		slog.Bool("cancelled", summary.Cancelled))

	if summary.Cancelled {
		return summary, model.ErrCancelled
	}
	return summary, nil
}

// work is one worker loop. Documents the worker never dequeued or
// abandoned after cancellation stay out of the summary.
func (r *Runner) work(ctx context.Context, processor Processor, jobs <-chan *model.Document, outcomes chan<- outcome, validate ValidateFunc) {
	for document := range jobs {
		if !r.waitReady() {
			return
		}

		if document.OutputPath == "" {
			document.OutputPath = document.DefaultOutputPath(r.config.OutputSuffix)
		}
		r.trackOutput(document.OutputPath)

		result, err := processor.ProcessDocument(ctx, document, validate)
		if err == nil {
			r.settleOutput(document.OutputPath)
		} else if r.config.StopOnError && !errors.Is(err, model.ErrSkipped) && !errors.Is(err, model.ErrCancelled) {
			r.Cancel()
		}

		outcomes <- outcome{document: document, result: result, err: err}
	}
}

// collect folds one outcome into the summary.
func (r *Runner) collect(summary *model.BatchSummary, out outcome) {
	switch {
	case errors.Is(out.err, model.ErrSkipped):
		summary.Skipped++
		r.logger.Info("Skipped document", slog.String("document", out.document.Name))
	case errors.Is(out.err, model.ErrCancelled) || errors.Is(out.err, context.Canceled):
		// Not a failure, the run level Cancelled flag covers it.
	case out.err != nil:
		summary.Failed++
		summary.Failures = append(summary.Failures, model.BatchFailure{
			Document: out.document.Name,
			Reason:   redact.Error(out.err),
		})
		r.logger.Warn("Failed to process document",
			slog.String("document", out.document.Name),
			slog.String("error", redact.Error(out.err)))
	default:
		summary.Processed++
		if out.result != nil {
			summary.EntityCount += out.result.EntityCount
			summary.NewEntities += out.result.NewEntities
		}
		r.logger.Info("Processed document",
			slog.String("document", out.document.Name),
			slog.Int("entities", entityCount(out.result)))
	}
}

func entityCount(result *model.ProcessingResult) int {
	if result == nil {
		return 0
	}
	return result.EntityCount
}

// trackOutput remembers an output path until its document succeeds.
func (r *Runner) trackOutput(path string) {
	_, err := os.Stat(path)
	existedBefore := err == nil

	r.mu.Lock()
	r.outputs[path] = existedBefore
	r.mu.Unlock()
}

// settleOutput releases a path whose document finished successfully.
func (r *Runner) settleOutput(path string) {
	r.mu.Lock()
	delete(r.outputs, path)
	r.mu.Unlock()
}

// removePendingOutputs deletes output files whose document never
// succeeded. Files that already existed before the run are kept.
func (r *Runner) removePendingOutputs() {
	r.mu.Lock()
	pending := r.outputs
	r.outputs = map[string]bool{}
	r.mu.Unlock()

	for path, existedBefore := range pending {
		if existedBefore {
			continue
		}
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				r.logger.Warn("Failed to remove unaudited output",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
			continue
		}
		r.logger.Warn("Removed unaudited output", slog.String("path", path))
	}
}

func (r *Runner) closeProcessors(processors []Processor) {
	for _, processor := range processors {
		closer, ok := processor.(io.Closer)
		if !ok || closer == nil {
			continue
		}
		if err := closer.Close(); err != nil {
			r.logger.Warn("Failed to close batch processor", slog.String("error", err.Error()))
		}
	}
}
