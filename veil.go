package veil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mjuillard/veil/core/batch"
	"github.com/mjuillard/veil/core/detect"
	"github.com/mjuillard/veil/core/names"
	"github.com/mjuillard/veil/core/pseudonym"
	"github.com/mjuillard/veil/core/redact"
	"github.com/mjuillard/veil/core/replace"
	"github.com/mjuillard/veil/database"
	"github.com/mjuillard/veil/helper"
	"github.com/mjuillard/veil/model"
	loadSql "github.com/mjuillard/veil/sql"
)

// Veil provides a unified interface to the detection pipeline, the
// encrypted mapping store and the audit trail
type Veil struct {
	DB         *helper.Database
	Entities   *database.EntitiesDBHandler
	Operations *database.OperationsDBHandler
	Detector   *detect.Detector // Optional detection pipeline
	Engine     *pseudonym.Engine
	// Notifier reports human readable progress, e.g. to a terminal.
	// Messages carry counts and paths, never document text.
	Notifier func(string)
	// Logging
	log *slog.Logger

	config         *helper.Configuration
	detectorConfig *model.DetectorConfig
	extractor      *detect.HugotExtractor
}

// NewVeil opens or initializes the store and wires all handlers. A wrong
// passphrase on an existing store fails here, before any handler runs.
func NewVeil(config *helper.Configuration) (*Veil, error) {
	if config == nil {
		return nil, helper.NewError("configuration validation", fmt.Errorf("configuration is nil"))
	}

	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: config.LogLevel,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize store
	db := helper.NewDatabase("veil", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database", err)
	}

	cipher, err := database.NewStoreCipher(db, config.Passphrase)
	if err != nil {
		return nil, err
	}

	// force=false to not reload if tables already exist
	entities, err := database.NewEntitiesDBHandler(db, cipher, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	operations, err := database.NewOperationsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create operations handler", err)
	}

	library, err := pseudonym.NewLibrary()
	if err != nil {
		return nil, helper.NewError("load theme library", err)
	}
	if _, err := library.Theme(config.Theme); err != nil {
		return nil, err
	}

	engine := pseudonym.NewEngine(entities, library)

	return &Veil{
		DB:         db,
		Entities:   entities,
		Operations: operations,
		Engine:     engine,
		log:        logger,
		config:     config,
	}, nil
}

// Close releases the NER session and the store connection
func (v *Veil) Close() error {
	var closeErr error
	if v.extractor != nil {
		closeErr = v.extractor.Close()
		v.extractor = nil
	}
	if v.DB != nil && v.DB.Instance != nil {
		if err := v.DB.Instance.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}

// SetDetector sets a custom detection pipeline, e.g. one built around a
// fake extract function in tests. The caller keeps ownership of whatever
// backs the pipeline.
func (v *Veil) SetDetector(detector *detect.Detector) {
	v.Detector = detector
}

// UseDefaultDetector sets up the default detection pipeline.
// This uses the distilbert NER model (downloaded on first use) plus the
// honorific pattern layer with the default confidence threshold.
func (v *Veil) UseDefaultDetector() error {
	return v.UseDetector(nil)
}

// UseDetector sets up the NER detection pipeline with a custom
// configuration. A nil config uses the defaults.
func (v *Veil) UseDetector(config *model.DetectorConfig) error {
	extractor, err := detect.NewHugotExtractor()
	if err != nil {
		return helper.NewError("create entity extractor", err)
	}

	detector, err := detect.NewDetector(extractor.Extract, config)
	if err != nil {
		if closeErr := extractor.Close(); closeErr != nil {
			return helper.NewError("create detector", fmt.Errorf("%w (cleanup error: %v)", err, closeErr))
		}
		return helper.NewError("create detector", err)
	}

	if v.extractor != nil {
		if err := v.extractor.Close(); err != nil {
			v.log.Warn("Closing previous extractor", slog.String("error", err.Error()))
		}
	}

	v.extractor = extractor
	v.Detector = detector
	v.detectorConfig = config

	v.log.Info("Detection pipeline ready", slog.String("model", extractor.ModelName()))
	return nil
}

// Detect runs entity detection over a text without assigning anything.
// Optional types narrow the result beyond the detector configuration.
func (v *Veil) Detect(ctx context.Context, text string, types ...model.EntityType) ([]model.DetectedEntity, error) {
	if v.Detector == nil {
		return nil, helper.NewError("detect entities", fmt.Errorf("detector not set, use UseDefaultDetector() first"))
	}

	detections, err := v.Detector.Detect(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return detections, nil
	}

	filter := model.DetectorConfig{Types: types}
	filtered := make([]model.DetectedEntity, 0, len(detections))
	for _, detection := range detections {
		if filter.WantsType(detection.Type) {
			filtered = append(filtered, detection)
		}
	}
	return filtered, nil
}

// Preview resolves pseudonyms for detections without touching the store.
// The returned assignments show what Finalize would persist; candidates
// for brand-new names may change once another run commits its own.
func (v *Veil) Preview(detections []model.DetectedEntity) ([]model.Assignment, error) {
	session, err := v.Engine.NewSession(v.config.Theme)
	if err != nil {
		return nil, err
	}
	return assignAll(session, detections)
}

// Pseudonymize runs the full pipeline over an in-memory text without
// writing a file. New mappings are persisted and the run is audited.
func (v *Veil) Pseudonymize(ctx context.Context, text string) (*model.ProcessingResult, error) {
	document, err := model.NewDocument("text", text)
	if err != nil {
		return nil, err
	}
	return v.ProcessDocument(ctx, document, nil)
}

// Process pseudonymizes one file. An empty output path defaults to the
// source name with the batch output suffix. A non-nil validate callback
// reviews the proposed assignments before anything is persisted; a
// model.ErrCancelled from it propagates and a model.ErrSkipped leaves the
// document untouched.
func (v *Veil) Process(ctx context.Context, inputPath string, outputPath string, validate batch.ValidateFunc) (*model.ProcessingResult, error) {
	document, err := model.NewDocumentFromFile(inputPath)
	if err != nil {
		return nil, err
	}
	if outputPath == "" {
		outputPath = document.DefaultOutputPath(model.DefaultBatchConfig().OutputSuffix)
	}
	document.OutputPath = outputPath

	return v.ProcessDocument(ctx, document, validate)
}

// ProcessDocument runs the pipeline for one document:
// 1. Detecting entities in the document content
// 2. Validating the proposed assignments when a callback is given
// 3. Persisting new mappings, replacing, writing and auditing
// It implements batch.Processor, so a *Veil serves directly as a worker.
// On a pipeline failure the returned result carries the sanitized error
// summary alongside the error and the failure is audited; skip and cancel
// signals propagate unaudited.
func (v *Veil) ProcessDocument(ctx context.Context, document *model.Document, validate batch.ValidateFunc) (*model.ProcessingResult, error) {
	started := time.Now()
	result, err := v.processDocument(ctx, v.Detector, document, validate, started)
	if err != nil {
		return v.failDocument(document, started, err)
	}
	return result, nil
}

// Finalize assigns pseudonyms to approved detections, persists the new
// mappings and writes the pseudonymized text. Detections usually come
// from Detect, narrowed by a review in between; an empty output path
// keeps the result in memory.
func (v *Veil) Finalize(ctx context.Context, text string, approved []model.DetectedEntity, outputPath string) (*model.ProcessingResult, error) {
	document, err := model.NewDocument("text", text)
	if err != nil {
		return nil, err
	}
	document.OutputPath = outputPath

	started := time.Now()
	result, err := v.finalize(ctx, document, approved, len(approved), started)
	if err != nil {
		return v.failDocument(document, started, err)
	}
	return result, nil
}

func (v *Veil) processDocument(ctx context.Context, detector *detect.Detector, document *model.Document, validate batch.ValidateFunc, started time.Time) (*model.ProcessingResult, error) {
	if document == nil {
		return nil, helper.NewError("document validation", fmt.Errorf("document is nil"))
	}
	if detector == nil {
		return nil, helper.NewError("detect entities", fmt.Errorf("detector not set, use UseDefaultDetector() first"))
	}

	detections, err := detector.Detect(ctx, document.Content)
	if err != nil {
		return nil, err
	}
	v.notify(fmt.Sprintf("%s: found %d entities", document.Name, len(detections)))

	approved := detections
	if validate != nil {
		proposals, err := v.Preview(detections)
		if err != nil {
			return nil, err
		}
		approved, err = validate(ctx, document, proposals)
		if err != nil {
			return nil, err
		}
	}

	return v.finalize(ctx, document, approved, len(detections), started)
}

// finalize is the committing half of the pipeline. The mappings land in
// the store before the output is written, and the output is removed again
// if its audit row cannot be written.
func (v *Veil) finalize(ctx context.Context, document *model.Document, approved []model.DetectedEntity, proposed int, started time.Time) (*model.ProcessingResult, error) {
	if ctx.Err() != nil {
		return nil, model.ErrCancelled
	}

	assignments, newEntities, err := v.persistAssignments(approved)
	if err != nil {
		return nil, err
	}

	spans := make([]replace.Span, 0, len(assignments))
	for _, assignment := range assignments {
		spans = append(spans, replace.Span{
			Start:       assignment.Detection.Start,
			End:         assignment.Detection.End,
			Replacement: replacementText(assignment),
		})
	}

	output, err := replace.Splice(document.Content, spans)
	if err != nil {
		return nil, helper.NewError("apply replacements", err)
	}

	if document.OutputPath != "" {
		if err := os.WriteFile(document.OutputPath, []byte(output), 0600); err != nil {
			return nil, model.NewFileError("write", document.OutputPath, err)
		}
	}

	operation := &model.Operation{
		ID:          uuid.New(),
		Type:        model.OperationTypeProcess,
		Theme:       v.config.Theme,
		ModelName:   v.modelName(),
		Files:       1,
		EntityCount: len(assignments),
		NewEntities: len(newEntities),
		Duration:    time.Since(started),
		Success:     true,
	}
	if err := v.Operations.InsertOperation(operation); err != nil {
		// An output without its audit row must not survive.
		if document.OutputPath != "" {
			if removeErr := os.Remove(document.OutputPath); removeErr != nil {
				v.log.Warn("Removing unaudited output failed",
					slog.String("path", document.OutputPath),
					slog.String("error", removeErr.Error()))
			}
		}
		return nil, helper.NewError("record operation", err)
	}

	skipped := proposed - len(approved)
	if skipped < 0 {
		skipped = 0
	}

	result := &model.ProcessingResult{
		Document:       document,
		Text:           output,
		Assignments:    assignments,
		EntityCount:    len(assignments),
		NewEntities:    len(newEntities),
		ReusedEntities: reusedCount(assignments, len(newEntities)),
		Skipped:        skipped,
		Duration:       time.Since(started),
		Success:        true,
	}

	v.log.Info("Pseudonymized document",
		slog.String("document", document.Name),
		slog.Int("entities", result.EntityCount),
		slog.Int("new", result.NewEntities))
	if document.OutputPath != "" {
		v.notify(fmt.Sprintf("%s: wrote %s", document.Name, document.OutputPath))
	}

	return result, nil
}

// persistAssignments assigns pseudonyms in a fresh session and stores the
// new mappings in one transaction. When a parallel run persists one of the
// names first, the unique index rejects the whole batch; one retry against
// a fresh session then adopts the stored mappings.
func (v *Veil) persistAssignments(approved []model.DetectedEntity) ([]model.Assignment, []*model.Entity, error) {
	for attempt := 0; ; attempt++ {
		session, err := v.Engine.NewSession(v.config.Theme)
		if err != nil {
			return nil, nil, err
		}

		assignments, err := assignAll(session, approved)
		if err != nil {
			return nil, nil, err
		}

		newEntities := session.NewEntities()
		err = v.Entities.InsertEntities(newEntities)
		if err == nil {
			return assignments, newEntities, nil
		}
		if attempt > 0 {
			return nil, nil, err
		}
		v.log.Debug("Retrying assignment after insert conflict", slog.String("error", err.Error()))
	}
}

// failDocument converts a pipeline failure into its audited form: a failed
// Operation row plus a result carrying the sanitized summary. Skip and
// cancel signals are not failures and pass through unaudited.
func (v *Veil) failDocument(document *model.Document, started time.Time, err error) (*model.ProcessingResult, error) {
	if errors.Is(err, model.ErrCancelled) || errors.Is(err, model.ErrSkipped) || errors.Is(err, context.Canceled) {
		return nil, err
	}

	summary := redact.Error(err)
	duration := time.Since(started)
	v.recordFailure(document, summary, duration)

	return &model.ProcessingResult{
		Document: document,
		Duration: duration,
		Error:    summary,
	}, err
}

func (v *Veil) recordFailure(document *model.Document, summary string, duration time.Duration) {
	operation := &model.Operation{
		ID:           uuid.New(),
		Type:         model.OperationTypeProcess,
		Theme:        v.config.Theme,
		ModelName:    v.modelName(),
		Files:        1,
		Duration:     duration,
		Success:      false,
		ErrorSummary: summary,
	}
	if err := v.Operations.InsertOperation(operation); err != nil {
		v.log.Warn("Audit write failed", slog.String("error", err.Error()))
	}

	name := "document"
	if document != nil {
		name = document.Name
	}
	v.log.Warn("Processing failed", slog.String("document", name), slog.String("error", summary))
}

// Batch creates a runner over this store. With more than one worker each
// worker gets its own detection pipeline, nothing NLP scoped is shared;
// mappings still flow through the shared store, so documents in one run
// reuse each other's pseudonyms.
func (v *Veil) Batch(config model.BatchConfig) (*batch.Runner, error) {
	if v.Detector == nil {
		return nil, helper.NewError("create batch runner", fmt.Errorf("detector not set, use UseDefaultDetector() first"))
	}

	factory := func() (batch.Processor, error) {
		// A custom detector cannot be cloned, single worker runs reuse
		// the shared pipeline. The wrapper keeps the runner's processor
		// cleanup away from the veil and its store.
		if config.Workers <= 1 || v.extractor == nil {
			return &workerProcessor{veil: v, detector: v.Detector}, nil
		}

		extractor, err := detect.NewHugotExtractor()
		if err != nil {
			return nil, err
		}
		detector, err := detect.NewDetector(extractor.Extract, v.detectorConfig)
		if err != nil {
			if closeErr := extractor.Close(); closeErr != nil {
				return nil, fmt.Errorf("%w (cleanup error: %v)", err, closeErr)
			}
			return nil, err
		}
		return &workerProcessor{veil: v, detector: detector, extractor: extractor}, nil
	}

	return batch.NewRunner(factory, config, v.log)
}

// RunBatch is the non-interactive convenience around Batch: it processes
// the documents with validation skipped and records the batch audit entry.
// For interactive validation build the runner with Batch and consume its
// Validations channel.
func (v *Veil) RunBatch(ctx context.Context, documents []*model.Document, config model.BatchConfig) (*model.BatchSummary, error) {
	config.SkipValidation = true
	runner, err := v.Batch(config)
	if err != nil {
		return nil, err
	}

	summary, runErr := runner.Run(ctx, documents)
	if summary != nil {
		if err := v.RecordBatch(summary); err != nil {
			v.log.Warn("Audit write failed", slog.String("error", err.Error()))
		}
	}
	return summary, runErr
}

// RecordBatch appends the audit entry for a finished batch run on top of
// the per document entries.
func (v *Veil) RecordBatch(summary *model.BatchSummary) error {
	if summary == nil {
		return helper.NewError("record batch", fmt.Errorf("summary is nil"))
	}

	operation := &model.Operation{
		ID:          uuid.New(),
		Type:        model.OperationTypeBatch,
		Theme:       v.config.Theme,
		ModelName:   v.modelName(),
		Files:       summary.Processed,
		EntityCount: summary.EntityCount,
		NewEntities: summary.NewEntities,
		Duration:    summary.Duration,
		Success:     !summary.Cancelled && summary.Failed == 0,
	}
	switch {
	case summary.Cancelled:
		operation.ErrorSummary = "run cancelled"
	case summary.Failed > 0:
		operation.ErrorSummary = fmt.Sprintf("%d documents failed", summary.Failed)
	}

	if err := v.Operations.InsertOperation(operation); err != nil {
		return helper.NewError("record batch", err)
	}
	return nil
}

// EraseEntity removes one stored mapping and records the erasure. Texts
// already written keep their pseudonym, the next run assigns a fresh one.
// The reason is sanitized and lands in the entry's summary column.
func (v *Veil) EraseEntity(id uuid.UUID, reason string) error {
	entity, err := v.Entities.SelectEntity(id)
	if err != nil {
		return err
	}

	if err := v.Entities.DeleteEntity(id); err != nil {
		return err
	}

	operation := &model.Operation{
		ID:           uuid.New(),
		Type:         model.OperationTypeDelete,
		Theme:        entity.Theme,
		EntityCount:  1,
		Success:      true,
		ErrorSummary: redact.Message(reason),
	}
	if err := v.Operations.InsertOperation(operation); err != nil {
		return helper.NewError("record erasure", err)
	}

	v.log.Info("Erased mapping", slog.String("id", id.String()), slog.String("type", string(entity.Type)))
	return nil
}

// RecentOperations returns the newest audit entries, newest first.
func (v *Veil) RecentOperations(limit int) ([]*model.Operation, error) {
	return v.Operations.SelectRecentOperations(limit)
}

// Usage reports pool consumption for the active theme.
func (v *Veil) Usage() ([]pseudonym.Usage, error) {
	session, err := v.Engine.NewSession(v.config.Theme)
	if err != nil {
		return nil, err
	}
	return session.Usage(), nil
}

// Theme returns the active theme name.
func (v *Veil) Theme() string {
	return v.config.Theme
}

// Themes returns the available theme names.
func (v *Veil) Themes() []string {
	return v.Engine.Library().Names()
}

// workerProcessor is one batch worker's processor over the shared store
// and audit trail. Multi worker runs hand it a detection pipeline of its
// own, single worker runs the shared one with a nil extractor.
type workerProcessor struct {
	veil      *Veil
	detector  *detect.Detector
	extractor *detect.HugotExtractor
}

func (p *workerProcessor) ProcessDocument(ctx context.Context, document *model.Document, validate batch.ValidateFunc) (*model.ProcessingResult, error) {
	started := time.Now()
	result, err := p.veil.processDocument(ctx, p.detector, document, validate, started)
	if err != nil {
		return p.veil.failDocument(document, started, err)
	}
	return result, nil
}

func (p *workerProcessor) Close() error {
	if p.extractor == nil {
		return nil
	}
	return p.extractor.Close()
}

func (v *Veil) modelName() string {
	if v.extractor == nil {
		return ""
	}
	return v.extractor.ModelName()
}

func (v *Veil) notify(message string) {
	if v.Notifier != nil {
		v.Notifier(message)
	}
}

// assignAll resolves detections in document order so candidate picks stay
// deterministic for a given store state and text.
func assignAll(session *pseudonym.Session, detections []model.DetectedEntity) ([]model.Assignment, error) {
	ordered := make([]model.DetectedEntity, len(detections))
	copy(ordered, detections)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	assignments := make([]model.Assignment, 0, len(ordered))
	for _, detection := range ordered {
		assignment, err := session.Assign(detection)
		if err != nil {
			return nil, helper.NewError("assign pseudonym", err)
		}
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}

// replacementText keeps honorifics that are part of the replaced span.
// Detection spans normally exclude them, hand edited spans may not.
func replacementText(assignment model.Assignment) string {
	_, titles := names.StripTitles(assignment.Detection.Text)
	if len(titles) == 0 {
		return assignment.Pseudonym
	}
	return strings.Join(titles, " ") + " " + assignment.Pseudonym
}

// reusedCount counts distinct mappings that existed before this run.
// Repeat occurrences of a name created in the same run report as reused,
// so the count comes from distinct entities minus the new ones.
func reusedCount(assignments []model.Assignment, newCount int) int {
	unique := map[uuid.UUID]bool{}
	for _, assignment := range assignments {
		if assignment.Entity != nil {
			unique[assignment.Entity.ID] = true
		}
	}

	count := len(unique) - newCount
	if count < 0 {
		return 0
	}
	return count
}
