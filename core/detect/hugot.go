package detect

import (
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/mjuillard/veil/helper"
	"github.com/mjuillard/veil/model"
)

// DefaultModelName is the NER model used when no other model is configured.
// Uses the KnightsAnalytics optimized distilbert-NER model.
const DefaultModelName = "KnightsAnalytics/distilbert-NER"

// HugotExtractor runs a token classification model through hugot's pure
// Go backend. It is safe for sequential use only; batch workers each get
// their own extractor.
type HugotExtractor struct {
	session   *hugot.Session
	pipeline  *pipelines.TokenClassificationPipeline
	modelName string
}

// NewHugotExtractor prepares the default NER model, downloading it on
// first use, and builds the recognition pipeline.
func NewHugotExtractor() (*HugotExtractor, error) {
	return NewHugotExtractorWithModel(DefaultModelName, "model.onnx")
}

// NewHugotExtractorWithModel builds the recognition pipeline for a
// specific model. The model is downloaded if it is not cached yet.
func NewHugotExtractorWithModel(modelName string, onnxFilePath string) (*HugotExtractor, error) {
	modelPath, err := helper.PrepareModel(modelName, onnxFilePath)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}), // Ignore non-entity tokens
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return &HugotExtractor{
		session:   session,
		pipeline:  nerPipeline,
		modelName: modelName,
	}, nil
}

// ModelName returns the name of the loaded model.
func (e *HugotExtractor) ModelName() string {
	return e.modelName
}

// Extract runs NER over a text and returns the occurrences with byte
// offsets. Texts longer than one model window are recognized window by
// window in a single batched run. It satisfies ExtractFunc.
func (e *HugotExtractor) Extract(text string) ([]model.DetectedEntity, error) {
	windows := splitWindows(text, DefaultWindowBytes, windowOverlapBytes)

	texts := make([]string, len(windows))
	for i, w := range windows {
		texts[i] = w.text
	}

	result, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to run NER: %w", err)
	}

	var detections []model.DetectedEntity
	for i, w := range windows {
		if i >= len(result.Entities) {
			break
		}
		detections = append(detections, relocate(w, result.Entities[i])...)
	}
	if len(windows) > 1 {
		detections = dedupeWindowed(detections)
	}
	return detections, nil
}

// relocate maps one window's recognized words back to byte offsets in
// the original document.
func relocate(w window, entities []pipelines.Entity) []model.DetectedEntity {
	var detections []model.DetectedEntity
	cursor := 0
	for _, entity := range entities {
		entityType, err := model.ParseEntityType(normalizeLabel(entity.Entity))
		if err != nil {
			continue
		}

		word := strings.TrimSpace(entity.Word)
		if word == "" {
			continue
		}

		// The pipeline reports offsets in tokenizer coordinates, which do
		// not reliably line up with byte offsets in the original text.
		// The word itself is authoritative.
		start, end, ok := locate(w.text, word, cursor)
		if !ok {
			continue
		}
		cursor = end

		detections = append(detections, model.DetectedEntity{
			Text:       w.text[start:end],
			Type:       entityType,
			Start:      w.start + start,
			End:        w.start + end,
			Confidence: float64(entity.Score),
			Source:     model.DetectionSourceModel,
		})
	}
	return detections
}

// Close releases the model session. The extractor is unusable afterwards.
func (e *HugotExtractor) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.pipeline = nil
	return err
}

// locate finds the byte range of a recognized word, scanning forward
// from the previous match first so repeated words map to distinct spans.
func locate(text string, word string, cursor int) (int, int, bool) {
	if cursor <= len(text) {
		if idx := strings.Index(text[cursor:], word); idx >= 0 {
			start := cursor + idx
			return start, start + len(word), true
		}
	}
	if idx := strings.Index(text, word); idx >= 0 {
		return idx, idx + len(word), true
	}
	return 0, 0, false
}

// normalizeLabel removes the BIO tagging prefixes (B- for beginning,
// I- for inside) from NER labels.
func normalizeLabel(label string) string {
	if strings.HasPrefix(label, "B-") {
		return label[2:]
	}
	if strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}
