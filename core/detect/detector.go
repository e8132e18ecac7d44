// Package detect finds personal data occurrences in text. A recognition
// model does the heavy lifting, honorific patterns catch the formal
// references models tend to miss and settle the gender where a title
// implies one.
package detect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mjuillard/veil/core/names"
	"github.com/mjuillard/veil/helper"
	"github.com/mjuillard/veil/model"
)

// ExtractFunc runs entity recognition over a text and returns the raw
// occurrences with byte offsets.
type ExtractFunc func(text string) ([]model.DetectedEntity, error)

// Detector combines model recognition with the honorific patterns,
// merges overlapping finds and filters by confidence and requested types.
type Detector struct {
	extract ExtractFunc
	config  model.DetectorConfig
}

// NewDetector creates a new detector around an extraction function.
// A nil config falls back to the defaults.
func NewDetector(extract ExtractFunc, config *model.DetectorConfig) (*Detector, error) {
	if extract == nil {
		return nil, helper.NewError("extract function validation", fmt.Errorf("extract function is nil"))
	}

	resolved := model.DefaultDetectorConfig()
	if config != nil {
		resolved = *config
	}

	return &Detector{extract: extract, config: resolved}, nil
}

// Detect finds entity occurrences in a text. The result is sorted by
// position and free of overlaps. Empty or undecodable input is rejected
// with a model.FileError; finding nothing in valid text is not an error.
func (d *Detector) Detect(ctx context.Context, text string) ([]model.DetectedEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, model.NewFileError("decode", "input", fmt.Errorf("text is empty"))
	}
	if !utf8.ValidString(text) {
		return nil, model.NewFileError("decode", "input", fmt.Errorf("content is not valid UTF-8 text"))
	}

	modelDetections, err := d.extract(text)
	if err != nil {
		return nil, helper.NewError("entity recognition", err)
	}

	var patternDetections []model.DetectedEntity
	if d.config.EnablePatterns {
		patternDetections = MatchPatterns(text)
	}

	var detections []model.DetectedEntity
	for _, detection := range mergeDetections(text, modelDetections, patternDetections) {
		if detection.Confidence < d.config.MinConfidence {
			continue
		}
		if !d.config.WantsType(detection.Type) {
			continue
		}
		detections = append(detections, detection)
	}

	sort.SliceStable(detections, func(i, j int) bool {
		if detections[i].Start != detections[j].Start {
			return detections[i].Start < detections[j].Start
		}
		return detections[i].End > detections[j].End
	})

	// Longest span wins on overlap.
	var kept []model.DetectedEntity
	lastEnd := 0
	for _, detection := range detections {
		if detection.Start < lastEnd {
			continue
		}
		kept = append(kept, detection)
		lastEnd = detection.End
	}

	return kept, nil
}

// mergeDetections enriches model detections with overlapping honorific
// matches and keeps the pattern detections the model missed.
func mergeDetections(text string, modelDetections []model.DetectedEntity, patternDetections []model.DetectedEntity) []model.DetectedEntity {
	matched := make([]bool, len(patternDetections))

	var out []model.DetectedEntity
	for _, detection := range modelDetections {
		detection = trimTitles(text, detection)
		if detection.Type == model.EntityTypePerson {
			for i, pattern := range patternDetections {
				if matched[i] || !detection.Overlaps(pattern) {
					continue
				}
				matched[i] = true
				detection.Source = model.DetectionSourceMerged
				if detection.Gender == "" || detection.Gender == model.GenderUnknown {
					detection.Gender = pattern.Gender
				}
				if pattern.Confidence > detection.Confidence {
					detection.Confidence = pattern.Confidence
				}
				if pattern.Start < detection.Start {
					detection.Start = pattern.Start
				}
				if pattern.End > detection.End {
					detection.End = pattern.End
				}
				detection.Text = text[detection.Start:detection.End]
			}
		}
		out = append(out, detection)
	}

	for i, pattern := range patternDetections {
		if !matched[i] {
			out = append(out, pattern)
		}
	}

	return out
}

// trimTitles narrows a span that swallowed a leading honorific, so the
// title survives the replacement. Its gender hint is kept on the
// detection.
func trimTitles(text string, detection model.DetectedEntity) model.DetectedEntity {
	if detection.Type != model.EntityTypePerson {
		return detection
	}

	span := text[detection.Start:detection.End]
	stripped, titles := names.StripTitles(span)
	if len(titles) == 0 || stripped == "" {
		return detection
	}
	idx := strings.Index(span, stripped)
	if idx < 0 {
		return detection
	}

	detection.Start += idx
	detection.Text = text[detection.Start:detection.End]
	if detection.Gender == "" || detection.Gender == model.GenderUnknown {
		for _, title := range titles {
			if gender := names.HonorificGender(title); gender != model.GenderUnknown {
				detection.Gender = gender
				break
			}
		}
	}

	return detection
}
