package detect

import (
	"regexp"

	"github.com/mjuillard/veil/core/names"
	"github.com/mjuillard/veil/model"
)

// PatternConfidence is the fixed confidence of a pattern detection. It
// sits above the default threshold so honorific matches always survive
// filtering.
const PatternConfidence = 0.8

// honorificPattern matches a French or English title followed by a
// capitalized name of up to three tokens, nobiliary particles allowed
// between them. Only the name is captured, the title stays in the text.
var honorificPattern = regexp.MustCompile(
	`\b(Monsieur|Madame|Mademoiselle|Docteur|Professeur|Maître|Maitre|Mme|Mlle|Mrs|Ms|Mr|M\.|Dr|Prof|Pr|Me)\.?[ \t]+` +
		`((?:(?:de|du|des|van|von|der|den)[ \t]+)*\p{Lu}[\p{L}'’-]*(?:[ \t]+(?:(?:de|du|des|le|la|van|von|der|den)[ \t]+)*\p{Lu}[\p{L}'’-]*){0,2})`)

// MatchPatterns finds honorific name references in a text. The spans
// cover the name only; the gender is derived from the title.
func MatchPatterns(text string) []model.DetectedEntity {
	matches := honorificPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	detections := make([]model.DetectedEntity, 0, len(matches))
	for _, match := range matches {
		titleStart, titleEnd := match[2], match[3]
		nameStart, nameEnd := match[4], match[5]
		if nameStart < 0 || nameEnd <= nameStart {
			continue
		}

		detections = append(detections, model.DetectedEntity{
			Text:       text[nameStart:nameEnd],
			Type:       model.EntityTypePerson,
			Start:      nameStart,
			End:        nameEnd,
			Confidence: PatternConfidence,
			Source:     model.DetectionSourcePattern,
			Gender:     names.HonorificGender(text[titleStart:titleEnd]),
		})
	}

	return detections
}
