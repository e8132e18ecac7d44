package model

type DetectionSource string

const (
	DetectionSourceModel   DetectionSource = "model"
	DetectionSourcePattern DetectionSource = "pattern"
	DetectionSourceMerged  DetectionSource = "merged"
)

// DetectedEntity represents one entity occurrence found in a text.
// Start and End are byte offsets into the original document, End exclusive.
type DetectedEntity struct {
	Text       string          `json:"text"`
	Type       EntityType      `json:"entity_type"`
	Start      int             `json:"start"`
	End        int             `json:"end"`
	Confidence float64         `json:"confidence"`
	Source     DetectionSource `json:"source"`
	// Gender is only set when a pattern match carried an honorific
	// (Mme, M., Dr, ...) that implies one.
	Gender Gender `json:"gender,omitempty"`
}

// Length returns the byte length of the matched text.
func (d DetectedEntity) Length() int {
	return d.End - d.Start
}

// Overlaps reports whether two occurrences cover intersecting byte ranges.
func (d DetectedEntity) Overlaps(other DetectedEntity) bool {
	return d.Start < other.End && other.Start < d.End
}
