package model

// DetectorConfig represents configuration for a detection pass
type DetectorConfig struct {
	// Model parameters
	MinConfidence float64 `json:"min_confidence"`

	// Type filtering, nil means all types
	Types []EntityType `json:"types,omitempty"`

	// Pattern layer parameters
	EnablePatterns bool `json:"enable_patterns"`
}

// DefaultDetectorConfig returns a sensible default configuration
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinConfidence:  0.6,
		Types:          nil, // All types
		EnablePatterns: true,
	}
}

// WantsType reports whether a detection of the given type passes the filter.
func (c DetectorConfig) WantsType(t EntityType) bool {
	if len(c.Types) == 0 {
		return true
	}
	for _, want := range c.Types {
		if want == t {
			return true
		}
	}
	return false
}

// BatchConfig represents configuration for a batch run
type BatchConfig struct {
	Workers        int    `json:"workers"`
	SkipValidation bool   `json:"skip_validation"`
	StopOnError    bool   `json:"stop_on_error"`
	OutputSuffix   string `json:"output_suffix"`
}

// DefaultBatchConfig returns a sensible default configuration
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Workers:        1,
		SkipValidation: false,
		StopOnError:    false,
		OutputSuffix:   "_pseudonymized",
	}
}
