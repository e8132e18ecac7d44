package detect

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/mjuillard/veil/model"
)

// The token classification model truncates input past its maximum
// sequence length, so long texts are recognized window by window and the
// finds are shifted back to document offsets.
const (
	// DefaultWindowBytes keeps one window well under the model's token
	// limit for French and English prose.
	DefaultWindowBytes = 1500

	// windowOverlapBytes is re-read at the start of the next window so a
	// name straddling a cut is whole in at least one window.
	windowOverlapBytes = 200
)

// window is one slice of the document, start is its byte offset in the
// original text.
type window struct {
	start int
	text  string
}

// splitWindows cuts a text into overlapping windows of at most size
// bytes, preferring sentence boundaries, then whitespace, then a rune
// boundary. A text within the size limit comes back as a single window.
func splitWindows(text string, size int, overlap int) []window {
	if size <= 0 || len(text) <= size {
		return []window{{start: 0, text: text}}
	}

	var windows []window
	start := 0
	for start < len(text) {
		if start+size >= len(text) {
			windows = append(windows, window{start: start, text: text[start:]})
			break
		}

		end := cutPoint(text, start, start+size)
		windows = append(windows, window{start: start, text: text[start:end]})

		next := wordStart(text, end-overlap)
		if next <= start {
			// Overlap must never stall the scan
			next = end
		}
		start = next
	}
	return windows
}

// cutPoint picks where to end a window, scanning backwards from the size
// limit but never past the midpoint.
func cutPoint(text string, start int, limit int) int {
	floor := start + (limit-start)/2

	for i := limit - 1; i > floor; i-- {
		switch text[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if text[i+1] == ' ' || text[i+1] == '\n' {
				return i + 1
			}
		}
	}
	for i := limit - 1; i > floor; i-- {
		if text[i] == ' ' || text[i] == '\t' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if utf8.RuneStart(text[i]) {
			return i
		}
	}
	return limit
}

// wordStart backs pos up to the beginning of the word it lands in, so a
// window never opens mid-word or mid-rune.
func wordStart(text string, pos int) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(text) {
		return len(text)
	}
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:pos])
		if unicode.IsSpace(r) {
			break
		}
		pos -= size
	}
	return pos
}

// dedupeWindowed drops the duplicate and partial finds the overlap zones
// produce. Identical spans keep the higher confidence, spans contained in
// a longer find are window cut artifacts and are dropped.
func dedupeWindowed(detections []model.DetectedEntity) []model.DetectedEntity {
	if len(detections) < 2 {
		return detections
	}

	sort.SliceStable(detections, func(i, j int) bool {
		if detections[i].Start != detections[j].Start {
			return detections[i].Start < detections[j].Start
		}
		return detections[i].End > detections[j].End
	})

	kept := detections[:1]
	for _, detection := range detections[1:] {
		last := &kept[len(kept)-1]
		if detection.Start >= last.Start && detection.End <= last.End {
			if detection.Start == last.Start && detection.End == last.End && detection.Confidence > last.Confidence {
				last.Confidence = detection.Confidence
			}
			continue
		}
		kept = append(kept, detection)
	}
	return kept
}
