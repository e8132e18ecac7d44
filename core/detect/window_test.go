package detect

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/mjuillard/veil/model"
	"github.com/stretchr/testify/assert"
)

func TestSplitWindows(t *testing.T) {
	t.Run("Short text stays one window", func(t *testing.T) {
		windows := splitWindows("Mme Dubois attend une réponse.", 1500, 200)
		assert.Len(t, windows, 1)
		assert.Equal(t, 0, windows[0].start)
		assert.Equal(t, "Mme Dubois attend une réponse.", windows[0].text)
	})

	t.Run("Text at exactly the limit stays one window", func(t *testing.T) {
		text := strings.Repeat("a", 100)
		windows := splitWindows(text, 100, 20)
		assert.Len(t, windows, 1)
	})

	t.Run("Empty text", func(t *testing.T) {
		windows := splitWindows("", 100, 20)
		assert.Len(t, windows, 1)
		assert.Equal(t, "", windows[0].text)
	})

	t.Run("Windows respect the limit and cover the text", func(t *testing.T) {
		sentence := "Mme Dubois attend une réponse depuis le mois de mars. "
		text := strings.Repeat(sentence, 40)

		windows := splitWindows(text, 400, 80)
		assert.GreaterOrEqual(t, len(windows), 4, "Expected the text to be split into several windows")

		covered := 0
		for _, w := range windows {
			assert.LessOrEqual(t, len(w.text), 400, "Expected every window to stay under the limit")
			assert.Equal(t, text[w.start:w.start+len(w.text)], w.text, "Expected the window to be a slice of the original")
			assert.True(t, utf8.ValidString(w.text), "Expected no window to cut a rune in half")
			assert.LessOrEqual(t, w.start, covered, "Expected no gap between windows")
			if end := w.start + len(w.text); end > covered {
				covered = end
			}
		}
		assert.Equal(t, len(text), covered, "Expected the windows to cover the whole text")
	})

	t.Run("Windows open at word starts", func(t *testing.T) {
		text := strings.Repeat("le dossier a été transmis au service compétent hier matin. ", 30)

		windows := splitWindows(text, 350, 70)
		for _, w := range windows[1:] {
			before, _ := utf8.DecodeLastRuneInString(text[:w.start])
			assert.True(t, unicode.IsSpace(before), "Expected window at %d to open at a word start", w.start)
		}
	})

	t.Run("A name at a cut survives in the overlap", func(t *testing.T) {
		text := strings.Repeat("word ", 18) + "Marie Dubois est là."

		windows := splitWindows(text, 100, 30)
		assert.GreaterOrEqual(t, len(windows), 2)

		whole := false
		for _, w := range windows {
			if strings.Contains(w.text, "Marie Dubois") {
				whole = true
			}
		}
		assert.True(t, whole, "Expected at least one window to hold the full name")
	})

	t.Run("Unbroken multi byte text cuts at rune boundaries", func(t *testing.T) {
		text := strings.Repeat("é", 1000)

		windows := splitWindows(text, 300, 50)
		assert.GreaterOrEqual(t, len(windows), 3)

		covered := 0
		for _, w := range windows {
			assert.True(t, utf8.ValidString(w.text), "Expected rune aligned cuts")
			assert.LessOrEqual(t, w.start, covered)
			if end := w.start + len(w.text); end > covered {
				covered = end
			}
		}
		assert.Equal(t, len(text), covered)
	})
}

func TestDedupeWindowed(t *testing.T) {
	person := func(start int, end int, confidence float64) model.DetectedEntity {
		return model.DetectedEntity{
			Text:       "name",
			Type:       model.EntityTypePerson,
			Start:      start,
			End:        end,
			Confidence: confidence,
			Source:     model.DetectionSourceModel,
		}
	}

	t.Run("Identical spans keep the higher confidence", func(t *testing.T) {
		detections := dedupeWindowed([]model.DetectedEntity{
			person(10, 22, 0.7),
			person(10, 22, 0.9),
		})
		assert.Len(t, detections, 1)
		assert.Equal(t, 0.9, detections[0].Confidence)
	})

	t.Run("Partial finds inside a longer span are dropped", func(t *testing.T) {
		detections := dedupeWindowed([]model.DetectedEntity{
			person(16, 22, 0.8),
			person(10, 22, 0.9),
		})
		assert.Len(t, detections, 1)
		assert.Equal(t, 10, detections[0].Start)
		assert.Equal(t, 22, detections[0].End)
	})

	t.Run("Distinct spans stay", func(t *testing.T) {
		detections := dedupeWindowed([]model.DetectedEntity{
			person(30, 42, 0.8),
			person(10, 22, 0.9),
		})
		assert.Len(t, detections, 2)
		assert.Equal(t, 10, detections[0].Start, "Expected the result sorted by start")
		assert.Equal(t, 30, detections[1].Start)
	})

	t.Run("Single detection passes through", func(t *testing.T) {
		detections := dedupeWindowed([]model.DetectedEntity{person(10, 22, 0.9)})
		assert.Len(t, detections, 1)
	})
}
