package detect

import (
	"strings"
	"testing"

	"github.com/mjuillard/veil/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPatterns(t *testing.T) {
	t.Run("Honorific with surname", func(t *testing.T) {
		text := "Mme Dubois a appelé ce matin."
		detections := MatchPatterns(text)
		require.Len(t, detections, 1, "Expected one pattern detection")

		detection := detections[0]
		assert.Equal(t, "Dubois", detection.Text, "Expected the span to cover the name without the title")
		assert.Equal(t, model.EntityTypePerson, detection.Type)
		assert.Equal(t, strings.Index(text, "Dubois"), detection.Start)
		assert.Equal(t, strings.Index(text, "Dubois")+len("Dubois"), detection.End)
		assert.Equal(t, model.DetectionSourcePattern, detection.Source)
		assert.InDelta(t, PatternConfidence, detection.Confidence, 1e-9)
		assert.Equal(t, model.GenderFemale, detection.Gender, "Expected the gender implied by Mme")
	})

	t.Run("Abbreviated monsieur", func(t *testing.T) {
		text := "Le contrat de M. Lefevre est prêt."
		detections := MatchPatterns(text)
		require.Len(t, detections, 1)
		assert.Equal(t, "Lefevre", detections[0].Text)
		assert.Equal(t, model.GenderMale, detections[0].Gender, "Expected the gender implied by M.")
	})

	t.Run("Title with trailing dot", func(t *testing.T) {
		text := "Prof. Martin enseigne à Lyon."
		detections := MatchPatterns(text)
		require.Len(t, detections, 1)
		assert.Equal(t, "Martin", detections[0].Text, "Expected the dot to stay outside the span")
		assert.Equal(t, model.GenderUnknown, detections[0].Gender, "Expected no gender from a neutral title")
	})

	t.Run("Multi token name", func(t *testing.T) {
		text := "Mme Marie Claire Dubois est présente."
		detections := MatchPatterns(text)
		require.Len(t, detections, 1)
		assert.Equal(t, "Marie Claire Dubois", detections[0].Text, "Expected the full name after the title")
	})

	t.Run("Hyphenated name", func(t *testing.T) {
		text := "Mlle Anne-Sophie est là."
		detections := MatchPatterns(text)
		require.Len(t, detections, 1)
		assert.Equal(t, "Anne-Sophie", detections[0].Text)
		assert.Equal(t, model.GenderFemale, detections[0].Gender)
	})

	t.Run("Nobiliary particle", func(t *testing.T) {
		text := "M. de Beauvoir préside la séance."
		detections := MatchPatterns(text)
		require.Len(t, detections, 1)
		assert.Equal(t, "de Beauvoir", detections[0].Text, "Expected the particle to stay with the name")
		assert.Equal(t, strings.Index(text, "de Beauvoir"), detections[0].Start)
		assert.Equal(t, model.GenderMale, detections[0].Gender)
	})

	t.Run("Multiple matches in order", func(t *testing.T) {
		text := "Dr House et Me Dupont se connaissent."
		detections := MatchPatterns(text)
		require.Len(t, detections, 2, "Expected both references to match")
		assert.Equal(t, "House", detections[0].Text)
		assert.Equal(t, model.GenderUnknown, detections[0].Gender, "Expected no gender from Dr")
		assert.Equal(t, "Dupont", detections[1].Text)
		assert.Equal(t, model.GenderUnknown, detections[1].Gender, "Expected no gender from Me")
		assert.Less(t, detections[0].Start, detections[1].Start, "Expected matches in text order")
	})

	t.Run("English titles", func(t *testing.T) {
		text := "Please contact Mrs Smith and Mr Jones."
		detections := MatchPatterns(text)
		require.Len(t, detections, 2)
		assert.Equal(t, "Smith", detections[0].Text)
		assert.Equal(t, model.GenderFemale, detections[0].Gender)
		assert.Equal(t, "Jones", detections[1].Text)
		assert.Equal(t, model.GenderMale, detections[1].Gender)
	})

	t.Run("Role words are not names", func(t *testing.T) {
		assert.Empty(t, MatchPatterns("M. le Président a parlé."), "Expected no match on a lowercase continuation")
		assert.Empty(t, MatchPatterns("Mme demande une réponse."), "Expected no match without a capitalized name")
	})

	t.Run("No honorific no match", func(t *testing.T) {
		assert.Empty(t, MatchPatterns("Marie Dubois travaille à Paris."), "Expected bare names to be left to the model")
	})

	t.Run("No match across lines", func(t *testing.T) {
		assert.Empty(t, MatchPatterns("La signature de Mme\nDubois manque."), "Expected the title and name on the same line")
	})

	t.Run("Empty text", func(t *testing.T) {
		assert.Empty(t, MatchPatterns(""))
	})
}
