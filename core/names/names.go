// Package names normalizes personal names for stable lookups: diacritic
// folding, honorific and particle handling, and splitting full names into
// first and last components.
package names

import (
	"strings"
	"unicode"

	"github.com/mjuillard/veil/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer decomposes characters and drops the combining marks,
// so "Müller" and "Muller" fold to the same key.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold returns the canonical lookup form of a name: diacritics removed,
// lowercased, inner whitespace collapsed to single spaces.
func Fold(value string) string {
	folded, _, err := transform.String(foldTransformer, value)
	if err != nil {
		// Fall back to the raw value, a stable key matters more
		// than a pretty one.
		folded = value
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// honorifics maps the folded title form to the gender it implies.
var honorifics = map[string]model.Gender{
	"m":            model.GenderMale,
	"m.":           model.GenderMale,
	"mr":           model.GenderMale,
	"mr.":          model.GenderMale,
	"monsieur":     model.GenderMale,
	"mme":          model.GenderFemale,
	"mme.":         model.GenderFemale,
	"mrs":          model.GenderFemale,
	"mrs.":         model.GenderFemale,
	"ms":           model.GenderFemale,
	"ms.":          model.GenderFemale,
	"madame":       model.GenderFemale,
	"mlle":         model.GenderFemale,
	"mlle.":        model.GenderFemale,
	"mademoiselle": model.GenderFemale,
	"miss":         model.GenderFemale,
	"dr":           model.GenderUnknown,
	"dr.":          model.GenderUnknown,
	"docteur":      model.GenderUnknown,
	"pr":           model.GenderUnknown,
	"pr.":          model.GenderUnknown,
	"prof":         model.GenderUnknown,
	"prof.":        model.GenderUnknown,
	"professeur":   model.GenderUnknown,
	"me":           model.GenderUnknown,
	"maitre":       model.GenderUnknown,
}

// IsHonorific reports whether a token is a known title.
func IsHonorific(token string) bool {
	_, ok := honorifics[Fold(token)]
	return ok
}

// HonorificGender returns the gender a title implies. Neutral titles like
// Dr and Me return unknown.
func HonorificGender(title string) model.Gender {
	if gender, ok := honorifics[Fold(title)]; ok {
		return gender
	}
	return model.GenderUnknown
}

// StripTitles removes leading honorifics from a name and returns the
// remaining name together with the titles that were removed, in order.
func StripTitles(value string) (string, []string) {
	tokens := strings.Fields(value)
	var titles []string
	for len(tokens) > 0 && IsHonorific(tokens[0]) {
		titles = append(titles, tokens[0])
		tokens = tokens[1:]
	}
	return strings.Join(tokens, " "), titles
}

// particles are the lowercase tokens that belong to the surname
// (de Beauvoir, van der Berg, ...).
var particles = map[string]bool{
	"de": true, "du": true, "des": true, "d'": true,
	"le": true, "la": true, "les": true,
	"van": true, "von": true, "der": true, "den": true, "ter": true, "ten": true,
	"da": true, "di": true, "del": true, "della": true, "dos": true,
}

func isParticle(token string) bool {
	return particles[strings.ToLower(token)]
}

// ParsedName is the result of splitting a full person name.
type ParsedName struct {
	First     string
	Last      string
	Gender    model.Gender
	Ambiguous bool
	Reason    string
}

// ParseFullName splits a person name into components. Leading honorifics
// are stripped and may settle the gender; nobiliary particles stay with
// the surname. Single tokens and names with more than two content tokens
// come back flagged ambiguous.
func ParseFullName(value string) ParsedName {
	stripped, titles := StripTitles(value)

	gender := model.GenderUnknown
	for _, title := range titles {
		if g := HonorificGender(title); g != model.GenderUnknown {
			gender = g
			break
		}
	}

	tokens := strings.Fields(stripped)
	switch len(tokens) {
	case 0:
		return ParsedName{Gender: gender, Ambiguous: true, Reason: "name is empty after stripping titles"}
	case 1:
		return ParsedName{
			Last:      tokens[0],
			Gender:    gender,
			Ambiguous: true,
			Reason:    "single name, role unknown",
		}
	}

	// Walk from the second token: the surname starts at the first
	// particle, otherwise at the final token.
	lastStart := len(tokens) - 1
	for i := 1; i < len(tokens); i++ {
		if isParticle(tokens[i]) {
			lastStart = i
			break
		}
	}

	parsed := ParsedName{
		First:  strings.Join(tokens[:lastStart], " "),
		Last:   strings.Join(tokens[lastStart:], " "),
		Gender: gender,
	}
	if lastStart > 1 {
		parsed.Ambiguous = true
		parsed.Reason = "more than two name tokens"
	}
	return parsed
}
