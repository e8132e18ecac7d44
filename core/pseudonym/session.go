package pseudonym

import (
	"fmt"
	"strings"

	"github.com/mjuillard/veil/core/names"
	"github.com/mjuillard/veil/model"
)

// Session assigns pseudonyms for one run. It starts from the stored
// mappings of its theme and keeps every decision made since, so repeated
// occurrences stay consistent with each other and with previous runs.
type Session struct {
	theme *model.Theme

	// fullByKey maps type plus folded full name to its mapping.
	fullByKey map[string]*model.Entity
	// firstByReal and lastByReal map folded real name components to their
	// pseudonym components, so family members share a pseudonym surname.
	firstByReal map[string]string
	lastByReal  map[string]string
	usedFirst   map[string]bool
	usedLast    map[string]bool
	usedFull    map[model.EntityType]map[string]bool

	newEntities    []*model.Entity
	placeholderSeq map[model.EntityType]int
}

func newSession(theme *model.Theme) *Session {
	return &Session{
		theme:          theme,
		fullByKey:      map[string]*model.Entity{},
		firstByReal:    map[string]string{},
		lastByReal:     map[string]string{},
		usedFirst:      map[string]bool{},
		usedLast:       map[string]bool{},
		usedFull:       map[model.EntityType]map[string]bool{},
		placeholderSeq: map[model.EntityType]int{},
	}
}

// Theme returns the theme the session assigns from.
func (s *Session) Theme() *model.Theme {
	return s.theme
}

// NewEntities returns the mappings created in this session, in assignment
// order. They are not persisted until the caller stores them.
func (s *Session) NewEntities() []*model.Entity {
	return s.newEntities
}

// Assign resolves one detected occurrence to a pseudonym. Known names
// reuse their stored mapping, new ones get the first unused candidate in
// pool order. Honorifics are stripped before the lookup so "Mme Dubois"
// and "Dubois" resolve to the same mapping.
func (s *Session) Assign(detected model.DetectedEntity) (model.Assignment, error) {
	if strings.TrimSpace(detected.Text) == "" {
		return model.Assignment{}, fmt.Errorf("cannot assign a pseudonym to an empty detection")
	}

	value, titles := names.StripTitles(detected.Text)
	if value == "" {
		value = detected.Text
	}

	if existing, ok := s.fullByKey[mappingKey(detected.Type, value)]; ok {
		return model.Assignment{
			Detection: detected,
			Entity:    existing,
			Pseudonym: existing.PseudonymFull,
			Reused:    true,
		}, nil
	}

	var entity *model.Entity
	if detected.Type == model.EntityTypePerson {
		entity = s.assignPerson(detected, value, titles)
	} else {
		entity = s.assignSimple(detected, value)
	}

	s.fullByKey[mappingKey(entity.Type, entity.FullName)] = entity
	s.markUsed(entity)
	s.newEntities = append(s.newEntities, entity)

	return model.Assignment{
		Detection: detected,
		Entity:    entity,
		Pseudonym: entity.PseudonymFull,
		Reused:    false,
	}, nil
}

func (s *Session) assignPerson(detected model.DetectedEntity, value string, titles []string) *model.Entity {
	parsed := names.ParseFullName(value)

	// The titles were already stripped off the value, so the parse cannot
	// see them; their gender hint is applied here.
	gender := detected.Gender
	for _, title := range titles {
		if gender != "" && gender != model.GenderUnknown {
			break
		}
		gender = names.HonorificGender(title)
	}
	if gender == "" {
		gender = model.GenderUnknown
	}

	if parsed.First == "" {
		return s.assignLoneName(detected, value, parsed, gender)
	}

	entity := &model.Entity{
		Type:            model.EntityTypePerson,
		Theme:           s.theme.Name,
		FullName:        value,
		FirstName:       parsed.First,
		LastName:        parsed.Last,
		Gender:          gender,
		Confidence:      detected.Confidence,
		Ambiguous:       parsed.Ambiguous,
		AmbiguityReason: parsed.Reason,
	}

	firstLocked, haveFirst := s.firstByReal[names.Fold(parsed.First)]
	lastLocked, haveLast := s.lastByReal[names.Fold(parsed.Last)]

	firstCandidates := []string{firstLocked}
	if !haveFirst {
		firstCandidates = s.unusedFirsts(gender)
	}
	lastCandidates := []string{lastLocked}
	if !haveLast {
		lastCandidates = s.unusedLasts()
	}

	// The fresh component varies on a full collision, a locked one never
	// does. Firsts vary fastest.
	for _, last := range lastCandidates {
		for _, first := range firstCandidates {
			full := first + " " + last
			if s.isUsedFull(model.EntityTypePerson, full) {
				continue
			}
			entity.PseudonymFull = full
			entity.PseudonymFirst = first
			entity.PseudonymLast = last
			return entity
		}
	}

	entity.PseudonymFull = s.placeholder(model.EntityTypePerson)
	return entity
}

// assignLoneName handles a single token person name. A token matching a
// known surname refers to that family, one matching a known first name
// refers to that person; a token matching neither is treated as a surname
// and flagged, the writer may have meant either role.
func (s *Session) assignLoneName(detected model.DetectedEntity, value string, parsed names.ParsedName, gender model.Gender) *model.Entity {
	fold := names.Fold(value)

	entity := &model.Entity{
		Type:       model.EntityTypePerson,
		Theme:      s.theme.Name,
		FullName:   value,
		LastName:   value,
		Gender:     gender,
		Confidence: detected.Confidence,
	}

	pseudoLast, matchesLast := s.lastByReal[fold]
	pseudoFirst, matchesFirst := s.firstByReal[fold]

	switch {
	case matchesLast:
		entity.PseudonymFull = pseudoLast
		entity.PseudonymLast = pseudoLast
		if matchesFirst {
			entity.Ambiguous = true
			entity.AmbiguityReason = "matches both a known surname and a known first name"
		}
	case matchesFirst:
		entity.FirstName = value
		entity.LastName = ""
		entity.PseudonymFull = pseudoFirst
		entity.PseudonymFirst = pseudoFirst
	default:
		entity.Ambiguous = true
		entity.AmbiguityReason = parsed.Reason
		for _, last := range s.unusedLasts() {
			if s.isUsedFull(model.EntityTypePerson, last) {
				continue
			}
			entity.PseudonymFull = last
			entity.PseudonymLast = last
			return entity
		}
		entity.PseudonymFull = s.placeholder(model.EntityTypePerson)
	}

	return entity
}

func (s *Session) assignSimple(detected model.DetectedEntity, value string) *model.Entity {
	entity := &model.Entity{
		Type:       detected.Type,
		Theme:      s.theme.Name,
		FullName:   value,
		Gender:     model.GenderUnknown,
		Confidence: detected.Confidence,
	}

	for _, candidate := range s.theme.Pool(detected.Type) {
		if s.isUsedFull(detected.Type, candidate) {
			continue
		}
		entity.PseudonymFull = candidate
		return entity
	}

	entity.PseudonymFull = s.placeholder(detected.Type)
	return entity
}

// seed registers a stored mapping without treating it as new.
func (s *Session) seed(entity *model.Entity) {
	s.fullByKey[mappingKey(entity.Type, entity.FullName)] = entity
	s.markUsed(entity)
}

func (s *Session) markUsed(entity *model.Entity) {
	if s.usedFull[entity.Type] == nil {
		s.usedFull[entity.Type] = map[string]bool{}
	}
	s.usedFull[entity.Type][entity.PseudonymFull] = true

	if entity.Type != model.EntityTypePerson {
		return
	}
	if entity.FirstName != "" && entity.PseudonymFirst != "" {
		s.firstByReal[names.Fold(entity.FirstName)] = entity.PseudonymFirst
		s.usedFirst[entity.PseudonymFirst] = true
	}
	if entity.LastName != "" && entity.PseudonymLast != "" {
		s.lastByReal[names.Fold(entity.LastName)] = entity.PseudonymLast
		s.usedLast[entity.PseudonymLast] = true
	}
}

func (s *Session) isUsedFull(entityType model.EntityType, full string) bool {
	return s.usedFull[entityType][full]
}

func (s *Session) unusedFirsts(gender model.Gender) []string {
	var unused []string
	for _, candidate := range s.theme.FirstPool(gender) {
		if !s.usedFirst[candidate] {
			unused = append(unused, candidate)
		}
	}
	return unused
}

func (s *Session) unusedLasts() []string {
	var unused []string
	for _, candidate := range s.theme.LastNames {
		if !s.usedLast[candidate] {
			unused = append(unused, candidate)
		}
	}
	return unused
}

// placeholder yields a numbered fallback once a pool is exhausted. The
// sequence skips values already taken in earlier runs.
func (s *Session) placeholder(entityType model.EntityType) string {
	for {
		s.placeholderSeq[entityType]++
		candidate := fmt.Sprintf("%s-%03d", entityType, s.placeholderSeq[entityType])
		if !s.isUsedFull(entityType, candidate) {
			return candidate
		}
	}
}

// Usage describes pool consumption for one entity type.
type Usage struct {
	Type model.EntityType
	Used int
	Size int
}

// Pct returns the consumed share of the pool in percent. A zero sized
// pool with assignments counts as fully consumed.
func (u Usage) Pct() float64 {
	if u.Size == 0 {
		if u.Used > 0 {
			return 100
		}
		return 0
	}
	return float64(u.Used) / float64(u.Size) * 100
}

// Usage reports pool consumption for every entity type, in display order.
func (s *Session) Usage() []Usage {
	usages := make([]Usage, 0, len(model.AllEntityTypes))
	for _, entityType := range model.AllEntityTypes {
		usages = append(usages, Usage{
			Type: entityType,
			Used: len(s.usedFull[entityType]),
			Size: s.theme.PoolSize(entityType),
		})
	}
	return usages
}

// NearlyExhausted returns the types whose pool usage crossed the warning
// threshold.
func (s *Session) NearlyExhausted() []Usage {
	var warnings []Usage
	for _, usage := range s.Usage() {
		if usage.Used > 0 && usage.Pct() >= ExhaustionWarnPct {
			warnings = append(warnings, usage)
		}
	}
	return warnings
}

func mappingKey(entityType model.EntityType, fullName string) string {
	return string(entityType) + "|" + names.Fold(fullName)
}
