package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType classifies the kind of identifying information a mapping covers
type EntityType string

const (
	EntityTypePerson       EntityType = "PERSON"
	EntityTypeLocation     EntityType = "LOCATION"
	EntityTypeOrganization EntityType = "ORGANIZATION"
	EntityTypeMisc         EntityType = "MISC"
)

// AllEntityTypes lists every type a detector may emit, in display order.
var AllEntityTypes = []EntityType{
	EntityTypePerson,
	EntityTypeLocation,
	EntityTypeOrganization,
	EntityTypeMisc,
}

// ParseEntityType normalizes user or model supplied type labels.
// It accepts the short NER tags (PER, LOC, ORG, MISC) as well as full names.
func ParseEntityType(value string) (EntityType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "PER", "PERSON":
		return EntityTypePerson, nil
	case "LOC", "LOCATION", "GPE":
		return EntityTypeLocation, nil
	case "ORG", "ORGANIZATION", "ORGANISATION":
		return EntityTypeOrganization, nil
	case "MISC", "MISCELLANEOUS":
		return EntityTypeMisc, nil
	}
	return "", fmt.Errorf("unknown entity type %q", value)
}

// Gender drives which first name pool a person pseudonym is drawn from.
type Gender string

const (
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderNeutral Gender = "neutral"
	GenderUnknown Gender = "unknown"
)

// Entity represents one persisted real name to pseudonym mapping.
// FullName, FirstName and LastName hold the real values and are stored
// encrypted; the pseudonym columns are stored in the clear so collision
// checks work without the key.
type Entity struct {
	ID              uuid.UUID  `json:"id"`
	Type            EntityType `json:"entity_type"`
	Theme           string     `json:"theme"`
	FullName        string     `json:"full_name"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	Gender          Gender     `json:"gender"`
	PseudonymFull   string     `json:"pseudonym_full"`
	PseudonymFirst  string     `json:"pseudonym_first,omitempty"`
	PseudonymLast   string     `json:"pseudonym_last,omitempty"`
	Confidence      float64    `json:"confidence"`
	Ambiguous       bool       `json:"ambiguous"`
	AmbiguityReason string     `json:"ambiguity_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// HasComponents reports whether the mapping carries separate first and last
// name components that later partial mentions can reuse.
func (e *Entity) HasComponents() bool {
	return e.Type == EntityTypePerson && e.FirstName != "" && e.LastName != ""
}
