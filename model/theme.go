package model

import "fmt"

// NamePool holds the gendered first name pools of a theme.
type NamePool struct {
	Female  []string `json:"female"`
	Male    []string `json:"male"`
	Neutral []string `json:"neutral,omitempty"`
}

// Theme describes one pseudonym universe. All pools within a theme are
// disjoint from each other so replacements never collide across types.
type Theme struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	FirstNames    NamePool `json:"first_names"`
	LastNames     []string `json:"last_names"`
	Locations     []string `json:"locations"`
	Organizations []string `json:"organizations"`
	Misc          []string `json:"misc,omitempty"`
}

// FirstPool returns the first name candidates for a gender. Unknown and
// neutral fall back to the neutral pool, then to female and male combined
// when a theme ships no neutral names.
func (t *Theme) FirstPool(gender Gender) []string {
	switch gender {
	case GenderFemale:
		return t.FirstNames.Female
	case GenderMale:
		return t.FirstNames.Male
	}
	if len(t.FirstNames.Neutral) > 0 {
		return t.FirstNames.Neutral
	}
	combined := make([]string, 0, len(t.FirstNames.Female)+len(t.FirstNames.Male))
	combined = append(combined, t.FirstNames.Female...)
	combined = append(combined, t.FirstNames.Male...)
	return combined
}

// Pool returns the full name candidates for a non person entity type.
func (t *Theme) Pool(entityType EntityType) []string {
	switch entityType {
	case EntityTypeLocation:
		return t.Locations
	case EntityTypeOrganization:
		return t.Organizations
	case EntityTypeMisc:
		return t.Misc
	}
	return nil
}

// PoolSize returns how many distinct full pseudonyms a type can yield.
// For persons that is the product of first and last name pools.
func (t *Theme) PoolSize(entityType EntityType) int {
	if entityType == EntityTypePerson {
		firsts := len(t.FirstNames.Female) + len(t.FirstNames.Male) + len(t.FirstNames.Neutral)
		return firsts * len(t.LastNames)
	}
	return len(t.Pool(entityType))
}

// Validate checks that a theme carries enough material to assign person,
// location and organization pseudonyms.
func (t *Theme) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("theme has no name")
	}
	if len(t.FirstNames.Female) == 0 && len(t.FirstNames.Male) == 0 && len(t.FirstNames.Neutral) == 0 {
		return fmt.Errorf("theme %s has no first names", t.Name)
	}
	if len(t.LastNames) == 0 {
		return fmt.Errorf("theme %s has no last names", t.Name)
	}
	if len(t.Locations) == 0 {
		return fmt.Errorf("theme %s has no locations", t.Name)
	}
	if len(t.Organizations) == 0 {
		return fmt.Errorf("theme %s has no organizations", t.Name)
	}
	return nil
}
