package pseudonym

import (
	"github.com/mjuillard/veil/database"
	"github.com/mjuillard/veil/helper"
)

// ExhaustionWarnPct is the pool usage percentage above which a session
// reports a type as nearly exhausted.
const ExhaustionWarnPct = 80.0

// Engine creates assignment sessions against the mapping store.
type Engine struct {
	entities *database.EntitiesDBHandler
	library  *Library
}

// NewEngine creates a new pseudonym engine.
func NewEngine(entities *database.EntitiesDBHandler, library *Library) *Engine {
	return &Engine{
		entities: entities,
		library:  library,
	}
}

// Library returns the theme library the engine assigns from.
func (e *Engine) Library() *Library {
	return e.library
}

// NewSession loads the stored mappings of a theme and returns a session
// seeded with them. Sessions are not safe for concurrent use; every
// worker gets its own.
func (e *Engine) NewSession(themeName string) (*Session, error) {
	theme, err := e.library.Theme(themeName)
	if err != nil {
		return nil, err
	}

	stored, err := e.entities.SelectAllEntities(theme.Name)
	if err != nil {
		return nil, helper.NewError("load stored mappings", err)
	}

	session := newSession(theme)
	for _, entity := range stored {
		session.seed(entity)
	}

	return session, nil
}
