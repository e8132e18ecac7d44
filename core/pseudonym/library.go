// Package pseudonym assigns themed replacement names. Assignments are
// deterministic: candidates are tried in pool order and the first unused
// one wins, so the same store state always yields the same pseudonyms.
package pseudonym

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mjuillard/veil/helper"
	"github.com/mjuillard/veil/model"
)

//go:embed themes/*.json
var themesFS embed.FS

// Library holds the built in themes, parsed and validated once.
type Library struct {
	themes map[string]*model.Theme
}

// NewLibrary parses the embedded theme files.
func NewLibrary() (*Library, error) {
	entries, err := themesFS.ReadDir("themes")
	if err != nil {
		return nil, helper.NewError("read themes directory", err)
	}

	library := &Library{themes: map[string]*model.Theme{}}
	for _, entry := range entries {
		data, err := themesFS.ReadFile("themes/" + entry.Name())
		if err != nil {
			return nil, helper.NewError("read theme file", err)
		}

		theme := &model.Theme{}
		err = json.Unmarshal(data, theme)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("parse theme %s", entry.Name()), err)
		}

		err = theme.Validate()
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("validate theme %s", entry.Name()), err)
		}

		library.themes[theme.Name] = theme
	}

	return library, nil
}

// Theme returns a theme by name, case insensitive.
func (l *Library) Theme(name string) (*model.Theme, error) {
	theme, ok := l.themes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown theme %s, available themes: %s", name, strings.Join(l.Names(), ", "))
	}
	return theme, nil
}

// Names lists the available theme names alphabetically.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.themes))
	for name := range l.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
