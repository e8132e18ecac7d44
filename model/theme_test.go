package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTheme() *Theme {
	return &Theme{
		Name: "test",
		FirstNames: NamePool{
			Female: []string{"Leia", "Padme"},
			Male:   []string{"Luke", "Han"},
		},
		LastNames:     []string{"Organa", "Skywalker"},
		Locations:     []string{"Coruscant", "Tatooine"},
		Organizations: []string{"Rebel Alliance"},
	}
}

func TestThemeFirstPool(t *testing.T) {
	theme := testTheme()

	t.Run("Female pool for female gender", func(t *testing.T) {
		assert.Equal(t, []string{"Leia", "Padme"}, theme.FirstPool(GenderFemale))
	})

	t.Run("Male pool for male gender", func(t *testing.T) {
		assert.Equal(t, []string{"Luke", "Han"}, theme.FirstPool(GenderMale))
	})

	t.Run("Unknown gender combines pools when no neutral names exist", func(t *testing.T) {
		pool := theme.FirstPool(GenderUnknown)

		assert.Len(t, pool, 4, "Expected combined female and male pools")
		assert.Contains(t, pool, "Leia")
		assert.Contains(t, pool, "Han")
	})

	t.Run("Unknown gender prefers neutral pool when present", func(t *testing.T) {
		withNeutral := testTheme()
		withNeutral.FirstNames.Neutral = []string{"Rey"}

		assert.Equal(t, []string{"Rey"}, withNeutral.FirstPool(GenderUnknown))
	})
}

func TestThemePool(t *testing.T) {
	theme := testTheme()

	t.Run("Locations pool", func(t *testing.T) {
		assert.Equal(t, []string{"Coruscant", "Tatooine"}, theme.Pool(EntityTypeLocation))
	})

	t.Run("Organizations pool", func(t *testing.T) {
		assert.Equal(t, []string{"Rebel Alliance"}, theme.Pool(EntityTypeOrganization))
	})

	t.Run("Persons have no flat pool", func(t *testing.T) {
		assert.Nil(t, theme.Pool(EntityTypePerson))
	})
}

func TestThemePoolSize(t *testing.T) {
	theme := testTheme()

	t.Run("Person pool size is first times last", func(t *testing.T) {
		assert.Equal(t, 8, theme.PoolSize(EntityTypePerson), "Expected 4 first names times 2 last names")
	})

	t.Run("Location pool size is list length", func(t *testing.T) {
		assert.Equal(t, 2, theme.PoolSize(EntityTypeLocation))
	})
}

func TestThemeValidate(t *testing.T) {
	t.Run("Valid theme passes", func(t *testing.T) {
		require.NoError(t, testTheme().Validate())
	})

	t.Run("Missing last names fail", func(t *testing.T) {
		theme := testTheme()
		theme.LastNames = nil

		err := theme.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "last names")
	})

	t.Run("Missing locations fail", func(t *testing.T) {
		theme := testTheme()
		theme.Locations = nil

		require.Error(t, theme.Validate())
	})

	t.Run("Missing name fails", func(t *testing.T) {
		theme := testTheme()
		theme.Name = ""

		require.Error(t, theme.Validate())
	})
}
