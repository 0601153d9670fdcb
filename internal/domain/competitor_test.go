package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompetitorFullName(t *testing.T) {
	tests := []struct {
		name string
		c    Competitor
		want string
	}{
		{"engine qualified", Competitor{ID: "gpt-4o", Engine: "openai"}, "openai/gpt-4o"},
		{"no engine", Competitor{ID: "local"}, "local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.FullName())
		})
	}
}

func TestCompetitorTagsAndLabel(t *testing.T) {
	c := Competitor{ID: "o1", Engine: "openai", Tags: []string{TagNoTemperature}}

	assert.True(t, c.HasTag(TagNoTemperature))
	assert.False(t, c.HasTag("other"))
	assert.Equal(t, "openai/o1", c.DisplayLabel(), "falls back to full name")

	c.Label = "O1"
	assert.Equal(t, "O1", c.DisplayLabel())
}

func TestNewRoster(t *testing.T) {
	t.Run("keeps order", func(t *testing.T) {
		r, err := NewRoster("b", "a", "c")
		require.NoError(t, err)

		assert.Equal(t, 3, r.Len())
		assert.Equal(t, []string{"b", "a", "c"}, r.IDs())
		i, ok := r.Index("a")
		assert.True(t, ok)
		assert.Equal(t, 1, i)
		_, ok = r.Index("z")
		assert.False(t, ok)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := NewRoster()
		assert.ErrorIs(t, err, ErrEmptyRoster)

		_, err = NewRoster("a", "b", "a")
		assert.ErrorIs(t, err, ErrDuplicateCompetitor)

		_, err = NewRoster("a", "")
		assert.ErrorIs(t, err, ErrUnknownCompetitor)
	})

	t.Run("IDs returns a copy", func(t *testing.T) {
		r, err := NewRoster("a", "b")
		require.NoError(t, err)

		ids := r.IDs()
		ids[0] = "mutated"
		assert.Equal(t, "a", r.ID(0))
	})
}

func TestRosterOf(t *testing.T) {
	r, err := RosterOf([]Competitor{
		{ID: "gpt", Engine: "openai"},
		{ID: "claude", Engine: "anthropic"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"openai/gpt", "anthropic/claude"}, r.IDs())

	_, err = RosterOf([]Competitor{{ID: "x", Engine: "e"}, {ID: "x", Engine: "e"}})
	assert.ErrorIs(t, err, ErrDuplicateCompetitor)
}

func TestRosterComparison(t *testing.T) {
	abc, _ := NewRoster("a", "b", "c")
	abc2, _ := NewRoster("a", "b", "c")
	cba, _ := NewRoster("c", "b", "a")
	abd, _ := NewRoster("a", "b", "d")

	assert.True(t, abc.Equal(abc2))
	assert.False(t, abc.Equal(cba))
	assert.False(t, abc.Equal(nil))
	assert.True(t, abc.SameMembers(cba))
	assert.False(t, abc.SameMembers(abd))
}
