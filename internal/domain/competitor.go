package domain

import (
	"fmt"
	"slices"
)

// TagNoTemperature marks competitors whose models reject sampling
// parameters such as temperature and top_p.
const TagNoTemperature = "no-temperature"

// Competitor is one model configuration taking part in a comparison run.
// Competitors are created once from static configuration and never mutated.
type Competitor struct {
	// ID is unique within its engine.
	ID string `json:"id" yaml:"id"`

	// Label is the display name used in reports.
	Label string `json:"label" yaml:"label"`

	// Engine names the provider that serves the model (openai, anthropic,
	// google, ...).
	Engine string `json:"engine" yaml:"engine"`

	// Model is the provider-side model identifier.
	Model string `json:"model" yaml:"model"`

	// Params holds extra provider options passed through on every call.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// Tags carries behavioural flags such as TagNoTemperature.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// FullName returns the engine-qualified identifier used as the matrix
// index and as part of response cache keys.
func (c Competitor) FullName() string {
	if c.Engine == "" {
		return c.ID
	}
	return c.Engine + "/" + c.ID
}

// HasTag reports whether the competitor carries the given tag.
func (c Competitor) HasTag(tag string) bool { return slices.Contains(c.Tags, tag) }

// DisplayLabel returns Label, falling back to FullName.
func (c Competitor) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.FullName()
}

// Roster is the explicit ordered mapping from competitor identifier to
// row/column position shared by every matrix of a run.
// A Roster is immutable once built and safe for concurrent reads.
type Roster struct {
	ids []string
	pos map[string]int
}

// NewRoster validates ids (non-empty, unique) and freezes their order.
func NewRoster(ids ...string) (*Roster, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyRoster
	}

	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("competitor at position %d: %w", i, ErrUnknownCompetitor)
		}
		if _, dup := pos[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCompetitor, id)
		}
		pos[id] = i
	}

	return &Roster{ids: slices.Clone(ids), pos: pos}, nil
}

// RosterOf builds a roster from the competitors' full names.
func RosterOf(competitors []Competitor) (*Roster, error) {
	ids := make([]string, len(competitors))
	for i, c := range competitors {
		ids[i] = c.FullName()
	}
	return NewRoster(ids...)
}

// Len returns the number of competitors.
func (r *Roster) Len() int { return len(r.ids) }

// IDs returns a copy of the ordered competitor identifiers.
func (r *Roster) IDs() []string { return slices.Clone(r.ids) }

// ID returns the identifier at position i.
func (r *Roster) ID(i int) string { return r.ids[i] }

// Index returns the position of id.
func (r *Roster) Index(id string) (int, bool) {
	i, ok := r.pos[id]
	return i, ok
}

// Equal reports whether both rosters list the same ids in the same order.
func (r *Roster) Equal(other *Roster) bool {
	if r == other {
		return true
	}
	if r == nil || other == nil {
		return false
	}
	return slices.Equal(r.ids, other.ids)
}

// SameMembers reports whether both rosters contain the same ids, in any order.
func (r *Roster) SameMembers(other *Roster) bool {
	if r.Len() != other.Len() {
		return false
	}
	for _, id := range other.ids {
		if _, ok := r.pos[id]; !ok {
			return false
		}
	}
	return true
}
