package tournament

import (
	"cmp"
	"errors"
	"math"
	"slices"

	"github.com/ahrav/go-tourney/internal/domain"
)

// ErrZeroSum is returned when a score table cannot be normalised because
// its scores add up to zero.
var ErrZeroSum = errors.New("cannot normalise scores that sum to zero")

// NormalizeConfig controls Normalize.
type NormalizeConfig struct {
	// TargetTotal is the sum the normalised scores must add up to.
	TargetTotal float64 `yaml:"target_total" json:"target_total" validate:"gt=0"`

	// Decimals is the rounding precision. Negative disables rounding and
	// residual correction.
	Decimals int `yaml:"decimals" json:"decimals" validate:"lte=6"`
}

// DefaultNormalizeConfig rescales to 100 with two decimals.
func DefaultNormalizeConfig() NormalizeConfig {
	return NormalizeConfig{TargetTotal: 100, Decimals: 2}
}

// Normalize rescales table so its scores sum to cfg.TargetTotal, keeping
// entry order. Scaled values are rounded half-to-even to cfg.Decimals and
// the whole rounding residual is added to the largest entry (the first one
// on ties), so the rounded column sums exactly to the target.
func Normalize(table domain.ScoreTable, cfg NormalizeConfig) (domain.ScoreTable, error) {
	total := table.Total()
	if total == 0 {
		return domain.ScoreTable{}, ErrZeroSum
	}

	factor := cfg.TargetTotal / total
	entries := make([]domain.ScoreEntry, len(table.Entries))
	if cfg.Decimals < 0 {
		for i, e := range table.Entries {
			entries[i] = domain.ScoreEntry{ID: e.ID, Score: e.Score * factor}
		}
		return domain.ScoreTable{Entries: entries}, nil
	}

	// Work in integer units of 10^-Decimals so the residual is exact.
	scale := math.Pow10(cfg.Decimals)
	units := make([]int64, len(table.Entries))
	var sum int64
	for i, e := range table.Entries {
		units[i] = int64(math.RoundToEven(e.Score * factor * scale))
		sum += units[i]
	}

	if residual := int64(math.RoundToEven(cfg.TargetTotal*scale)) - sum; residual != 0 {
		units[argmax(units)] += residual
	}

	for i, e := range table.Entries {
		entries[i] = domain.ScoreEntry{ID: e.ID, Score: float64(units[i]) / scale}
	}
	return domain.ScoreTable{Entries: entries}, nil
}

// Rank turns every matrix in results into row scores, sums them per
// competitor with ScoresMany and normalises the totals.
func Rank(results domain.Results, cfg NormalizeConfig) (domain.ScoreTable, error) {
	matrices := results.Matrices()
	tables := make([]domain.ScoreTable, len(matrices))
	for i, m := range matrices {
		tables[i] = m.RowScores()
	}
	return Normalize(ScoresMany(tables), cfg)
}

func argmax(values []int64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func sortDescending(entries []domain.ScoreEntry) {
	slices.SortStableFunc(entries, func(a, b domain.ScoreEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})
}
