package tournament

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/ahrav/go-tourney/internal/domain"
)

// Method selects how several score matrices are combined cell by cell.
type Method string

// Supported combination methods.
const (
	MethodSum     Method = "sum"
	MethodAverage Method = "average"
	MethodMode    Method = "mode"
)

var (
	// ErrNoMatrices is returned when an aggregation receives no input.
	ErrNoMatrices = errors.New("no matrices to aggregate")

	// ErrUnknownMethod is returned by Combine for an unsupported Method.
	ErrUnknownMethod = errors.New("unknown aggregation method")

	// ErrNilRand is returned when mode aggregation is called without a
	// random source.
	ErrNilRand = errors.New("mode aggregation requires a random source")
)

// cellReducer folds the non-negative contributions of one cell into a
// value. It is only called when at least one contribution is valid.
type cellReducer func(valid []int) float64

// Sum combines matrices by summing the non-negative contributions of each
// cell. Cells with no valid contribution take the minimum sentinel.
func Sum(matrices []*domain.ScoreMatrix) (*domain.ConsensusMatrix, error) {
	return combine("sum", matrices, func(valid []int) float64 {
		total := 0
		for _, v := range valid {
			total += v
		}
		return float64(total)
	})
}

// Average combines matrices by the mean of the non-negative contributions
// of each cell. Cells with no valid contribution take the minimum sentinel.
func Average(matrices []*domain.ScoreMatrix) (*domain.ConsensusMatrix, error) {
	return combine("average", matrices, func(valid []int) float64 {
		total := 0
		for _, v := range valid {
			total += v
		}
		return float64(total) / float64(len(valid))
	})
}

// Mode combines matrices by the most frequent non-negative contribution of
// each cell. Equally frequent values are broken by a uniform draw from rng,
// so a fixed seed reproduces the same matrix. Cells with no valid
// contribution take the minimum sentinel.
func Mode(matrices []*domain.ScoreMatrix, rng *rand.Rand) (*domain.ConsensusMatrix, error) {
	if rng == nil {
		return nil, ErrNilRand
	}
	return combine("mode", matrices, func(valid []int) float64 {
		var counts [3]int
		for _, v := range valid {
			counts[v]++
		}

		best := 0
		for _, c := range counts {
			best = max(best, c)
		}

		// Values are visited in ascending order so the candidate list, and
		// therefore the draw, only depends on the counts.
		tied := make([]int, 0, len(counts))
		for v, c := range counts {
			if c == best {
				tied = append(tied, v)
			}
		}
		if len(tied) == 1 {
			return float64(tied[0])
		}
		return float64(tied[rng.IntN(len(tied))])
	})
}

// Combine dispatches to Sum, Average or Mode. rng is only used by Mode.
func Combine(method Method, matrices []*domain.ScoreMatrix, rng *rand.Rand) (*domain.ConsensusMatrix, error) {
	switch method {
	case MethodSum:
		return Sum(matrices)
	case MethodAverage:
		return Average(matrices)
	case MethodMode:
		return Mode(matrices, rng)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

func combine(op string, matrices []*domain.ScoreMatrix, reduce cellReducer) (*domain.ConsensusMatrix, error) {
	if len(matrices) == 0 {
		return nil, ErrNoMatrices
	}

	roster := matrices[0].Roster()
	for k, m := range matrices[1:] {
		if !m.Roster().Equal(roster) {
			return nil, domain.NewMatrixError(op, "", "",
				fmt.Errorf("%w: matrix %d is indexed differently from matrix 0", domain.ErrShapeMismatch, k+1))
		}
	}

	n := roster.Len()
	out := domain.NewConsensusMatrix(roster)
	valid := make([]int, 0, len(matrices))
	for i := range n {
		for j := range n {
			valid = valid[:0]
			lowest := domain.OutcomeWin
			for _, m := range matrices {
				c := m.AtIndex(i, j)
				if c.Valid() {
					valid = append(valid, int(c))
				} else {
					lowest = min(lowest, c)
				}
			}

			if len(valid) == 0 {
				out.Set(i, j, float64(lowest))
				continue
			}
			out.Set(i, j, reduce(valid))
		}
	}
	return out, nil
}

// ScoresMany sums each competitor's score across tables. Competitors are
// collected in first-seen order. A competitor whose every contribution was
// negative totals -1; negative totals are dropped and the rest is sorted
// by descending score, ties keeping first-seen order.
func ScoresMany(tables []domain.ScoreTable) domain.ScoreTable {
	type acc struct {
		total    float64
		negative bool
	}

	var order []string
	totals := make(map[string]*acc)
	for _, t := range tables {
		for _, e := range t.Entries {
			a, ok := totals[e.ID]
			if !ok {
				a = &acc{negative: true}
				totals[e.ID] = a
				order = append(order, e.ID)
			}
			a.total += e.Score
			a.negative = a.negative && e.Score < 0
		}
	}

	entries := make([]domain.ScoreEntry, 0, len(order))
	for _, id := range order {
		a := totals[id]
		score := a.total
		if a.negative {
			score = -1
		}
		if score < 0 {
			continue
		}
		entries = append(entries, domain.ScoreEntry{ID: id, Score: score})
	}

	sortDescending(entries)
	return domain.ScoreTable{Entries: entries}
}
