package tournament

import (
	"math/rand/v2"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tourney/internal/domain"
)

func roster(t *testing.T, ids ...string) *domain.Roster {
	t.Helper()
	r, err := domain.NewRoster(ids...)
	require.NoError(t, err)
	return r
}

func matrix(t *testing.T, r *domain.Roster, rows [][]int) *domain.ScoreMatrix {
	t.Helper()
	m, err := domain.MatrixFromRows(r, rows)
	require.NoError(t, err)
	return m
}

func seeded(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, seed)) }

// abcMatrix: A beats B, B ties C, A beats C.
func abcMatrix(t *testing.T, r *domain.Roster) *domain.ScoreMatrix {
	t.Helper()
	m := domain.NewScoreMatrix(r)
	require.NoError(t, m.Record("A", "B", domain.VerdictLeftWins))
	require.NoError(t, m.Record("B", "C", domain.VerdictTie))
	require.NoError(t, m.Record("A", "C", domain.VerdictLeftWins))
	return m
}

func floatRows(rows [][]int) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = float64(v)
		}
	}
	return out
}

func TestAggregateIdenticalJudges(t *testing.T) {
	// Given two judges that agree on every pair
	r := roster(t, "A", "B", "C")
	judge1, judge2 := abcMatrix(t, r), abcMatrix(t, r)
	want := floatRows(judge1.Rows())

	// When the matrices are combined
	avg, err := Average([]*domain.ScoreMatrix{judge1, judge2})
	require.NoError(t, err)
	mode, err := Mode([]*domain.ScoreMatrix{judge1, judge2}, seeded(1))
	require.NoError(t, err)
	sum, err := Sum([]*domain.ScoreMatrix{judge1, judge2})
	require.NoError(t, err)

	// Then average and mode reproduce the judges and sum doubles them
	assert.Equal(t, want, avg.Rows())
	assert.Equal(t, want, mode.Rows())
	assert.Equal(t, [][]float64{{-1, 4, 4}, {0, -1, 2}, {0, 2, -1}}, sum.Rows())
}

func TestAggregateCells(t *testing.T) {
	r := roster(t, "A", "B")
	win := matrix(t, r, [][]int{{-1, 2}, {0, -1}})
	tie := matrix(t, r, [][]int{{-1, 1}, {1, -1}})
	loss := matrix(t, r, [][]int{{-1, 0}, {2, -1}})
	bad := matrix(t, r, [][]int{{-1, -2}, {-2, -1}})

	tests := []struct {
		name     string
		inputs   []*domain.ScoreMatrix
		wantSum  float64
		wantAvg  float64
		wantMode float64
	}{
		{"single valid", []*domain.ScoreMatrix{win}, 2, 2, 2},
		{"unparseable ignored", []*domain.ScoreMatrix{win, bad, tie, tie}, 4, 4.0 / 3, 1},
		{"all unparseable keeps sentinel", []*domain.ScoreMatrix{bad, bad}, -2, -2, -2},
		{"majority wins mode", []*domain.ScoreMatrix{loss, loss, win}, 2, 2.0 / 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := Sum(tt.inputs)
			require.NoError(t, err)
			avg, err := Average(tt.inputs)
			require.NoError(t, err)
			mode, err := Mode(tt.inputs, seeded(7))
			require.NoError(t, err)

			assert.Equal(t, tt.wantSum, sum.AtIndex(0, 1))
			assert.InDelta(t, tt.wantAvg, avg.AtIndex(0, 1), 1e-12)
			assert.Equal(t, tt.wantMode, mode.AtIndex(0, 1))

			// Diagonal cells only ever see the -1 sentinel.
			assert.Equal(t, -1.0, sum.AtIndex(0, 0))
			assert.Equal(t, -1.0, avg.AtIndex(1, 1))
			assert.Equal(t, -1.0, mode.AtIndex(0, 0))
		})
	}
}

func TestAggregateErrors(t *testing.T) {
	abc := roster(t, "A", "B", "C")
	cba := roster(t, "C", "B", "A")
	m1 := domain.NewScoreMatrix(abc)
	m2 := domain.NewScoreMatrix(cba)

	_, err := Sum(nil)
	assert.ErrorIs(t, err, ErrNoMatrices)
	_, err = Average([]*domain.ScoreMatrix{})
	assert.ErrorIs(t, err, ErrNoMatrices)
	_, err = Mode(nil, seeded(1))
	assert.ErrorIs(t, err, ErrNoMatrices)

	t.Run("different order is a shape mismatch", func(t *testing.T) {
		_, err := Average([]*domain.ScoreMatrix{m1, m2})
		assert.ErrorIs(t, err, domain.ErrShapeMismatch)

		var merr *domain.MatrixError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, "average", merr.Op)
	})

	t.Run("aligned matrices combine", func(t *testing.T) {
		aligned, err := m2.Align(abc)
		require.NoError(t, err)
		_, err = Sum([]*domain.ScoreMatrix{m1, aligned})
		assert.NoError(t, err)
	})

	t.Run("mode needs a random source", func(t *testing.T) {
		_, err := Mode([]*domain.ScoreMatrix{m1}, nil)
		assert.ErrorIs(t, err, ErrNilRand)
	})
}

func TestModeTieBreak(t *testing.T) {
	r := roster(t, "A", "B")
	win := matrix(t, r, [][]int{{-1, 2}, {0, -1}})
	loss := matrix(t, r, [][]int{{-1, 0}, {2, -1}})
	inputs := []*domain.ScoreMatrix{win, loss}

	t.Run("same seed same matrix", func(t *testing.T) {
		for seed := range uint64(20) {
			a, err := Mode(inputs, seeded(seed))
			require.NoError(t, err)
			b, err := Mode(inputs, seeded(seed))
			require.NoError(t, err)
			assert.Equal(t, a.Rows(), b.Rows(), "seed %d", seed)
		}
	})

	t.Run("draws only from the tied values", func(t *testing.T) {
		seen := map[float64]bool{}
		for seed := range uint64(64) {
			m, err := Mode(inputs, seeded(seed))
			require.NoError(t, err)
			v := m.AtIndex(0, 1)
			assert.Contains(t, []float64{0, 2}, v)
			seen[v] = true
		}
		assert.Len(t, seen, 2, "both tied values should be drawn across seeds")
	})
}

func TestAverageSingleMatrixIsIdentity(t *testing.T) {
	ids := []string{"A", "B", "C", "D"}
	r := roster(t, ids...)

	property := func(verdicts [6]uint8) bool {
		m := domain.NewScoreMatrix(r)
		k := 0
		for i := range ids {
			for j := i + 1; j < len(ids); j++ {
				// Restrict to real verdicts so every off-diagonal cell is valid.
				v := domain.Verdict(1 + verdicts[k]%3)
				if err := m.Record(ids[i], ids[j], v); err != nil {
					return false
				}
				k++
			}
		}

		avg, err := Average([]*domain.ScoreMatrix{m})
		if err != nil {
			return false
		}
		for i := range ids {
			for j := range ids {
				if avg.AtIndex(i, j) != float64(m.AtIndex(i, j)) {
					return false
				}
			}
		}
		return true
	}

	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 300}))
}

func TestCombine(t *testing.T) {
	r := roster(t, "A", "B", "C")
	inputs := []*domain.ScoreMatrix{abcMatrix(t, r)}

	for _, method := range []Method{MethodSum, MethodAverage, MethodMode} {
		t.Run(string(method), func(t *testing.T) {
			c, err := Combine(method, inputs, seeded(3))
			require.NoError(t, err)
			assert.Equal(t, floatRows(inputs[0].Rows()), c.Rows())
		})
	}

	_, err := Combine("median", inputs, seeded(3))
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestScoresMany(t *testing.T) {
	table := func(entries ...domain.ScoreEntry) domain.ScoreTable {
		return domain.ScoreTable{Entries: entries}
	}
	e := func(id string, score float64) domain.ScoreEntry { return domain.ScoreEntry{ID: id, Score: score} }

	tests := []struct {
		name   string
		tables []domain.ScoreTable
		want   []domain.ScoreEntry
	}{
		{
			name:   "empty",
			tables: nil,
			want:   []domain.ScoreEntry{},
		},
		{
			name:   "sums and sorts descending",
			tables: []domain.ScoreTable{table(e("A", 1), e("B", 3)), table(e("A", 1), e("B", 0))},
			want:   []domain.ScoreEntry{e("B", 3), e("A", 2)},
		},
		{
			name:   "all negative is dropped",
			tables: []domain.ScoreTable{table(e("A", 2), e("X", -1)), table(e("A", 2), e("X", -1))},
			want:   []domain.ScoreEntry{e("A", 4)},
		},
		{
			name:   "negative mixed with valid counts toward the sum",
			tables: []domain.ScoreTable{table(e("A", 3), e("B", -1)), table(e("A", 0), e("B", 2))},
			want:   []domain.ScoreEntry{e("A", 3), e("B", 1)},
		},
		{
			name:   "negative total is dropped",
			tables: []domain.ScoreTable{table(e("A", 1), e("B", -1)), table(e("A", 1), e("B", 0))},
			want:   []domain.ScoreEntry{e("A", 2)},
		},
		{
			name:   "union of ids with stable ties",
			tables: []domain.ScoreTable{table(e("C", 1)), table(e("A", 1), e("B", 2))},
			want:   []domain.ScoreEntry{e("B", 2), e("C", 1), e("A", 1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoresMany(tt.tables)
			assert.Equal(t, tt.want, got.Entries)
		})
	}
}
