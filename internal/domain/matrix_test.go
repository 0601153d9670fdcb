package domain

import (
	"encoding/json"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRoster(t *testing.T, ids ...string) *Roster {
	t.Helper()
	r, err := NewRoster(ids...)
	require.NoError(t, err)
	return r
}

func TestNewScoreMatrix(t *testing.T) {
	m := NewScoreMatrix(mustRoster(t, "A", "B", "C"))

	assert.Equal(t, [][]int{
		{-1, 0, 0},
		{0, -1, 0},
		{0, 0, -1},
	}, m.Rows())
}

func TestScoreMatrixRecord(t *testing.T) {
	tests := []struct {
		name      string
		verdict   Verdict
		wantLeft  Outcome
		wantRight Outcome
	}{
		{"left wins", VerdictLeftWins, OutcomeWin, OutcomeLoss},
		{"right wins", VerdictRightWins, OutcomeLoss, OutcomeWin},
		{"tie", VerdictTie, OutcomeTie, OutcomeTie},
		{"unparseable", VerdictUnparseable, OutcomeUnparseable, OutcomeUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewScoreMatrix(mustRoster(t, "A", "B", "C"))
			require.NoError(t, m.Record("A", "C", tt.verdict))

			got, err := m.At("A", "C")
			require.NoError(t, err)
			assert.Equal(t, tt.wantLeft, got)

			got, err = m.At("C", "A")
			require.NoError(t, err)
			assert.Equal(t, tt.wantRight, got)

			// Untouched cells keep their initial values.
			assert.Equal(t, OutcomeDiagonal, m.AtIndex(1, 1))
			assert.Equal(t, OutcomeLoss, m.AtIndex(0, 1))
		})
	}
}

func TestScoreMatrixRecordErrors(t *testing.T) {
	m := NewScoreMatrix(mustRoster(t, "A", "B"))

	err := m.Record("A", "A", VerdictLeftWins)
	assert.ErrorIs(t, err, ErrSelfComparison)
	assert.Equal(t, OutcomeDiagonal, m.AtIndex(0, 0), "diagonal is never touched")

	err = m.Record("A", "Z", VerdictTie)
	assert.ErrorIs(t, err, ErrUnknownCompetitor)

	var merr *MatrixError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "record", merr.Op)
	assert.Equal(t, "Z", merr.Col)

	_, err = m.At("Q", "A")
	assert.ErrorIs(t, err, ErrUnknownCompetitor)
}

// TestScoreMatrixRecordProperties checks that any sequence of recorded
// verdicts keeps the matrix consistent: diagonal -1, mirrored cells
// complementary, and every cell a known code.
func TestScoreMatrixRecordProperties(t *testing.T) {
	ids := []string{"A", "B", "C", "D"}
	roster := mustRoster(t, ids...)

	property := func(moves []uint8) bool {
		m := NewScoreMatrix(roster)
		for _, mv := range moves {
			i := int(mv>>4) % len(ids)
			j := int(mv>>2) % len(ids)
			if i == j {
				continue
			}
			if err := m.Record(ids[i], ids[j], Verdict(mv%4)); err != nil {
				return false
			}
		}

		_, err := MatrixFromRows(roster, m.Rows())
		if err != nil {
			return false
		}
		for i := range ids {
			for j := range ids {
				c := m.AtIndex(i, j)
				if !c.Known() {
					return false
				}
				mirror := m.AtIndex(j, i)
				unjudged := c == OutcomeLoss && mirror == OutcomeLoss
				if c.Valid() && !unjudged && int(c)+int(mirror) != 2 {
					return false
				}
			}
		}
		return true
	}

	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 500}))
}

func TestMatrixFromRows(t *testing.T) {
	roster := mustRoster(t, "A", "B", "C")

	tests := []struct {
		name    string
		rows    [][]int
		wantErr error
	}{
		{
			name: "valid",
			rows: [][]int{{-1, 2, 2}, {0, -1, 1}, {0, 1, -1}},
		},
		{
			name: "unjudged pair",
			rows: [][]int{{-1, 0, 2}, {0, -1, 1}, {0, 1, -1}},
		},
		{
			name: "empty matrix",
			rows: [][]int{{-1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
		},
		{
			name: "unparseable pair",
			rows: [][]int{{-1, -2, 2}, {-2, -1, 1}, {0, 1, -1}},
		},
		{
			name:    "wrong row count",
			rows:    [][]int{{-1, 0}, {0, -1}},
			wantErr: ErrShapeMismatch,
		},
		{
			name:    "ragged row",
			rows:    [][]int{{-1, 0, 0}, {0, -1}, {0, 0, -1}},
			wantErr: ErrShapeMismatch,
		},
		{
			name:    "out of domain",
			rows:    [][]int{{-1, 3, 0}, {-1, -1, 0}, {0, 0, -1}},
			wantErr: ErrInvalidOutcome,
		},
		{
			name:    "bad diagonal",
			rows:    [][]int{{0, 2, 2}, {0, -1, 1}, {0, 1, -1}},
			wantErr: ErrInvalidOutcome,
		},
		{
			name:    "diagonal sentinel off the diagonal",
			rows:    [][]int{{-1, -1, 2}, {-1, -1, 1}, {0, 1, -1}},
			wantErr: ErrInvalidOutcome,
		},
		{
			name:    "not complementary",
			rows:    [][]int{{-1, 2, 2}, {2, -1, 1}, {0, 1, -1}},
			wantErr: ErrAsymmetric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := MatrixFromRows(roster, tt.rows)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, m.Rows())
		})
	}
}

func TestScoreMatrixRowScores(t *testing.T) {
	roster := mustRoster(t, "A", "B", "C")
	m, err := MatrixFromRows(roster, [][]int{
		{-1, 2, 2},
		{0, -1, 1},
		{0, 1, -1},
	})
	require.NoError(t, err)

	scores := m.RowScores()
	assert.Equal(t, []string{"A", "B", "C"}, scores.IDs())
	assert.Equal(t, []float64{4, 1, 1}, scores.Scores())

	t.Run("row without valid cells scores -1", func(t *testing.T) {
		m := NewScoreMatrix(mustRoster(t, "A", "B"))
		require.NoError(t, m.Record("A", "B", VerdictUnparseable))

		assert.Equal(t, []float64{-1, -1}, m.RowScores().Scores())
	})
}

func TestScoreMatrixAlign(t *testing.T) {
	m := NewScoreMatrix(mustRoster(t, "A", "B", "C"))
	require.NoError(t, m.Record("A", "B", VerdictLeftWins))
	require.NoError(t, m.Record("B", "C", VerdictTie))
	require.NoError(t, m.Record("A", "C", VerdictRightWins))

	aligned, err := m.Align(mustRoster(t, "C", "B", "A"))
	require.NoError(t, err)

	for _, pair := range [][2]string{{"A", "B"}, {"B", "C"}, {"A", "C"}, {"C", "A"}} {
		want, _ := m.At(pair[0], pair[1])
		got, err := aligned.At(pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, want, got, "%s vs %s", pair[0], pair[1])
	}

	_, err = m.Align(mustRoster(t, "A", "B", "D"))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestScoreMatrixCloneIsIndependent(t *testing.T) {
	m := NewScoreMatrix(mustRoster(t, "A", "B"))
	cp := m.Clone()
	require.NoError(t, cp.Record("A", "B", VerdictLeftWins))

	assert.Equal(t, OutcomeLoss, m.AtIndex(0, 1))
	assert.False(t, m.Equal(cp))
}

func TestScoreMatrixJSON(t *testing.T) {
	m := NewScoreMatrix(mustRoster(t, "openai/gpt", "anthropic/claude"))
	require.NoError(t, m.Record("openai/gpt", "anthropic/claude", VerdictRightWins))

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"competitors":["openai/gpt","anthropic/claude"],"cells":[[-1,0],[2,-1]]}`, string(data))

	var decoded ScoreMatrix
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, m.Roster().Equal(decoded.Roster()))
	assert.Equal(t, m.Rows(), decoded.Rows())

	t.Run("empty matrix round trips", func(t *testing.T) {
		// Given a matrix nobody has judged yet
		empty := NewScoreMatrix(mustRoster(t, "A", "B", "C"))

		// When encoding and decoding it
		data, err := json.Marshal(empty)
		require.NoError(t, err)
		var decoded ScoreMatrix
		require.NoError(t, json.Unmarshal(data, &decoded))

		// Then it comes back unchanged
		assert.True(t, empty.Equal(&decoded))
	})

	t.Run("rejects corrupted cells", func(t *testing.T) {
		var bad ScoreMatrix
		err := json.Unmarshal([]byte(`{"competitors":["a","b"],"cells":[[-1,7],[0,-1]]}`), &bad)
		assert.ErrorIs(t, err, ErrInvalidOutcome)
	})
}

func TestVerdictText(t *testing.T) {
	for _, v := range []Verdict{VerdictLeftWins, VerdictRightWins, VerdictTie, VerdictUnparseable} {
		text, err := v.MarshalText()
		require.NoError(t, err)

		var got Verdict
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, v, got)
	}

	var zero Verdict
	assert.Equal(t, "UNPARSEABLE", zero.String(), "zero value never counts as a judgment")
}

func TestResults(t *testing.T) {
	roster := mustRoster(t, "A", "B")
	r := Results{}
	m1 := NewScoreMatrix(roster)
	m2 := NewScoreMatrix(roster)
	m3 := NewScoreMatrix(roster)
	r.Put("t2", "j1", m3)
	r.Put("t1", "j2", m2)
	r.Put("t1", "j1", m1)

	assert.Equal(t, []string{"t1", "t2"}, r.TextIDs())
	assert.Equal(t, []string{"j1", "j2"}, r.JudgeIDs("t1"))

	all := r.Matrices()
	require.Len(t, all, 3)
	assert.Same(t, m1, all[0])
	assert.Same(t, m2, all[1])
	assert.Same(t, m3, all[2])

	assert.Equal(t, []*ScoreMatrix{m1, m3}, r.ForJudge("j1"))
}
