package domain

import (
	"encoding/json"
	"fmt"
)

// ScoreMatrix is the square table of pairwise outcomes produced by one
// judge on one input text. Cell (i, j) holds the Outcome of competitor i
// against competitor j.
//
// A matrix is owned by a single comparison run while it is being filled and
// is treated as read-only once persisted. It is not safe for concurrent
// mutation.
type ScoreMatrix struct {
	roster *Roster
	cells  []Outcome
}

// NewScoreMatrix allocates an empty matrix over roster: every cell is
// OutcomeLoss (0) except the diagonal, which holds OutcomeDiagonal.
func NewScoreMatrix(roster *Roster) *ScoreMatrix {
	n := roster.Len()
	m := &ScoreMatrix{
		roster: roster,
		cells:  make([]Outcome, n*n),
	}
	for i := range n {
		m.cells[i*n+i] = OutcomeDiagonal
	}
	return m
}

// MatrixFromRows builds a matrix from raw integer rows, as read back from
// storage. Every cell must be a known code, the diagonal must be -1 and
// mirrored cells must be complementary. A (0, 0) pair is the unjudged state
// NewScoreMatrix starts from and is accepted, so partly filled matrices
// decode as well as complete ones.
func MatrixFromRows(roster *Roster, rows [][]int) (*ScoreMatrix, error) {
	n := roster.Len()
	if len(rows) != n {
		return nil, NewMatrixError("from_rows", "", "",
			fmt.Errorf("%w: %d rows for %d competitors", ErrShapeMismatch, len(rows), n))
	}

	m := &ScoreMatrix{roster: roster, cells: make([]Outcome, n*n)}
	for i, row := range rows {
		if len(row) != n {
			return nil, NewMatrixError("from_rows", roster.ID(i), "",
				fmt.Errorf("%w: %d columns for %d competitors", ErrShapeMismatch, len(row), n))
		}
		for j, v := range row {
			o := Outcome(v)
			if v < int(OutcomeUnparseable) || v > int(OutcomeWin) || (i == j) != (o == OutcomeDiagonal) {
				return nil, NewMatrixError("from_rows", roster.ID(i), roster.ID(j),
					fmt.Errorf("%w: %d", ErrInvalidOutcome, v))
			}
			m.cells[i*n+j] = o
		}
	}

	for i := range n {
		for j := i + 1; j < n; j++ {
			upper, lower := m.cells[i*n+j], m.cells[j*n+i]
			if upper == OutcomeLoss && lower == OutcomeLoss {
				continue
			}
			if lower != upper.Mirror() {
				return nil, NewMatrixError("from_rows", roster.ID(i), roster.ID(j),
					fmt.Errorf("%w: %d vs %d", ErrAsymmetric, upper, lower))
			}
		}
	}

	return m, nil
}

// Roster returns the competitor index of the matrix.
func (m *ScoreMatrix) Roster() *Roster { return m.roster }

// Len returns the number of competitors on each axis.
func (m *ScoreMatrix) Len() int { return m.roster.Len() }

// AtIndex returns the outcome at row i, column j.
func (m *ScoreMatrix) AtIndex(i, j int) Outcome { return m.cells[i*m.roster.Len()+j] }

// At returns the outcome of row vs col by competitor id.
func (m *ScoreMatrix) At(row, col string) (Outcome, error) {
	i, ok := m.roster.Index(row)
	if !ok {
		return 0, NewMatrixError("at", row, col, ErrUnknownCompetitor)
	}
	j, ok := m.roster.Index(col)
	if !ok {
		return 0, NewMatrixError("at", row, col, ErrUnknownCompetitor)
	}
	return m.AtIndex(i, j), nil
}

// Record writes the verdict for the ordered pair (left, right). Both
// mirrored cells are set from the single verdict; the diagonal is never
// touched. This is the only mutator of a ScoreMatrix.
func (m *ScoreMatrix) Record(left, right string, v Verdict) error {
	i, ok := m.roster.Index(left)
	if !ok {
		return NewMatrixError("record", left, right, ErrUnknownCompetitor)
	}
	j, ok := m.roster.Index(right)
	if !ok {
		return NewMatrixError("record", left, right, ErrUnknownCompetitor)
	}
	if i == j {
		return NewMatrixError("record", left, right, ErrSelfComparison)
	}

	lo, ro := v.Outcomes()
	n := m.roster.Len()
	m.cells[i*n+j] = lo
	m.cells[j*n+i] = ro
	return nil
}

// Rows returns the cells as plain integer rows.
func (m *ScoreMatrix) Rows() [][]int {
	n := m.roster.Len()
	rows := make([][]int, n)
	for i := range n {
		rows[i] = make([]int, n)
		for j := range n {
			rows[i][j] = int(m.cells[i*n+j])
		}
	}
	return rows
}

// Clone returns a deep copy sharing the (immutable) roster.
func (m *ScoreMatrix) Clone() *ScoreMatrix {
	cp := &ScoreMatrix{roster: m.roster, cells: make([]Outcome, len(m.cells))}
	copy(cp.cells, m.cells)
	return cp
}

// Equal reports whether both matrices share a roster and hold the same cells.
func (m *ScoreMatrix) Equal(other *ScoreMatrix) bool {
	if !m.roster.Equal(other.roster) {
		return false
	}
	for k, c := range m.cells {
		if other.cells[k] != c {
			return false
		}
	}
	return true
}

// Align returns a copy of m re-indexed onto roster. The rosters must hold
// the same competitors; only their order may differ.
func (m *ScoreMatrix) Align(roster *Roster) (*ScoreMatrix, error) {
	if m.roster.Equal(roster) {
		return m.Clone(), nil
	}
	if !m.roster.SameMembers(roster) {
		return nil, NewMatrixError("align", "", "", ErrShapeMismatch)
	}

	n := roster.Len()
	out := &ScoreMatrix{roster: roster, cells: make([]Outcome, n*n)}
	for i := range n {
		si, _ := m.roster.Index(roster.ID(i))
		for j := range n {
			sj, _ := m.roster.Index(roster.ID(j))
			out.cells[i*n+j] = m.AtIndex(si, sj)
		}
	}
	return out, nil
}

// RowScore returns the score of row i: the sum of its non-negative cells,
// or -1 when the row has no non-negative cell.
func (m *ScoreMatrix) RowScore(i int) float64 {
	n := m.roster.Len()
	sum, valid := 0, false
	for j := range n {
		if c := m.cells[i*n+j]; c.Valid() {
			sum += int(c)
			valid = true
		}
	}
	if !valid {
		return -1
	}
	return float64(sum)
}

// RowScores returns one entry per competitor, in roster order.
func (m *ScoreMatrix) RowScores() ScoreTable {
	n := m.roster.Len()
	entries := make([]ScoreEntry, n)
	for i := range n {
		entries[i] = ScoreEntry{ID: m.roster.ID(i), Score: m.RowScore(i)}
	}
	return ScoreTable{Entries: entries}
}

// matrixJSON is the persisted form: the index plus raw integer rows.
type matrixJSON struct {
	Competitors []string `json:"competitors"`
	Cells       [][]int  `json:"cells"`
}

// MarshalJSON encodes the matrix with its competitor index. Unjudged pairs
// are written as they are held, (0, 0), and read back by UnmarshalJSON.
func (m *ScoreMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(matrixJSON{Competitors: m.roster.IDs(), Cells: m.Rows()})
}

// UnmarshalJSON decodes and validates a persisted matrix.
func (m *ScoreMatrix) UnmarshalJSON(data []byte) error {
	var raw matrixJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	roster, err := NewRoster(raw.Competitors...)
	if err != nil {
		return err
	}
	decoded, err := MatrixFromRows(roster, raw.Cells)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}

// ConsensusMatrix is a square table of real-valued cells over a roster,
// produced by combining several score matrices. Negative values keep the
// sentinel meaning of the inputs.
type ConsensusMatrix struct {
	roster *Roster
	cells  []float64
}

// NewConsensusMatrix allocates a zeroed consensus matrix over roster.
func NewConsensusMatrix(roster *Roster) *ConsensusMatrix {
	n := roster.Len()
	return &ConsensusMatrix{roster: roster, cells: make([]float64, n*n)}
}

// Roster returns the competitor index of the matrix.
func (c *ConsensusMatrix) Roster() *Roster { return c.roster }

// Len returns the number of competitors on each axis.
func (c *ConsensusMatrix) Len() int { return c.roster.Len() }

// AtIndex returns the value at row i, column j.
func (c *ConsensusMatrix) AtIndex(i, j int) float64 { return c.cells[i*c.roster.Len()+j] }

// Set writes the value at row i, column j.
func (c *ConsensusMatrix) Set(i, j int, v float64) { c.cells[i*c.roster.Len()+j] = v }

// At returns the value of row vs col by competitor id.
func (c *ConsensusMatrix) At(row, col string) (float64, error) {
	i, ok := c.roster.Index(row)
	if !ok {
		return 0, NewMatrixError("at", row, col, ErrUnknownCompetitor)
	}
	j, ok := c.roster.Index(col)
	if !ok {
		return 0, NewMatrixError("at", row, col, ErrUnknownCompetitor)
	}
	return c.AtIndex(i, j), nil
}

// Rows returns the cells as float rows.
func (c *ConsensusMatrix) Rows() [][]float64 {
	n := c.roster.Len()
	rows := make([][]float64, n)
	for i := range n {
		rows[i] = make([]float64, n)
		copy(rows[i], c.cells[i*n:(i+1)*n])
	}
	return rows
}

// MarshalJSON encodes the matrix with its competitor index.
func (c *ConsensusMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Competitors []string    `json:"competitors"`
		Cells       [][]float64 `json:"cells"`
	}{Competitors: c.roster.IDs(), Cells: c.Rows()})
}
