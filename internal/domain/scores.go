package domain

// ScoreEntry is one competitor's score in a ScoreTable.
type ScoreEntry struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ScoreTable is an ordered list of per-competitor scores. Order is
// meaningful: row-score tables follow roster order, rankings are sorted
// by descending score.
type ScoreTable struct {
	Entries []ScoreEntry `json:"entries"`
}

// Len returns the number of entries.
func (t ScoreTable) Len() int { return len(t.Entries) }

// Total returns the sum of all scores.
func (t ScoreTable) Total() float64 {
	var total float64
	for _, e := range t.Entries {
		total += e.Score
	}
	return total
}

// Get returns the score of id.
func (t ScoreTable) Get(id string) (float64, bool) {
	for _, e := range t.Entries {
		if e.ID == id {
			return e.Score, true
		}
	}
	return 0, false
}

// IDs returns the competitor ids in table order.
func (t ScoreTable) IDs() []string {
	ids := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		ids[i] = e.ID
	}
	return ids
}

// Scores returns the scores in table order.
func (t ScoreTable) Scores() []float64 {
	scores := make([]float64, len(t.Entries))
	for i, e := range t.Entries {
		scores[i] = e.Score
	}
	return scores
}

// RefereeError summarises how far one judge strays from the panel
// consensus across every text it scored.
type RefereeError struct {
	// JudgeID is the full name of the judging competitor.
	JudgeID string `json:"judge_id"`

	// SumMSE accumulates the per-text mean squared error against the
	// average consensus.
	SumMSE float64 `json:"sum_mse"`

	// SumMismatch accumulates the per-text count of cells that disagree
	// with the mode consensus.
	SumMismatch int `json:"sum_mismatch"`

	// MSERuns and MismatchRuns count the texts that contributed to each sum.
	MSERuns      int `json:"mse_runs"`
	MismatchRuns int `json:"mismatch_runs"`

	// MSE and Mismatch are the per-text means. They are zero when the judge
	// never had a comparable cell.
	MSE      float64 `json:"mse"`
	Mismatch float64 `json:"mismatch"`
}
