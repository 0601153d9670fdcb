package tournament

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/ahrav/go-tourney/internal/domain"
)

// RefereeErrors measures each judge against the panel consensus.
//
// For every text the judges' matrices are combined into an average and a
// mode consensus. A judge's MSE for that text is the mean squared
// difference to the average over cells valid in both; its mismatch is the
// number of cells differing from the mode, again over cells valid in both.
// A judge with no comparable cell for a text contributes nothing for it.
// Per-text values are summed across texts and divided by the number of
// contributing texts.
//
// Texts and judges are visited in sorted order so rng is consumed
// deterministically. The result is sorted by judge id.
func RefereeErrors(results domain.Results, rng *rand.Rand) ([]domain.RefereeError, error) {
	if rng == nil {
		return nil, ErrNilRand
	}

	byJudge := make(map[string]*domain.RefereeError)
	for _, textID := range results.TextIDs() {
		judges := results.JudgeIDs(textID)
		if len(judges) == 0 {
			continue
		}

		matrices := make([]*domain.ScoreMatrix, len(judges))
		for i, judgeID := range judges {
			matrices[i] = results[textID][judgeID]
		}

		average, err := Average(matrices)
		if err != nil {
			return nil, fmt.Errorf("text %s: average consensus: %w", textID, err)
		}
		mode, err := Mode(matrices, rng)
		if err != nil {
			return nil, fmt.Errorf("text %s: mode consensus: %w", textID, err)
		}

		for i, judgeID := range judges {
			re, ok := byJudge[judgeID]
			if !ok {
				re = &domain.RefereeError{JudgeID: judgeID}
				byJudge[judgeID] = re
			}

			if mse, ok := meanSquaredError(matrices[i], average); ok {
				re.SumMSE += mse
				re.MSERuns++
			}
			if diff, ok := mismatches(matrices[i], mode); ok {
				re.SumMismatch += diff
				re.MismatchRuns++
			}
		}
	}

	out := make([]domain.RefereeError, 0, len(byJudge))
	for _, re := range byJudge {
		if re.MSERuns > 0 {
			re.MSE = re.SumMSE / float64(re.MSERuns)
		}
		if re.MismatchRuns > 0 {
			re.Mismatch = float64(re.SumMismatch) / float64(re.MismatchRuns)
		}
		out = append(out, *re)
	}
	slices.SortFunc(out, func(a, b domain.RefereeError) int {
		return cmp.Compare(a.JudgeID, b.JudgeID)
	})
	return out, nil
}

// meanSquaredError compares m with the consensus over cells valid in both.
// ok is false when no cell qualifies.
func meanSquaredError(m *domain.ScoreMatrix, consensus *domain.ConsensusMatrix) (float64, bool) {
	n := m.Len()
	var sum float64
	count := 0
	for i := range n {
		for j := range n {
			c, ref := m.AtIndex(i, j), consensus.AtIndex(i, j)
			if !c.Valid() || ref < 0 {
				continue
			}
			d := float64(c) - ref
			sum += d * d
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// mismatches counts the cells where m differs from the consensus, over
// cells valid in both. ok is false when no cell qualifies.
func mismatches(m *domain.ScoreMatrix, consensus *domain.ConsensusMatrix) (int, bool) {
	n := m.Len()
	diff, count := 0, 0
	for i := range n {
		for j := range n {
			c, ref := m.AtIndex(i, j), consensus.AtIndex(i, j)
			if !c.Valid() || ref < 0 {
				continue
			}
			count++
			if float64(c) != ref {
				diff++
			}
		}
	}
	return diff, count > 0
}
