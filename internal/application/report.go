package application

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/tournament"
)

// Report is the aggregate view over a set of stored matrices.
type Report struct {
	Texts       int      `json:"texts"`
	Judges      []string `json:"judges"`
	Competitors []string `json:"competitors"`

	// Sum, Average and Mode combine every matrix of every text and judge.
	Sum     *domain.ConsensusMatrix `json:"sum"`
	Average *domain.ConsensusMatrix `json:"average"`
	Mode    *domain.ConsensusMatrix `json:"mode"`

	// Ranking is the normalised total of every matrix's row scores.
	Ranking domain.ScoreTable `json:"ranking"`

	// JudgeRankings ranks competitors by one judge's matrices only. A judge
	// whose verdicts were all unparseable has no entry.
	JudgeRankings map[string]domain.ScoreTable `json:"judge_rankings"`

	RefereeErrors []domain.RefereeError `json:"referee_errors"`

	MSEFences        tournament.Fences `json:"mse_fences"`
	MismatchFences   tournament.Fences `json:"mismatch_fences"`
	MSEOutliers      []string          `json:"mse_outliers"`
	MismatchOutliers []string          `json:"mismatch_outliers"`
}

// BuildReport aggregates results. When roster is nil the first matrix's
// roster is used; every matrix is re-indexed onto it and a matrix over a
// different competitor set is an error.
func BuildReport(results domain.Results, roster *domain.Roster, cfg AggregationConfig) (*Report, error) {
	all := results.Matrices()
	if len(all) == 0 {
		return nil, tournament.ErrNoMatrices
	}
	if roster == nil {
		roster = all[0].Roster()
	}

	aligned, err := alignResults(results, roster)
	if err != nil {
		return nil, err
	}
	matrices := aligned.Matrices()

	rng := rand.New(rand.NewPCG(cfg.ModeSeed, cfg.ModeSeed))

	r := &Report{
		Texts:         len(aligned.TextIDs()),
		Competitors:   roster.IDs(),
		JudgeRankings: make(map[string]domain.ScoreTable),
	}

	if r.Sum, err = tournament.Sum(matrices); err != nil {
		return nil, fmt.Errorf("sum consensus: %w", err)
	}
	if r.Average, err = tournament.Average(matrices); err != nil {
		return nil, fmt.Errorf("average consensus: %w", err)
	}
	if r.Mode, err = tournament.Mode(matrices, rng); err != nil {
		return nil, fmt.Errorf("mode consensus: %w", err)
	}

	if r.Ranking, err = tournament.Rank(aligned, cfg.Normalize); err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}

	judges := make(map[string]struct{})
	for _, textID := range aligned.TextIDs() {
		for _, judgeID := range aligned.JudgeIDs(textID) {
			judges[judgeID] = struct{}{}
		}
	}
	for judgeID := range judges {
		r.Judges = append(r.Judges, judgeID)
	}
	slices.Sort(r.Judges)

	for _, judgeID := range r.Judges {
		forJudge := aligned.ForJudge(judgeID)
		tables := make([]domain.ScoreTable, len(forJudge))
		for i, m := range forJudge {
			tables[i] = m.RowScores()
		}
		ranking, err := tournament.Normalize(tournament.ScoresMany(tables), cfg.Normalize)
		if errors.Is(err, tournament.ErrZeroSum) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ranking for judge %s: %w", judgeID, err)
		}
		r.JudgeRankings[judgeID] = ranking
	}

	if r.RefereeErrors, err = tournament.RefereeErrors(aligned, rng); err != nil {
		return nil, fmt.Errorf("referee errors: %w", err)
	}
	if err := r.flagOutliers(cfg.OutlierK); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Report) flagOutliers(k float64) error {
	if len(r.RefereeErrors) == 0 {
		return nil
	}

	mse := make([]float64, len(r.RefereeErrors))
	mismatch := make([]float64, len(r.RefereeErrors))
	for i, re := range r.RefereeErrors {
		mse[i], mismatch[i] = re.MSE, re.Mismatch
	}

	var err error
	if r.MSEFences, err = tournament.TukeyFences(mse, k); err != nil {
		return fmt.Errorf("mse fences: %w", err)
	}
	if r.MismatchFences, err = tournament.TukeyFences(mismatch, k); err != nil {
		return fmt.Errorf("mismatch fences: %w", err)
	}
	for i, re := range r.RefereeErrors {
		if !r.MSEFences.Contains(mse[i]) {
			r.MSEOutliers = append(r.MSEOutliers, re.JudgeID)
		}
		if !r.MismatchFences.Contains(mismatch[i]) {
			r.MismatchOutliers = append(r.MismatchOutliers, re.JudgeID)
		}
	}
	return nil
}

// FilterJudges keeps only the matrices of the given judges. An empty list
// keeps everything.
func FilterJudges(results domain.Results, judges []string) domain.Results {
	if len(judges) == 0 {
		return results
	}
	keep := make(map[string]struct{}, len(judges))
	for _, j := range judges {
		keep[j] = struct{}{}
	}

	out := make(domain.Results)
	for textID, byJudge := range results {
		for judgeID, m := range byJudge {
			if _, ok := keep[judgeID]; ok {
				out.Put(textID, judgeID, m)
			}
		}
	}
	return out
}

func alignResults(results domain.Results, roster *domain.Roster) (domain.Results, error) {
	out := make(domain.Results, len(results))
	for textID, byJudge := range results {
		for judgeID, m := range byJudge {
			if m.Roster().Equal(roster) {
				out.Put(textID, judgeID, m)
				continue
			}
			a, err := m.Align(roster)
			if err != nil {
				return nil, fmt.Errorf("matrix for text %s judge %s: %w", textID, judgeID, ErrStaleMatrix)
			}
			out.Put(textID, judgeID, a)
		}
	}
	return out, nil
}
