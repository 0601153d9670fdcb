package tournament

import "github.com/ahrav/go-tourney/internal/domain"

// ReconcileSwapped combines the verdict for (left, right) with the verdict
// the same judge gave for (right, left). Agreeing verdicts stand. When
// only one of the two parsed, it stands alone. Any other disagreement means
// the judge followed position rather than content and becomes a tie.
func ReconcileSwapped(first, swapped domain.Verdict) domain.Verdict {
	second := swapped.Swap()
	switch {
	case first == second:
		return first
	case first == domain.VerdictUnparseable:
		return second
	case second == domain.VerdictUnparseable:
		return first
	default:
		return domain.VerdictTie
	}
}
