package domain

import "fmt"

// Outcome is the integer code stored in a score matrix cell. It describes
// the result of "row vs column" from the perspective of the row competitor.
type Outcome int8

// Outcome codes. Only Win, Tie and Loss are valid comparison results; the
// negative codes are sentinels that are excluded from every score and
// error calculation.
const (
	// OutcomeUnparseable marks a comparison that was attempted but whose
	// judge response could not be resolved to a verdict.
	OutcomeUnparseable Outcome = -2
	// OutcomeDiagonal marks the undefined "competitor vs itself" cell.
	OutcomeDiagonal Outcome = -1
	// OutcomeLoss means the row competitor lost to the column competitor.
	OutcomeLoss Outcome = 0
	// OutcomeTie means the judge declared a draw.
	OutcomeTie Outcome = 1
	// OutcomeWin means the row competitor beat the column competitor.
	OutcomeWin Outcome = 2
)

// Valid reports whether o is a real comparison result (non-negative).
func (o Outcome) Valid() bool { return o >= OutcomeLoss }

// Known reports whether o is one of the five defined codes.
func (o Outcome) Known() bool { return o >= OutcomeUnparseable && o <= OutcomeWin }

// Mirror returns the code the opposite cell must hold. Win and Loss swap,
// every other code mirrors itself.
func (o Outcome) Mirror() Outcome {
	switch o {
	case OutcomeWin:
		return OutcomeLoss
	case OutcomeLoss:
		return OutcomeWin
	default:
		return o
	}
}

// String returns a short human-readable name for the code.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnparseable:
		return "unparseable"
	case OutcomeDiagonal:
		return "diagonal"
	case OutcomeLoss:
		return "loss"
	case OutcomeTie:
		return "tie"
	case OutcomeWin:
		return "win"
	default:
		return fmt.Sprintf("outcome(%d)", int8(o))
	}
}

// Verdict is the discrete result of a single pairwise judgment of an
// ordered (left, right) pair.
type Verdict int

// Supported verdicts. The zero value is VerdictUnparseable so an
// uninitialized verdict never counts as a real comparison.
const (
	VerdictUnparseable Verdict = iota
	VerdictLeftWins
	VerdictRightWins
	VerdictTie
)

// Outcomes returns the (left vs right, right vs left) cell codes encoded by
// the verdict. The pair is always complementary.
func (v Verdict) Outcomes() (left, right Outcome) {
	switch v {
	case VerdictLeftWins:
		return OutcomeWin, OutcomeLoss
	case VerdictRightWins:
		return OutcomeLoss, OutcomeWin
	case VerdictTie:
		return OutcomeTie, OutcomeTie
	default:
		return OutcomeUnparseable, OutcomeUnparseable
	}
}

// Swap returns the verdict as seen with left and right exchanged.
func (v Verdict) Swap() Verdict {
	switch v {
	case VerdictLeftWins:
		return VerdictRightWins
	case VerdictRightWins:
		return VerdictLeftWins
	default:
		return v
	}
}

// String returns the canonical upper-case verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictLeftWins:
		return "LEFT_WINS"
	case VerdictRightWins:
		return "RIGHT_WINS"
	case VerdictTie:
		return "TIE"
	default:
		return "UNPARSEABLE"
	}
}

// MarshalText encodes the verdict by name.
func (v Verdict) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText decodes a verdict name. Unknown names decode to
// VerdictUnparseable.
func (v *Verdict) UnmarshalText(b []byte) error {
	switch string(b) {
	case "LEFT_WINS":
		*v = VerdictLeftWins
	case "RIGHT_WINS":
		*v = VerdictRightWins
	case "TIE":
		*v = VerdictTie
	default:
		*v = VerdictUnparseable
	}
	return nil
}
