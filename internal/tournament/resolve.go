package tournament

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ahrav/go-tourney/internal/domain"
)

// Markers are the language-specific tokens a judge must start its reply
// with.
type Markers struct {
	Left  string `yaml:"left" json:"left" validate:"required"`
	Right string `yaml:"right" json:"right" validate:"required"`
	Tie   string `yaml:"tie" json:"tie" validate:"required"`
}

// Resolve maps a judge reply to a verdict. The reply is trimmed and then
// checked for a Left, Right or Tie prefix, in that order. Anything else,
// including a reply that opens with reasoning before the marker, is
// VerdictUnparseable. Empty markers never match.
func Resolve(response string, m Markers) domain.Verdict {
	s := strings.TrimSpace(response)
	switch {
	case hasMarker(s, m.Left):
		return domain.VerdictLeftWins
	case hasMarker(s, m.Right):
		return domain.VerdictRightWins
	case hasMarker(s, m.Tie):
		return domain.VerdictTie
	default:
		return domain.VerdictUnparseable
	}
}

func hasMarker(s, marker string) bool {
	return marker != "" && strings.HasPrefix(s, marker)
}

var reasoningOpen = regexp.MustCompile(`<(reasoning|analysis|think)>`)

// CleanResponse trims a model reply and strips <reasoning>, <analysis> and
// <think> blocks that some models emit before their answer. Blocks are
// removed in one left-to-right pass: each opening tag extends to the first
// closing tag of the same name, and an opening tag with no closing tag is
// kept.
func CleanResponse(response string) string {
	s := strings.TrimSpace(response)
	var b strings.Builder
	for {
		loc := reasoningOpen.FindStringSubmatchIndex(s)
		if loc == nil {
			b.WriteString(s)
			break
		}
		closing := "</" + s[loc[2]:loc[3]] + ">"
		end := strings.Index(s[loc[1]:], closing)
		if end < 0 {
			b.WriteString(s[:loc[1]])
			s = s[loc[1]:]
			continue
		}
		b.WriteString(s[:loc[0]])
		s = s[loc[1]+end+len(closing):]
	}
	return strings.TrimSpace(b.String())
}

// NearestMarker reports which marker the opening of an unparseable reply
// was closest to, and the edit distance. It is a diagnostic for logs and
// never changes a verdict.
func NearestMarker(response string, m Markers) (domain.Verdict, int) {
	s := strings.TrimSpace(response)
	best, bestDist := domain.VerdictUnparseable, -1

	for _, c := range []struct {
		v      domain.Verdict
		marker string
	}{
		{domain.VerdictLeftWins, m.Left},
		{domain.VerdictRightWins, m.Right},
		{domain.VerdictTie, m.Tie},
	} {
		if c.marker == "" {
			continue
		}
		d := levenshtein.ComputeDistance(head(s, len([]rune(c.marker))), c.marker)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c.v, d
		}
	}
	return best, bestDist
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
