package domain

import (
	"maps"
	"slices"
	"time"
)

// Text is one input communication taken from the dataset.
type Text struct {
	// ID identifies the text across runs; matrices are persisted per ID.
	ID string `json:"id" yaml:"id" db:"id"`

	// Body is the communication to analyse.
	Body string `json:"text" yaml:"text" db:"text"`

	// Context is optional background supplied by the user (history of the
	// relationship, previous messages).
	Context string `json:"context,omitempty" yaml:"context,omitempty" db:"context"`

	// Language selects the prompt templates and verdict markers.
	Language string `json:"language" yaml:"language" db:"language"`
}

// Response is a competitor's cached answer to a text.
type Response struct {
	// Key is the cache key string the response was stored under.
	Key string `json:"key"`

	// Content is the cleaned model output.
	Content string `json:"content"`

	// TokensIn and TokensOut track the usage of the call that produced the
	// response. They are zero for cache hits.
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
}

// Judgment captures the trace of a single pairwise comparison. It is
// emitted to logs and spans; the matrix only keeps the verdict.
type Judgment struct {
	// TextID and JudgeID locate the matrix the judgment was recorded in.
	TextID  string `json:"text_id"`
	JudgeID string `json:"judge_id"`

	// Left and Right are the competitor ids in presentation order.
	Left  string `json:"left"`
	Right string `json:"right"`

	// Raw is the judge reply after cleaning.
	Raw string `json:"raw"`

	// Verdict is the resolved result.
	Verdict Verdict `json:"verdict"`

	// LatencyMs measures the judge call in milliseconds.
	LatencyMs int64 `json:"latency_ms"`

	// Timestamp records when the judgment was made.
	Timestamp time.Time `json:"timestamp"`
}

// Results maps text id to judge id to the matrix that judge produced for
// that text. Each matrix is owned by exactly one (text, judge) slot.
type Results map[string]map[string]*ScoreMatrix

// Put stores m under (textID, judgeID), replacing any previous matrix.
func (r Results) Put(textID, judgeID string, m *ScoreMatrix) {
	byJudge, ok := r[textID]
	if !ok {
		byJudge = make(map[string]*ScoreMatrix)
		r[textID] = byJudge
	}
	byJudge[judgeID] = m
}

// TextIDs returns the text ids in sorted order.
func (r Results) TextIDs() []string { return slices.Sorted(maps.Keys(r)) }

// JudgeIDs returns the judges that scored textID, sorted.
func (r Results) JudgeIDs(textID string) []string { return slices.Sorted(maps.Keys(r[textID])) }

// Matrices returns every matrix in the results, flattened in (text, judge)
// order.
func (r Results) Matrices() []*ScoreMatrix {
	var out []*ScoreMatrix
	for _, textID := range r.TextIDs() {
		for _, judgeID := range r.JudgeIDs(textID) {
			out = append(out, r[textID][judgeID])
		}
	}
	return out
}

// ForJudge returns the matrices scored by judgeID, in text order.
func (r Results) ForJudge(judgeID string) []*ScoreMatrix {
	var out []*ScoreMatrix
	for _, textID := range r.TextIDs() {
		if m, ok := r[textID][judgeID]; ok {
			out = append(out, m)
		}
	}
	return out
}
