package tournament

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"
)

// DefaultFenceK is Tukey's conventional fence multiplier.
const DefaultFenceK = 1.5

// ErrNoValues is returned when fences are requested for an empty series.
var ErrNoValues = errors.New("no values to compute fences for")

// Fences are the closed interval outside of which a value is an outlier.
type Fences struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies within the fences.
func (f Fences) Contains(v float64) bool { return v >= f.Lower && v <= f.Upper }

// TukeyFences computes Q1 - k*IQR and Q3 + k*IQR. Quartiles are Tukey
// hinges (medians of the lower and upper halves). A single value has
// zero spread and fences on itself.
func TukeyFences(values []float64, k float64) (Fences, error) {
	switch len(values) {
	case 0:
		return Fences{}, ErrNoValues
	case 1:
		v := values[0]
		return Fences{Q1: v, Q3: v, Lower: v, Upper: v}, nil
	}

	q, err := stats.Quartile(stats.Float64Data(values))
	if err != nil {
		return Fences{}, fmt.Errorf("computing quartiles: %w", err)
	}

	iqr := q.Q3 - q.Q1
	return Fences{
		Q1:    q.Q1,
		Q3:    q.Q3,
		Lower: q.Q1 - k*iqr,
		Upper: q.Q3 + k*iqr,
	}, nil
}

// Outliers flags every value outside its series' Tukey fences. An empty
// series yields no flags.
func Outliers(values []float64, k float64) ([]bool, error) {
	if len(values) == 0 {
		return nil, nil
	}

	f, err := TukeyFences(values, k)
	if err != nil {
		return nil, err
	}

	flags := make([]bool, len(values))
	for i, v := range values {
		flags[i] = !f.Contains(v)
	}
	return flags, nil
}
