package llm

import "math"

// Option keys understood by every provider. Anything else is passed to the
// provider as an extra option.
const (
	OptModel       = "model"
	OptSystem      = "system"
	OptTemperature = "temperature"
	OptTopP        = "top_p"
	OptMaxTokens   = "max_tokens"
)

// DefaultMaxTokens caps replies when the caller does not.
const DefaultMaxTokens = 4096

// RequestOptions is the provider-neutral view of an options map.
type RequestOptions struct {
	Model     string
	System    string
	MaxTokens int

	// Temperature and TopP are nil when the caller left them unset, so
	// models that reject sampling parameters never see them.
	Temperature *float64
	TopP        *float64

	Extra map[string]any
}

// ParseRequestOptions reads opts, falling back to defaultModel and
// DefaultMaxTokens. Out-of-range sampling values are dropped.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	ro := RequestOptions{
		Model:     defaultModel,
		MaxTokens: DefaultMaxTokens,
		Extra:     make(map[string]any),
	}

	for k, v := range opts {
		switch k {
		case OptModel:
			if s, ok := v.(string); ok && s != "" {
				ro.Model = s
			}
		case OptSystem:
			if s, ok := v.(string); ok {
				ro.System = s
			}
		case OptMaxTokens:
			if n, ok := toInt(v); ok && n > 0 {
				ro.MaxTokens = n
			}
		case OptTemperature:
			if f, ok := toFloat64(v); ok && f >= 0 && f <= 2 {
				ro.Temperature = &f
			}
		case OptTopP:
			if f, ok := toFloat64(v); ok && f >= 0 && f <= 1 {
				ro.TopP = &f
			}
		default:
			ro.Extra[k] = v
		}
	}
	return ro
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
