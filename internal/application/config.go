// Package application loads tournament configuration, renders prompts,
// runs tournaments against model clients and builds reports.
package application

import (
	"path/filepath"
	"time"

	"github.com/ahrav/go-tourney/infrastructure/llm"
	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/tournament"
)

// TournamentConfig is the complete description of a tournament run and the
// primary configuration entry point. It is decoded from YAML on top of
// DefaultTournamentConfig, so omitted sections keep their defaults.
type TournamentConfig struct {
	// Version is the schema version in X.Y.Z form.
	Version string `yaml:"version" validate:"required,semver"`

	Metadata Metadata `yaml:"metadata" validate:"required"`

	// Competitors are the models whose analyses are compared. Every
	// unordered pair of competitors is judged once per text and judge.
	Competitors []CompetitorConfig `yaml:"competitors" validate:"required,min=2,dive"`

	// Judges references competitors by full name (engine/id) or by bare id
	// when that id is unambiguous. Empty means every competitor judges.
	Judges []string `yaml:"judges" validate:"omitempty,dive,required"`

	// Severity selects the analyzer system prompt.
	Severity Severity `yaml:"severity" validate:"omitempty,severity"`

	// Languages overrides the built-in verdict markers per language code.
	Languages map[string]tournament.Markers `yaml:"languages" validate:"omitempty,dive"`

	Judging     JudgingConfig     `yaml:"judging"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Cache       CacheConfig       `yaml:"cache"`
	LLM         LLMConfig         `yaml:"llm"`
}

// Metadata describes a tournament for reports and logs.
type Metadata struct {
	Name        string `yaml:"name" validate:"required,min=1,max=255"`
	Description string `yaml:"description" validate:"max=1000"`
}

// CompetitorConfig declares one competitor.
type CompetitorConfig struct {
	// ID must be unique within its engine.
	ID string `yaml:"id" validate:"required,min=1,max=100,excludesall=/"`

	// Label is shown in reports instead of the full name.
	Label string `yaml:"label" validate:"max=100"`

	// Engine names the serving provider, for example openai or ollama.
	Engine string `yaml:"engine" validate:"required,engine"`

	// Model defaults to ID.
	Model string `yaml:"model"`

	// Params are forwarded to the provider on every call. The keys
	// model, base_url and api_key_env configure the client instead.
	Params map[string]any `yaml:"params"`

	Tags []string `yaml:"tags" validate:"omitempty,dive,required"`
}

// JudgingConfig controls how judges are asked.
type JudgingConfig struct {
	// PositionSwap judges each pair in both orders and turns disagreeing
	// verdicts into ties.
	PositionSwap bool `yaml:"position_swap"`
}

// AggregationConfig controls how stored matrices are turned into a report.
type AggregationConfig struct {
	// ModeSeed seeds the tie-breaking draws of mode aggregation.
	ModeSeed uint64 `yaml:"mode_seed"`

	Normalize tournament.NormalizeConfig `yaml:"normalize"`

	// OutlierK is the Tukey fence multiplier.
	OutlierK float64 `yaml:"outlier_k" validate:"gt=0"`
}

// CacheConfig locates the matrix store and the response cache.
type CacheConfig struct {
	Dir string `yaml:"dir" validate:"required"`

	// ResponsesDB defaults to responses.db inside Dir.
	ResponsesDB string `yaml:"responses_db"`
}

// LLMConfig holds the client middleware settings shared by every
// competitor.
type LLMConfig struct {
	Timeout            time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxRetries         int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay" validate:"gte=0"`
	RetryMaxDelay      time.Duration `yaml:"retry_max_delay" validate:"gte=0"`
	RateLimit          float64       `yaml:"rate_limit" validate:"gte=0"`
	Burst              int           `yaml:"burst" validate:"gte=0"`
	CircuitMaxFailures int           `yaml:"circuit_max_failures" validate:"gte=0"`
	CircuitCooldown    time.Duration `yaml:"circuit_cooldown" validate:"gte=0"`

	// Concurrency bounds the competitor calls in flight for one text.
	Concurrency int `yaml:"concurrency" validate:"gte=1,lte=64"`
}

// DefaultTournamentConfig returns the defaults every loaded file starts
// from.
func DefaultTournamentConfig() TournamentConfig {
	pool := llm.DefaultPoolConfig()
	return TournamentConfig{
		Severity: DefaultSeverity,
		Aggregation: AggregationConfig{
			Normalize: tournament.DefaultNormalizeConfig(),
			OutlierK:  tournament.DefaultFenceK,
		},
		Cache: CacheConfig{Dir: ".tourney"},
		LLM: LLMConfig{
			Timeout:            pool.Timeout,
			MaxRetries:         pool.MaxRetries,
			RetryBaseDelay:     pool.RetryBaseDelay,
			RetryMaxDelay:      pool.RetryMaxDelay,
			RateLimit:          pool.RateLimit,
			Burst:              pool.Burst,
			CircuitMaxFailures: pool.CircuitMaxFailures,
			CircuitCooldown:    pool.CircuitCooldown,
			Concurrency:        4,
		},
	}
}

// Domain converts the competitor declaration.
func (c CompetitorConfig) Domain() domain.Competitor {
	model := c.Model
	if model == "" {
		model = c.ID
	}
	return domain.Competitor{
		ID:     c.ID,
		Label:  c.Label,
		Engine: c.Engine,
		Model:  model,
		Params: c.Params,
		Tags:   c.Tags,
	}
}

// CompetitorList returns the competitors in declaration order.
func (c *TournamentConfig) CompetitorList() []domain.Competitor {
	out := make([]domain.Competitor, len(c.Competitors))
	for i, cc := range c.Competitors {
		out[i] = cc.Domain()
	}
	return out
}

// JudgeList resolves Judges against the competitors. It assumes the
// configuration has passed validation.
func (c *TournamentConfig) JudgeList() []domain.Competitor {
	competitors := c.CompetitorList()
	if len(c.Judges) == 0 {
		return competitors
	}

	out := make([]domain.Competitor, 0, len(c.Judges))
	for _, ref := range c.Judges {
		if judge, ok := resolveJudge(competitors, ref); ok {
			out = append(out, judge)
		}
	}
	return out
}

// ResponsesPath returns the response cache location.
func (c *TournamentConfig) ResponsesPath() string {
	if c.Cache.ResponsesDB != "" {
		return c.Cache.ResponsesDB
	}
	return filepath.Join(c.Cache.Dir, "responses.db")
}

// MatricesDir returns the directory holding stored matrices.
func (c *TournamentConfig) MatricesDir() string {
	return filepath.Join(c.Cache.Dir, "matrices")
}

// PoolConfig maps the LLM section onto client pool settings.
func (c *TournamentConfig) PoolConfig() llm.PoolConfig {
	cfg := llm.DefaultPoolConfig()
	cfg.Timeout = c.LLM.Timeout
	cfg.MaxRetries = c.LLM.MaxRetries
	cfg.RetryBaseDelay = c.LLM.RetryBaseDelay
	cfg.RetryMaxDelay = c.LLM.RetryMaxDelay
	cfg.RateLimit = c.LLM.RateLimit
	cfg.Burst = c.LLM.Burst
	cfg.CircuitMaxFailures = c.LLM.CircuitMaxFailures
	cfg.CircuitCooldown = c.LLM.CircuitCooldown
	return cfg
}

// resolveJudge finds ref by full name first and then by bare id. A bare
// id shared by several engines does not resolve.
func resolveJudge(competitors []domain.Competitor, ref string) (domain.Competitor, bool) {
	for _, c := range competitors {
		if c.FullName() == ref {
			return c, true
		}
	}

	var found domain.Competitor
	matches := 0
	for _, c := range competitors {
		if c.ID == ref {
			found = c
			matches++
		}
	}
	return found, matches == 1
}
