package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tourney/infrastructure/llm"
	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
)

// Env holds the process-level settings read from TOURNEY_* variables.
// Values that are set override the tournament file.
type Env struct {
	CacheDir    string  `env:"TOURNEY_CACHE_DIR"`
	ResponsesDB string  `env:"TOURNEY_RESPONSES_DB"`
	LogLevel    string  `env:"TOURNEY_LOG_LEVEL,default=info"`
	LogFormat   string  `env:"TOURNEY_LOG_FORMAT,default=text"`
	Secret      string  `env:"TOURNEY_SECRET"`
	MetricsAddr string  `env:"TOURNEY_METRICS_ADDR"`
	Concurrency int     `env:"TOURNEY_CONCURRENCY"`
	ModeSeed    *uint64 `env:"TOURNEY_MODE_SEED,noinit"`
}

// LoadEnv loads .env from the working directory when present and then
// processes the environment. lookuper may be nil to read the OS
// environment.
func LoadEnv(ctx context.Context, lookuper envconfig.Lookuper) (*Env, error) {
	if lookuper == nil {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
		lookuper = envconfig.OsLookuper()
	}

	var env Env
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &env, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	return &env, nil
}

// Apply overlays the set environment values onto cfg.
func (e *Env) Apply(cfg *TournamentConfig) {
	if e.CacheDir != "" {
		cfg.Cache.Dir = e.CacheDir
	}
	if e.ResponsesDB != "" {
		cfg.Cache.ResponsesDB = e.ResponsesDB
	}
	if e.Concurrency > 0 {
		cfg.LLM.Concurrency = e.Concurrency
	}
	if e.ModeSeed != nil {
		cfg.Aggregation.ModeSeed = *e.ModeSeed
	}
}

// ConfigLoader parses and validates tournament files.
type ConfigLoader struct {
	validator *validator.Validate
	engines   map[string]llm.EngineConfig
}

// NewConfigLoader returns a loader that accepts the given engines. A nil
// table means llm.DefaultEngines.
func NewConfigLoader(engines map[string]llm.EngineConfig) (*ConfigLoader, error) {
	v := validator.New()
	if err := RegisterTournamentValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	if engines == nil {
		engines = llm.DefaultEngines
	}
	return &ConfigLoader{validator: v, engines: engines}, nil
}

// LoadFromFile reads, decodes and validates the tournament file at path.
func (cl *ConfigLoader) LoadFromFile(path string) (*TournamentConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.NewConfigError(path, fmt.Errorf("%w: %w", ports.ErrConfigNotFound, err))
	}
	if err != nil {
		return nil, ports.NewConfigError(path, fmt.Errorf("failed to read file: %w", err))
	}
	return cl.load(data)
}

// LoadFromReader decodes and validates a tournament file from r.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (*TournamentConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.load(data)
}

// Validate checks a configuration that was built or modified in code, for
// example after Env.Apply.
func (cl *ConfigLoader) Validate(cfg *TournamentConfig) error {
	if err := cl.validator.Struct(cfg); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := cl.validateSemantics(cfg); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

func (cl *ConfigLoader) load(data []byte) (*TournamentConfig, error) {
	cfg, err := parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cl.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// parseYAML decodes strictly so a misspelled key fails instead of being
// silently ignored.
func parseYAML(data []byte) (*TournamentConfig, error) {
	cfg := DefaultTournamentConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &cfg, nil
}

// validateSemantics covers the rules struct tags cannot express:
// uniqueness, judge references, engine availability and marker clashes.
func (cl *ConfigLoader) validateSemantics(cfg *TournamentConfig) error {
	verr := domain.NewValidationError("tournament")

	competitors := cfg.CompetitorList()
	seen := make(map[string]struct{}, len(competitors))
	for _, c := range competitors {
		name := c.FullName()
		if _, dup := seen[name]; dup {
			verr.AddError(fmt.Sprintf("duplicate competitor %q", name))
		}
		seen[name] = struct{}{}

		if _, ok := cl.engines[c.Engine]; !ok {
			verr.AddError(fmt.Sprintf("competitor %q uses unknown engine %q", name, c.Engine))
		}
	}

	judges := make(map[string]struct{}, len(cfg.Judges))
	for _, ref := range cfg.Judges {
		judge, ok := resolveJudge(competitors, ref)
		if !ok {
			verr.AddError(fmt.Sprintf("judge %q does not name exactly one competitor", ref))
			continue
		}
		if _, dup := judges[judge.FullName()]; dup {
			verr.AddError(fmt.Sprintf("judge %q is listed twice", judge.FullName()))
		}
		judges[judge.FullName()] = struct{}{}
	}

	for lang, m := range cfg.Languages {
		if strings.HasPrefix(m.Right, m.Left) {
			verr.AddError(fmt.Sprintf("language %q: right marker starts with the left marker and can never match", lang))
		}
		if strings.HasPrefix(m.Tie, m.Left) || strings.HasPrefix(m.Tie, m.Right) {
			verr.AddError(fmt.Sprintf("language %q: tie marker starts with another marker and can never match", lang))
		}
	}

	if cfg.LLM.RateLimit > 0 && cfg.LLM.Burst < 1 {
		verr.AddError("llm.burst must be at least 1 when llm.rate_limit is set")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
