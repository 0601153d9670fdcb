package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-tourney/infrastructure/llm"
	"github.com/ahrav/go-tourney/infrastructure/metrics"
	"github.com/ahrav/go-tourney/infrastructure/report"
	"github.com/ahrav/go-tourney/infrastructure/store"
	"github.com/ahrav/go-tourney/internal/application"
	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
	"github.com/ahrav/go-tourney/internal/tournament"
)

type runOptions struct {
	textsPath     string
	dbPath        string
	language      string
	ids           []string
	limit         int
	metricsAddr   string
	judgmentsPath string
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Judge every competitor pair on every text, then print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTournament(cmd.Context(), root, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.textsPath, "texts", "", "YAML file of texts (id, text, context, language)")
	f.StringVar(&opts.dbPath, "db", "", "SQLite dataset with a communications table")
	f.StringVar(&opts.language, "language", "", "only texts in this language")
	f.StringSliceVar(&opts.ids, "ids", nil, "only these text ids")
	f.IntVar(&opts.limit, "limit", 0, "at most this many texts (0 = all)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	f.StringVar(&opts.judgmentsPath, "judgments", "", "append every judgment as a JSON line to this file")
	cmd.MarkFlagsMutuallyExclusive("texts", "db")
	cmd.MarkFlagsOneRequired("texts", "db")
	return cmd
}

func newReportCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Aggregate stored matrices without calling any model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			matrices, err := store.NewMatrixStore(cfg.MatricesDir())
			if err != nil {
				return err
			}
			results, err := matrices.LoadAll(ctx)
			if err != nil {
				return err
			}

			judges := make([]string, 0, len(cfg.JudgeList()))
			for _, j := range cfg.JudgeList() {
				judges = append(judges, j.FullName())
			}
			results = application.FilterJudges(results, judges)

			roster, err := domain.RosterOf(cfg.CompetitorList())
			if err != nil {
				return err
			}
			return writeReport(root, cfg, results, roster, cmd.OutOrStdout())
		},
	}
}

func newTextIDCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "text-id <text>",
		Short: "Print the deterministic id of a text (secret from TOURNEY_SECRET)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if root.env.Secret == "" {
				return errors.New("TOURNEY_SECRET must be set")
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), tournament.TextID(strings.Join(args, " "), root.env.Secret))
			return err
		},
	}
}

func loadConfig(root *rootOptions) (*application.TournamentConfig, error) {
	loader, err := application.NewConfigLoader(nil)
	if err != nil {
		return nil, err
	}
	cfg, err := loader.LoadFromFile(root.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", root.configPath, err)
	}
	root.env.Apply(cfg)
	if err := loader.Validate(cfg); err != nil {
		return nil, fmt.Errorf("after environment overrides: %w", err)
	}
	return cfg, nil
}

func runTournament(ctx context.Context, root *rootOptions, opts *runOptions, out io.Writer) error {
	log := clog.FromContext(ctx)
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	collector := metrics.NewPrometheusMetrics()
	addr := opts.metricsAddr
	if addr == "" {
		addr = root.env.MetricsAddr
	}
	if addr != "" {
		stop, err := serveMetrics(ctx, addr, collector)
		if err != nil {
			return err
		}
		defer stop()
	}

	poolCfg := cfg.PoolConfig()
	poolCfg.Collector = collector
	pool, err := llm.BuildPool(cfg.CompetitorList(), poolCfg)
	if err != nil {
		return err
	}
	log.Debugf("model clients: %s", strings.Join(pool.Names(), ", "))

	matrices, err := store.NewMatrixStore(cfg.MatricesDir())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.ResponsesPath()), 0o755); err != nil {
		return fmt.Errorf("creating response cache dir: %w", err)
	}
	responses, err := store.OpenResponseCache(ctx, cfg.ResponsesPath())
	if err != nil {
		return err
	}
	defer responses.Close()

	prompts, err := application.NewPrompts(cfg.Severity, cfg.Languages)
	if err != nil {
		return err
	}

	texts, err := textSource(opts).Texts(ctx)
	if err != nil {
		return err
	}
	log.Infof("tournament %s: %d texts, %d competitors, %d judges",
		cfg.Metadata.Name, len(texts), len(cfg.Competitors), len(cfg.JudgeList()))

	onJudgment, closeJudgments, err := judgmentLog(ctx, opts.judgmentsPath)
	if err != nil {
		return err
	}
	defer closeJudgments()

	runner, err := application.NewRunner(application.RunnerConfig{
		Competitors:  cfg.CompetitorList(),
		Judges:       cfg.JudgeList(),
		Prompts:      prompts,
		Clients:      pool,
		Store:        matrices,
		Responses:    responses,
		Metrics:      collector,
		Concurrency:  cfg.LLM.Concurrency,
		PositionSwap: cfg.Judging.PositionSwap,
		OnJudgment:   onJudgment,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	results, err := runner.Run(ctx, texts)
	if err != nil {
		return err
	}
	collector.RecordLatency("tournament", time.Since(start), nil)

	return writeReport(root, cfg, results, runner.Roster(), out)
}

func textSource(opts *runOptions) ports.TextSource {
	filter := store.TextFilter{Language: opts.language, IDs: opts.ids, Limit: opts.limit}
	if opts.dbPath != "" {
		return store.NewSQLiteTexts(opts.dbPath, filter)
	}
	return store.NewYAMLTexts(opts.textsPath, filter)
}

func writeReport(root *rootOptions, cfg *application.TournamentConfig, results domain.Results, roster *domain.Roster, out io.Writer) error {
	format, err := report.ParseFormat(root.format)
	if err != nil {
		return err
	}
	rep, err := application.BuildReport(results, roster, cfg.Aggregation)
	if err != nil {
		return err
	}

	labels := make(map[string]string, len(cfg.Competitors))
	for _, c := range cfg.CompetitorList() {
		labels[c.FullName()] = c.DisplayLabel()
	}
	return report.Writer{Format: format, Labels: labels}.Write(out, rep)
}

func serveMetrics(ctx context.Context, addr string, collector *metrics.PrometheusMetrics) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ports.NewMetricsError("/metrics", "listen "+addr, err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			clog.FromContext(ctx).Errorf("metrics server: %v", err)
		}
	}()
	clog.FromContext(ctx).Infof("serving metrics on %s/metrics", ln.Addr())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}

// judgmentLog returns a callback appending judgments as JSON lines. With
// an empty path the callback is nil.
func judgmentLog(ctx context.Context, path string) (func(domain.Judgment), func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening judgment log: %w", err)
	}
	enc := json.NewEncoder(f)
	write := func(j domain.Judgment) {
		if err := enc.Encode(j); err != nil {
			clog.FromContext(ctx).Warnf("writing judgment log: %v", err)
		}
	}
	closeLog := func() {
		if err := f.Close(); err != nil {
			clog.FromContext(ctx).Warnf("closing judgment log: %v", err)
		}
	}
	return write, closeLog, nil
}
