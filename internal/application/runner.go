package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-tourney/infrastructure/llm"
	"github.com/ahrav/go-tourney/infrastructure/metrics"
	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
	"github.com/ahrav/go-tourney/internal/tournament"
)

const tracerName = "github.com/ahrav/go-tourney/internal/application"

// ErrStaleMatrix is returned when a stored matrix was built for a different
// set of competitors than the current run.
var ErrStaleMatrix = errors.New("stored matrix has a different competitor set; clear the cache entry to re-judge")

// ClientSource hands out the client serving a competitor.
type ClientSource interface {
	Client(fullName string) (ports.LLMClient, error)
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Competitors []domain.Competitor
	Judges      []domain.Competitor
	Prompts     *Prompts
	Clients     ClientSource
	Store       ports.MatrixStore

	// Responses is optional; without it every competitor call hits the
	// model.
	Responses ports.ResponseCache

	// Metrics is optional.
	Metrics ports.MetricsCollector

	// Concurrency bounds competitor calls in flight per text. Values below
	// one mean one.
	Concurrency int

	// PositionSwap judges every pair in both orders and reconciles the two
	// verdicts, doubling judge calls.
	PositionSwap bool

	// OnJudgment, when set, receives every judgment as it is made. It is
	// called from the runner goroutine.
	OnJudgment func(domain.Judgment)

	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
}

// Runner judges every pair of competitors on every text with every judge
// and persists one matrix per (text, judge).
type Runner struct {
	cfg    RunnerConfig
	roster *domain.Roster
	tracer trace.Tracer
	sf     singleflight.Group
	now    func() time.Time
}

// NewRunner validates cfg and builds the shared roster.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	verr := domain.NewValidationError("runner")
	if len(cfg.Competitors) < 2 {
		verr.AddError("at least two competitors are required")
	}
	if len(cfg.Judges) == 0 {
		verr.AddError("at least one judge is required")
	}
	if cfg.Prompts == nil {
		verr.AddError("prompts are required")
	}
	if cfg.Clients == nil {
		verr.AddError("a client source is required")
	}
	if cfg.Store == nil {
		verr.AddError("a matrix store is required")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	roster, err := domain.RosterOf(cfg.Competitors)
	if err != nil {
		return nil, fmt.Errorf("building roster: %w", err)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	cfg.Concurrency = max(cfg.Concurrency, 1)

	return &Runner{cfg: cfg, roster: roster, tracer: tracer, now: time.Now}, nil
}

// Roster returns the competitor index shared by every matrix of the run.
func (r *Runner) Roster() *domain.Roster { return r.roster }

// Run processes texts in id order and returns one matrix per (text, judge).
// Stored matrices are reused whole. A competitor call failure aborts the
// run before the affected matrix is stored, so rerunning resumes from the
// first missing matrix. A judge call failure is recorded as an
// unparseable verdict.
func (r *Runner) Run(ctx context.Context, texts []domain.Text) (domain.Results, error) {
	ctx, span := r.tracer.Start(ctx, "tournament.run",
		trace.WithAttributes(
			attribute.Int("tournament.texts", len(texts)),
			attribute.Int("tournament.competitors", r.roster.Len()),
			attribute.Int("tournament.judges", len(r.cfg.Judges)),
		))
	defer span.End()

	sorted := slices.Clone(texts)
	slices.SortStableFunc(sorted, func(a, b domain.Text) int { return cmp.Compare(a.ID, b.ID) })

	results := make(domain.Results)
	for done, text := range sorted {
		if err := r.runText(ctx, text, results); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("text %s: %w", text.ID, err)
		}
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.RecordGauge(metrics.TextsDone, float64(done+1), nil)
		}
	}
	return results, nil
}

func (r *Runner) runText(ctx context.Context, text domain.Text, results domain.Results) error {
	ctx, span := r.tracer.Start(ctx, "tournament.text", trace.WithAttributes(attribute.String("text.id", text.ID)))
	defer span.End()

	// Responses are fetched at most once per text, and only when some judge
	// has no stored matrix.
	responses := sync.OnceValues(func() (map[string]string, error) {
		return r.responses(ctx, text)
	})

	for _, judge := range r.cfg.Judges {
		m, err := r.matrixFor(ctx, text, judge, responses)
		if err != nil {
			return fmt.Errorf("judge %s: %w", judge.FullName(), err)
		}
		results.Put(text.ID, judge.FullName(), m)
	}
	return nil
}

func (r *Runner) matrixFor(ctx context.Context, text domain.Text, judge domain.Competitor, responses func() (map[string]string, error)) (*domain.ScoreMatrix, error) {
	judgeID := judge.FullName()
	log := clog.FromContext(ctx).With("text", text.ID, "judge", judgeID)

	if m, ok, err := r.load(ctx, text.ID, judgeID); err != nil || ok {
		if ok {
			log.Debugf("reusing stored matrix")
			r.count(metrics.Matrices, map[string]string{"source": "stored"})
		}
		return m, err
	}

	unlock, err := r.cfg.Store.Lock(ctx, text.ID, judgeID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warnf("releasing matrix lock: %v", err)
		}
	}()

	// Another process may have finished the matrix while we waited.
	if m, ok, err := r.load(ctx, text.ID, judgeID); err != nil || ok {
		if ok {
			log.Infof("matrix stored by another process")
			r.count(metrics.Matrices, map[string]string{"source": "stored"})
		}
		return m, err
	}

	answers, err := responses()
	if err != nil {
		return nil, err
	}

	log.Infof("referee %s judging %d competitors", judgeID, r.roster.Len())
	start := r.now()
	m, err := r.judge(ctx, text, judge, answers)
	if err != nil {
		return nil, err
	}
	if err := r.cfg.Store.Save(ctx, text.ID, judgeID, m); err != nil {
		return nil, err
	}

	r.count(metrics.Matrices, map[string]string{"source": "computed"})
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordLatency("judge_text", r.now().Sub(start), map[string]string{"judge": judgeID})
	}
	return m, nil
}

// load returns a stored matrix re-indexed onto the run's roster.
func (r *Runner) load(ctx context.Context, textID, judgeID string) (*domain.ScoreMatrix, bool, error) {
	m, ok, err := r.cfg.Store.Load(ctx, textID, judgeID)
	if err != nil || !ok {
		return nil, false, err
	}
	if m.Roster().Equal(r.roster) {
		return m, true, nil
	}
	if !m.Roster().SameMembers(r.roster) {
		return nil, false, fmt.Errorf("matrix for text %s judge %s: %w", textID, judgeID, ErrStaleMatrix)
	}
	aligned, err := m.Align(r.roster)
	if err != nil {
		return nil, false, err
	}
	return aligned, true, nil
}

// judge fills a fresh matrix by comparing every unordered pair once, the
// lower-indexed competitor always on the left.
func (r *Runner) judge(ctx context.Context, text domain.Text, judge domain.Competitor, answers map[string]string) (*domain.ScoreMatrix, error) {
	client, err := r.cfg.Clients.Client(judge.FullName())
	if err != nil {
		return nil, err
	}
	markers, err := r.cfg.Prompts.Markers(text.Language)
	if err != nil {
		return nil, err
	}

	m := domain.NewScoreMatrix(r.roster)
	n := len(r.cfg.Competitors)
	for i := range n {
		for j := i + 1; j < n; j++ {
			left, right := r.cfg.Competitors[i].FullName(), r.cfg.Competitors[j].FullName()
			v, err := r.pair(ctx, client, text, judge, markers, left, right, answers)
			if err != nil {
				return nil, err
			}
			if err := m.Record(left, right, v); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// pair returns the verdict for (left, right), judging the swapped order as
// well when PositionSwap is set.
func (r *Runner) pair(
	ctx context.Context,
	client ports.LLMClient,
	text domain.Text,
	judge domain.Competitor,
	markers tournament.Markers,
	left, right string,
	answers map[string]string,
) (domain.Verdict, error) {
	ctx, span := r.tracer.Start(ctx, "tournament.pair", trace.WithAttributes(
		attribute.String("pair.left", left),
		attribute.String("pair.right", right),
		attribute.String("judge.id", judge.FullName()),
		attribute.Bool("pair.position_swap", r.cfg.PositionSwap),
	))
	defer span.End()

	first, err := r.compare(ctx, client, text, judge, markers, left, right, answers)
	if err != nil || !r.cfg.PositionSwap {
		span.SetAttributes(attribute.String("pair.verdict", first.String()))
		return first, err
	}

	swapped, err := r.compare(ctx, client, text, judge, markers, right, left, answers)
	if err != nil {
		return domain.VerdictUnparseable, err
	}
	v := tournament.ReconcileSwapped(first, swapped)
	if v == domain.VerdictTie && first != domain.VerdictTie {
		span.AddEvent("position_bias", trace.WithAttributes(
			attribute.String("verdict.first", first.String()),
			attribute.String("verdict.swapped", swapped.String()),
		))
	}
	span.SetAttributes(attribute.String("pair.verdict", v.String()))
	return v, nil
}

// compare asks the judge for one verdict. Only context errors are
// returned; any other failure becomes an unparseable verdict.
func (r *Runner) compare(
	ctx context.Context,
	client ports.LLMClient,
	text domain.Text,
	judge domain.Competitor,
	markers tournament.Markers,
	left, right string,
	answers map[string]string,
) (domain.Verdict, error) {
	judgeID := judge.FullName()
	log := clog.FromContext(ctx).With("text", text.ID, "judge", judgeID)
	log.Infof("%s vs %s", left, right)

	system, prompt, err := r.cfg.Prompts.Comparison(text, answers[left], answers[right])
	if err != nil {
		return domain.VerdictUnparseable, err
	}

	opts := llm.RequestOptionsFor(judge)
	opts[llm.OptSystem] = system
	if !judge.HasTag(domain.TagNoTemperature) {
		opts[llm.OptTemperature] = 0.0
		opts[llm.OptTopP] = 1.0
	}

	if n, err := client.EstimateTokens(system + prompt); err == nil {
		trace.SpanFromContext(ctx).AddEvent("judge.request",
			trace.WithAttributes(attribute.Int("prompt.tokens_estimate", n)))
	}

	start := r.now()
	raw, err := client.Complete(ctx, prompt, opts)
	latency := r.now().Sub(start)

	verdict := domain.VerdictUnparseable
	switch {
	case err != nil && ctx.Err() != nil:
		return verdict, ctx.Err()
	case err != nil:
		log.Warnf("judge call failed for %s vs %s, recording unparseable: %v", left, right, err)
	default:
		log.Debugf("judge response: %s", raw)
		verdict = tournament.Resolve(tournament.CleanResponse(raw), markers)
		if verdict == domain.VerdictUnparseable {
			nearest, dist := tournament.NearestMarker(tournament.CleanResponse(raw), markers)
			log.Warnf("unparseable verdict for %s vs %s (closest to %s at distance %d)", left, right, nearest, dist)
		}
	}

	r.count(metrics.Judgments, map[string]string{"judge": judgeID, "verdict": verdict.String()})
	if r.cfg.OnJudgment != nil {
		r.cfg.OnJudgment(domain.Judgment{
			TextID:    text.ID,
			JudgeID:   judgeID,
			Left:      left,
			Right:     right,
			Raw:       raw,
			Verdict:   verdict,
			LatencyMs: latency.Milliseconds(),
			Timestamp: start,
		})
	}
	return verdict, nil
}

// responses collects every competitor's cleaned analysis of text,
// concurrently and through the response cache.
func (r *Runner) responses(ctx context.Context, text domain.Text) (map[string]string, error) {
	system, prompt, err := r.cfg.Prompts.Analyzer(text)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string]string, len(r.cfg.Competitors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, c := range r.cfg.Competitors {
		g.Go(func() error {
			content, err := r.respond(gctx, text, c, system, prompt)
			if err != nil {
				return fmt.Errorf("competitor %s: %w", c.FullName(), err)
			}
			mu.Lock()
			out[c.FullName()] = content
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// respond returns c's cleaned analysis. Concurrent requests for the same
// cache key share one model call.
func (r *Runner) respond(ctx context.Context, text domain.Text, c domain.Competitor, system, prompt string) (string, error) {
	key := tournament.NewCacheKey(text.Body, text.Context, c).String()
	log := clog.FromContext(ctx).With("text", text.ID, "competitor", c.FullName())

	v, err, _ := r.sf.Do(key, func() (any, error) {
		if r.cfg.Responses != nil {
			cached, ok, err := r.cfg.Responses.Get(ctx, key)
			if err != nil {
				log.Warnf("response cache read failed, calling model: %v", err)
			} else if ok {
				log.Debugf("response cache hit")
				r.count(metrics.CacheLookups, map[string]string{"result": "hit"})
				return cached, nil
			}
			r.count(metrics.CacheLookups, map[string]string{"result": "miss"})
		}

		client, err := r.cfg.Clients.Client(c.FullName())
		if err != nil {
			return nil, err
		}
		opts := llm.RequestOptionsFor(c)
		opts[llm.OptSystem] = system

		raw, err := client.Complete(ctx, prompt, opts)
		if err != nil {
			return nil, err
		}
		if r.cfg.Responses != nil {
			if err := r.cfg.Responses.Put(ctx, key, raw); err != nil {
				log.Warnf("response cache write failed: %v", err)
			}
		}
		return raw, nil
	})
	if err != nil {
		return "", err
	}
	return tournament.CleanResponse(v.(string)), nil
}

func (r *Runner) count(metric string, labels map[string]string) {
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordCounter(metric, 1, labels)
	}
}
