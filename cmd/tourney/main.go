// Command tourney runs pairwise LLM tournaments over a text dataset and
// reports rankings, consensus matrices and referee error.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ahrav/go-tourney/internal/application"
)

type rootOptions struct {
	configPath   string
	format       string
	otlpEndpoint string
	env          *application.Env
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	var shutdown func(context.Context) error

	root := &cobra.Command{
		Use:           "tourney",
		Short:         "Pairwise LLM tournaments for psychological abuse detection",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := application.LoadEnv(cmd.Context(), nil)
			if err != nil {
				return err
			}
			opts.env = env

			logger, err := newLogger(env.LogLevel, env.LogFormat)
			if err != nil {
				return err
			}
			ctx := clog.WithLogger(cmd.Context(), logger)

			shutdown, err = setupTracing(ctx, opts.otlpEndpoint)
			if err != nil {
				return err
			}
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "tournament.yaml", "tournament configuration file")
	root.PersistentFlags().StringVar(&opts.format, "format", "table", "report format: table or json")
	root.PersistentFlags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP endpoint for traces (host:port); tracing is local only when empty")

	root.AddCommand(newRunCommand(opts), newReportCommand(opts), newTextIDCommand(opts))
	return root
}

func newLogger(level, format string) (*clog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	hopts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, hopts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, hopts)
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
	return clog.New(handler), nil
}

// setupTracing installs a global tracer provider. Spans are exported only
// when an endpoint is given.
func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	var popts []sdktrace.TracerProviderOption
	if endpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
		popts = append(popts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(popts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
