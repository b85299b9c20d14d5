// ============================================================================
// rowplan CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra command tree for the row assignment editor
//
// Command Structure:
//   rowplan                        # Root command
//   ├── session                    # Interactive editing session
//   │   └── --script, -s           # Run commands from a file instead
//   ├── status                     # Resolved config + optimizer health
//   ├── --config, -c               # Config file (default configs/default.yaml)
//   ├── --version
//   └── --help
//
// Configuration:
//   YAML file loaded by internal/config before any command runs; the log
//   level from it configures the slog text handler on stderr.
//
// session Command:
//   1. Start tracing export (if an endpoint is configured)
//   2. Start the metrics server (if enabled)
//   3. Create and start the Controller
//   4. Read commands from the terminal or the script
//   5. Stop on quit, EOF, SIGINT or SIGTERM
//
//   Examples:
//     ./rowplan session
//     ./rowplan session -s plan.txt -c site.yaml
//
// status Command:
//   Prints the configuration and probes GET /health on the service.
//
// ============================================================================

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/rowplan/internal/artifact"
	"github.com/ChuLiYu/rowplan/internal/config"
	"github.com/ChuLiYu/rowplan/internal/controller"
	"github.com/ChuLiYu/rowplan/internal/metrics"
	"github.com/ChuLiYu/rowplan/internal/session"
	"github.com/ChuLiYu/rowplan/internal/telemetry"
	"github.com/ChuLiYu/rowplan/internal/workflow"
)

// Version is reported by --version and as the trace service version.
const Version = "1.0.0"

var (
	configFile string
	cfg        *config.Config
)

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rowplan",
		Short: "rowplan: blast-hole row assignment editor",
		Long: `rowplan groups uploaded blast holes into firing rows and asks an
optimization service for delay timings:
- rubber-band and click selection of holes
- per-row sequencing
- optimizer options with per-hole delays
- CSV (or XLSX) export of the chosen timing`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = loaded
			setupLogging(cmd.ErrOrStderr(), cfg.Log.Level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultPath, "config file path")

	rootCmd.AddCommand(buildSessionCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func setupLogging(w io.Writer, level string) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func buildSessionCommand() *cobra.Command {
	var script string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start an editing session",
		Long:  "Edit row assignments interactively, or run a command script with --script",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			in, prompt := cmd.InOrStdin(), true
			if script != "" {
				f, err := os.Open(script)
				if err != nil {
					return fmt.Errorf("failed to open script: %w", err)
				}
				defer f.Close()
				in, prompt = f, false
			}
			return runSession(ctx, cfg, in, cmd.OutOrStdout(), prompt)
		},
	}

	cmd.Flags().StringVarP(&script, "script", "s", "", "file with one session command per line")
	return cmd
}

func runSession(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, prompt bool) error {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SamplingRatio:  cfg.Tracing.SamplingRatio,
		ServiceName:    "rowplan",
		ServiceVersion: Version,
	})
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			slog.Warn("Trace flush failed", "error", err)
		}
	}()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		go func() {
			slog.Info("Starting metrics server", "port", cfg.Metrics.Port)
			if err := metrics.StartServer(ctx, cfg.Metrics.Port); err != nil {
				slog.Error("Metrics server error", "error", err)
			}
		}()
	}

	client := workflow.NewClient(cfg.Service.BaseURL, cfg.Service.Timeout)
	store := artifact.NewStore(cfg.Artifacts.Dir, cfg.Artifacts.Backup)

	ctrl := controller.New(controller.Config{
		Settings: session.Settings{
			Surface:      cfg.SurfaceGeometry(),
			MarkerRadius: cfg.Surface.MarkerRadius,
			Constraints:  cfg.ConstraintValues(),
		},
		RequestTimeout: cfg.Service.Timeout,
		RenderSVG:      cfg.Artifacts.SVG,
		RenderPNG:      cfg.Artifacts.PNG,
		ExportXLSX:     cfg.Artifacts.Format == config.FormatXLSX,
	}, client, store, collector)

	if err := ctrl.Start(); err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}
	defer ctrl.Stop()

	sh := NewShell(ctrl, client, store, out)
	if prompt {
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("rowplan %s, optimizer %s, artifacts in %s (help for commands)",
			Version, client.BaseURL(), store.Dir())))
	}

	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx, in, prompt) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		slog.Info("Received shutdown signal, stopping session")
		return nil
	}
}

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and optimizer health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
	return cmd
}

func showStatus(ctx context.Context, out io.Writer) error {
	fmt.Fprintln(out, headingStyle.Render("rowplan status"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  ├─ Config File:   %s\n", configFile)
	fmt.Fprintf(out, "  ├─ Optimizer:     %s (timeout %s)\n", cfg.Service.BaseURL, cfg.Service.Timeout)
	fmt.Fprintf(out, "  ├─ Surface:       %gx%g, inset %g, marker %g\n",
		cfg.Surface.Width, cfg.Surface.Height, cfg.Surface.Padding, cfg.Surface.MarkerRadius)
	fmt.Fprintf(out, "  ├─ Constraints:   hole-to-hole %g-%g ms, row-to-row %g-%g ms\n",
		cfg.Constraints.HoleToHoleMin, cfg.Constraints.HoleToHoleMax, cfg.Constraints.RowToRowMin, cfg.Constraints.RowToRowMax)
	fmt.Fprintf(out, "  └─ Artifacts:     %s (export %s, svg %t, png %t)\n",
		cfg.Artifacts.Dir, cfg.Artifacts.Format, cfg.Artifacts.SVG, cfg.Artifacts.PNG)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Metrics:")
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "  └─ Enabled on http://localhost:%d/metrics\n", cfg.Metrics.Port)
	} else {
		fmt.Fprintln(out, "  └─ Disabled")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Optimizer:")
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	health, err := workflow.NewClient(cfg.Service.BaseURL, cfg.Service.Timeout).Health(probeCtx)
	if err != nil {
		fmt.Fprintf(out, "  └─ %s\n", errorStyle.Render("unreachable: "+err.Error()))
		return nil
	}
	fmt.Fprintf(out, "  └─ %s\n", statusStyle.Render(health))
	return nil
}
