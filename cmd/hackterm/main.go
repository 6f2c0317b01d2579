package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/wtfshenei/hacking-minigame/internal/config"
	"github.com/wtfshenei/hacking-minigame/internal/logging"
	"github.com/wtfshenei/hacking-minigame/internal/store"
	"github.com/wtfshenei/hacking-minigame/internal/telemetry"
	"go.opentelemetry.io/otel"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	a := newApp(os.Stdin, os.Stdout)
	defer a.close()

	cmd := newRootCommand(ctx, a)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if a.logger != nil {
			a.logger.Error("command failed", "error", err)
		}
		return err
	}

	return nil
}

// app carries what every subcommand needs once the runtime config is loaded.
type app struct {
	stdin  io.Reader
	stdout io.Writer

	configPath string
	dataDir    string

	cfg     *config.Config
	runID   string
	runtime *logging.RuntimeLogger
	logger  *log.Logger

	shutdownTelemetry func()
}

func newApp(stdin io.Reader, stdout io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout}
}

func newRootCommand(ctx context.Context, a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "hackterm",
		Short:         "Hacking terminal prop for live games",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlay(cmd.Context(), a)
		},
	}

	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "extra runtime config file applied last")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory holding settings.json and commands.json")
	root.AddCommand(
		newPlayCommand(a),
		newAdminCommand(a),
		newShuffleCommand(a),
		newCheckCommand(a),
		newBackupCommand(a),
	)

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		if a == nil {
			return errors.New("app is required")
		}
		if err := a.setup(cmd.Context()); err != nil {
			return err
		}
		a.logger.With("command", cmd.Name()).Debug("command invocation")
		return nil
	}

	_ = ctx
	return root
}

// setup loads the runtime config, opens the run log and starts tracing.
func (a *app) setup(ctx context.Context) error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load(ctx, a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dir := strings.TrimSpace(a.dataDir); dir != "" {
		abs, absErr := filepath.Abs(dir)
		if absErr != nil {
			return fmt.Errorf("resolve data dir: %w", absErr)
		}
		cfg.DataDir = abs
	}

	a.runID = uuid.NewString()
	runtime, err := logging.New(ctx,
		logging.WithRunID(a.runID),
		logging.WithDir(cfg.LogDir),
		logging.WithLevel(cfg.LogLevel),
		logging.WithMaxFiles(cfg.LogMaxFiles),
	)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	shutdown, err := telemetry.Init(ctx,
		telemetry.WithEndpoint(cfg.OTelEndpoint),
		telemetry.WithFallbackWriter(runtime.Writer()),
	)
	if err != nil {
		runtime.Logger.Warn("tracing disabled", "error", err)
		shutdown = func() {}
	}

	a.cfg = cfg
	a.runtime = runtime
	a.logger = runtime.Logger
	a.shutdownTelemetry = shutdown
	a.logger.Info("runtime config loaded",
		"sources", cfg.Sources,
		"data_dir", cfg.DataDir,
		"watch_files", cfg.WatchFiles,
	)
	return nil
}

// traced starts the root span of a command and tags the run log with it.
func (a *app) traced(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := otel.Tracer("hackterm/cli").Start(ctx, "hackterm."+name)
	if spanContext := span.SpanContext(); spanContext.IsValid() && a.runtime != nil {
		a.runtime.WithTraceID(spanContext.TraceID().String()).WithSpanID(spanContext.SpanID().String())
		a.logger = a.runtime.Logger
	}
	return ctx, func() { span.End() }
}

func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.cfg.SettingsPath(), a.cfg.CommandsPath())
	if err != nil {
		return nil, fmt.Errorf("load game data: %w", err)
	}
	return st, nil
}

func (a *app) close() {
	if a == nil {
		return
	}
	if a.shutdownTelemetry != nil {
		a.shutdownTelemetry()
	}
	if a.runtime != nil {
		if closeErr := a.runtime.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close logger: %v\n", closeErr)
		}
	}
}
