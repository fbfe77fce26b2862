// Package main is the CLI entry point for inputguard.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/inputguard/internal/classifier"
	"github.com/eliteGoblin/focusd/inputguard/internal/config"
	"github.com/eliteGoblin/focusd/inputguard/internal/daemon"
	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/infra"
	"github.com/eliteGoblin/focusd/inputguard/internal/metrics"
	"github.com/eliteGoblin/focusd/inputguard/internal/policy"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "inputguard",
	Short: "Real-time content moderation for typed input",
	Long: `inputguard watches text as it is typed, classifies it, and when a
policy violation is found it logs the activity, shows a warning overlay
and clears the offending input.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the moderation pipeline",
	Long: `Runs the pipeline over a stream of host events in JSON lines format,
read from --events (a file, or - for stdin). The pipeline stops when the
stream ends or on SIGINT/SIGTERM.`,
	RunE: runRun,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline status",
	RunE:  runStatus,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Classify text with the local classifier",
	Long:  `Runs the gate and the local classifier over text and prints the verdict.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath  string
	eventsPath  string
	metricsAddr string
	detach      bool
	appID       string
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "~/.inputguard/config.yaml", "Config file")

	runCmd.Flags().StringVar(&eventsPath, "events", "-", "Event stream (JSON lines); - reads stdin")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	runCmd.Flags().BoolVar(&detach, "detach", false, "Run in the background")
	classifyCmd.Flags().StringVar(&appID, "app", "com.example.chat", "App package the text came from")
	classifyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newLogCmd())
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if detach {
		if eventsPath == "-" {
			return fmt.Errorf("--detach needs an --events file")
		}
		childArgs := []string{"run", "--config", configPath, "--events", eventsPath}
		if metricsAddr != "" {
			childArgs = append(childArgs, "--metrics-addr", metricsAddr)
		}
		if err := daemon.StartDetached(nil, childArgs...); err != nil {
			return fmt.Errorf("failed to start in background: %w", err)
		}
		fmt.Println("inputguard started in the background")
		fmt.Printf("Log: %s\n", cfg.Log.Path)
		return nil
	}

	logger := createLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	var input io.Reader = os.Stdin
	if eventsPath != "-" {
		f, err := os.Open(config.ExpandHome(eventsPath))
		if err != nil {
			return fmt.Errorf("failed to open events: %w", err)
		}
		defer f.Close()
		input = f
	}

	m := metrics.New(Version, Commit)
	window := infra.NewMemWindow(nil)
	clock := infra.NewSystemClock()

	svc, err := daemon.Build(cfg, daemon.Deps{
		Window:  window,
		Clock:   clock,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if addr := firstNonEmpty(metricsAddr, cfg.Metrics.Addr); addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(m), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", zap.String("addr", addr))
	}

	events := make(chan domain.InputEvent, 64)
	source := infra.NewReplaySource(input, window, clock, logger.Named("source"))
	go func() {
		if err := source.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event source failed", zap.Error(err))
		}
	}()

	if err := svc.Run(ctx, events); err != nil {
		if errors.Is(err, infra.ErrAlreadyRunning) {
			return fmt.Errorf("inputguard is already running (lock: %s)", cfg.Host.LockFile)
		}
		return err
	}

	fmt.Printf("Detected activities: %d\n", svc.Store().Count())
	return nil
}

func metricsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}

// savedAtReporter is implemented by backends that know their last write.
type savedAtReporter interface {
	LastSaved() (time.Time, error)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lock := infra.NewLockFile(cfg.Host.LockFile)
	pm := infra.NewProcessManager()
	pid := lock.HolderPID()

	fmt.Println("=== inputguard Status ===")
	if pid > 0 && pm.IsRunning(pid) {
		fmt.Printf("Pipeline: RUNNING (PID %d)\n", pid)
	} else {
		fmt.Println("Pipeline: STOPPED")
	}

	if cfg.Host.ObserverProcess != "" {
		host := infra.NewProcessHostMonitor(pm, cfg.Host.ObserverProcess, cfg.Host.RestartCommand, nil, zap.NewNop())
		if host.IsObserving() {
			fmt.Printf("Host observer: %s (running)\n", cfg.Host.ObserverProcess)
		} else {
			fmt.Printf("Host observer: %s (NOT running)\n", cfg.Host.ObserverProcess)
		}
	}

	store, backend, err := daemon.OpenStore(cfg.Store, zap.NewNop())
	if err != nil {
		fmt.Printf("Activity log: unavailable (%v)\n", err)
		return nil
	}
	defer backend.Close()
	fmt.Printf("Activity log: %s (%d entries)\n", backend.Location(), store.Count())
	if b, ok := backend.(savedAtReporter); ok {
		if at, err := b.LastSaved(); err == nil && !at.IsZero() {
			fmt.Printf("Last saved: %s\n", at.Format(time.RFC3339))
		}
	}

	registry := policy.NewRegistry(policy.Options{
		MinLength:        cfg.Detection.MinLength,
		BrowserMinLength: cfg.Detection.BrowserMinLength,
		BrowserMarkers:   cfg.Detection.BrowserMarkers,
	})
	fmt.Println("Origin profiles:")
	for _, p := range registry.GetAll() {
		fmt.Printf("  - %s (min length %d)\n", p.Name(), p.MinTextLength())
	}
	fmt.Println("=========================")
	return nil
}

type classifyOutput struct {
	Text        string   `json:"text"`
	App         string   `json:"app"`
	Gate        string   `json:"gate"`
	Violation   bool     `json:"violation"`
	Category    string   `json:"category"`
	Confidence  float64  `json:"confidence"`
	Reason      string   `json:"reason"`
	Suggestions []string `json:"suggestions,omitempty"`
	Actionable  bool     `json:"actionable"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	registry := policy.NewRegistry(policy.Options{
		MinLength:        cfg.Detection.MinLength,
		BrowserMinLength: cfg.Detection.BrowserMinLength,
		BrowserMarkers:   cfg.Detection.BrowserMarkers,
	})
	gate := policy.NewGate(registry, cfg.Detection.MaxLength)

	v, err := classifier.NewHeuristic().Classify(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	out := classifyOutput{
		Text:        text,
		App:         appID,
		Gate:        "accept",
		Violation:   v.IsViolation,
		Category:    string(v.Category),
		Confidence:  v.Confidence,
		Reason:      v.Reason,
		Suggestions: v.Suggestions,
		Actionable:  v.IsViolation && v.Confidence > cfg.Detection.ConfidenceThreshold,
	}
	if reason := gate.Check(text, appID, ""); reason != policy.Accept {
		out.Gate = string(reason)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Gate:       %s\n", out.Gate)
	fmt.Printf("Category:   %s\n", out.Category)
	fmt.Printf("Confidence: %.2f\n", out.Confidence)
	fmt.Printf("Reason:     %s\n", out.Reason)
	for _, s := range out.Suggestions {
		fmt.Printf("  - %s\n", s)
	}
	if out.Actionable {
		fmt.Println("Verdict:    VIOLATION")
	} else {
		fmt.Println("Verdict:    OK")
	}
	return nil
}

// createLogger creates a production logger that writes to the configured file.
func createLogger(cfg config.LogConfig) *zap.Logger {
	zc := zap.NewProductionConfig()
	if cfg.Path != "" {
		zc.OutputPaths = []string{cfg.Path}
		zc.ErrorOutputPaths = []string{cfg.Path}
	}
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("inputguard %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
