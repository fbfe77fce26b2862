package daemon

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/classifier"
	"github.com/eliteGoblin/focusd/inputguard/internal/config"
	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
	"github.com/eliteGoblin/focusd/inputguard/internal/infra"
	"github.com/eliteGoblin/focusd/inputguard/internal/metrics"
	"github.com/eliteGoblin/focusd/inputguard/internal/nodetree"
	"github.com/eliteGoblin/focusd/inputguard/internal/overlay"
	"github.com/eliteGoblin/focusd/inputguard/internal/policy"
	"github.com/eliteGoblin/focusd/inputguard/internal/usecase"
)

// Deps are the host-facing collaborators of a pipeline. Nil fields get the
// built-in implementation.
type Deps struct {
	Classifier domain.Classifier     // default: classifier.Heuristic
	Surface    domain.OverlaySurface // default: infra.LogSurface
	Window     domain.WindowSource   // default: empty infra.MemWindow
	Host       domain.HostMonitor    // default: infra.ProcessHostMonitor
	KeepAlive  domain.KeepAlive      // default: infra.LockFile at cfg.Host.LockFile
	Backend    domain.ActivityBackend
	Clock      domain.Clock // default: infra.SystemClock
	Logger     *zap.Logger
	Metrics    *metrics.Metrics // may be nil
}

// OpenBackend opens the activity log backend selected by cfg.
func OpenBackend(cfg config.StoreConfig) (domain.ActivityBackend, error) {
	switch cfg.Backend {
	case config.BackendEncrypted:
		var keys domain.KeyProvider = infra.NewFileKeyProvider(cfg.DataDir)
		if cfg.KeyEnv != "" {
			keys = infra.NewEnvKeyProvider(cfg.KeyEnv)
		}
		key, err := infra.EnsureKey(keys)
		if err != nil {
			return nil, err
		}
		backend, err := infra.NewEncryptedBackend(cfg.DataDir, key)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.BackendFile, "":
		return infra.NewFileBackend(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// OpenStore opens the backend and loads the activity log from it.
// The caller closes the returned backend.
func OpenStore(cfg config.StoreConfig, logger *zap.Logger) (*infra.ActivityLog, domain.ActivityBackend, error) {
	backend, err := OpenBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := infra.NewActivityLog(backend, cfg.Capacity, logger)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	return store, backend, nil
}

// Build wires a pipeline from cfg. It is the only place components are
// constructed; nothing in the pipeline reaches for globals.
func Build(cfg *config.Config, deps Deps) (*Service, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = infra.NewSystemClock()
	}
	m := deps.Metrics

	det := cfg.Detection
	registry := policy.NewRegistry(policy.Options{
		MinLength:        det.MinLength,
		BrowserMinLength: det.BrowserMinLength,
		BrowserMarkers:   det.BrowserMarkers,
		AppNames:         det.AppNames,
	})
	gate := policy.NewGate(registry, det.MaxLength)
	cooldown := usecase.NewController(clock)

	backend := deps.Backend
	if backend == nil {
		var err error
		backend, err = OpenBackend(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to open activity backend: %w", err)
		}
	}
	store, err := infra.NewActivityLog(backend, cfg.Store.Capacity, logger.Named("store"))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	m.SetActivities(store.Count())

	window := deps.Window
	if window == nil {
		window = infra.NewMemWindow(nil)
	}
	surface := deps.Surface
	if surface == nil {
		surface = infra.NewLogSurface(logger.Named("surface"))
	}
	cls := deps.Classifier
	if cls == nil {
		cls = classifier.NewHeuristic()
	}

	ov := cfg.Overlay
	machine := overlay.NewMachine(overlay.Config{
		Cooldown:         ov.Cooldown,
		EnterDuration:    ov.EnterDuration,
		DisplayDuration:  ov.DisplayDuration,
		ExitDuration:     ov.ExitDuration,
		ProgressInterval: ov.ProgressInterval,
	}, surface, clock, logger.Named("overlay"), m)

	rem := cfg.Remediation
	sweep := nodetree.Limits{MaxDepth: rem.SweepDepth, MaxFanout: rem.SweepFanout, MaxNodes: rem.SweepBudget}
	chain := infra.NewClearChain(infra.ClearOptions{
		AncestorDepth: rem.AncestorDepth,
		Sweep:         sweep,
		BrowserSettle: rem.BrowserSettle,
	}, window, registry, clock, logger.Named("clear"), m)

	dispatcher := usecase.NewDispatcher(usecase.DispatcherConfig{
		ConfidenceThreshold: det.ConfidenceThreshold,
		GracePeriod:         det.GracePeriod,
	}, cls, store, machine, chain, registry, cooldown, clock, logger.Named("dispatch"), m)

	routerCfg := usecase.DefaultRouterConfig()
	routerCfg.WindowStateDelay = det.WindowStateDelay
	routerCfg.BrowserRescanDelay = det.BrowserSettleDelay
	routerCfg.Scan = sweep
	router := usecase.NewRouter(routerCfg, gate, registry, cooldown, dispatcher, window, clock, logger.Named("router"), m)

	host := deps.Host
	if host == nil {
		host = infra.NewProcessHostMonitor(infra.NewProcessManager(),
			cfg.Host.ObserverProcess, cfg.Host.RestartCommand, nil, logger.Named("host"))
	}
	keepAlive := deps.KeepAlive
	if keepAlive == nil && cfg.Host.LockFile != "" {
		keepAlive = infra.NewLockFile(cfg.Host.LockFile)
	}

	health := NewHealthWatchdog(HealthConfig{
		Interval:        det.HealthInterval,
		InFlightTimeout: det.InFlightTimeout,
		InactivityReset: det.InactivityReset,
	}, cooldown, clock, logger.Named("health"), m)
	liveness := NewLivenessWatchdog(LivenessConfig{
		Interval: det.LivenessInterval,
	}, cooldown, host, clock, logger.Named("liveness"), m)

	logger.Info("pipeline built",
		zap.String("store", backend.Location()),
		zap.Int("activities", store.Count()),
		zap.Int("strategies", len(chain.GetStrategies())))

	return &Service{
		router:     router,
		dispatcher: dispatcher,
		cooldown:   cooldown,
		overlay:    machine,
		health:     health,
		liveness:   liveness,
		keepAlive:  keepAlive,
		store:      store,
		backend:    backend,
		logger:     logger,
		metrics:    m,
	}, nil
}

// StartDetached re-executes the current binary with args in a new session.
// The child has no stdio and outlives the caller.
func StartDetached(runner infra.CommandRunner, args ...string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if runner == nil {
		runner = infra.DetachedRunner{}
	}
	return runner.Start(executable, args...)
}
