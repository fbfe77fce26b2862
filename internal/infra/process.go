// Package infra implements infrastructure concerns: persistence, host
// process checks, node clearing and the replay host.
package infra

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// ErrNoRestartCommand is returned when a restart is requested but none is configured.
var ErrNoRestartCommand = errors.New("no restart command configured")

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// FindByName returns PIDs of processes matching the pattern (case-insensitive).
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var found []int
	patternLower := strings.ToLower(pattern)
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		if strings.Contains(strings.ToLower(name), patternLower) {
			found = append(found, int(p.Pid))
		}
	}
	return found, nil
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}

func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// CommandRunner starts a command without waiting for it.
type CommandRunner interface {
	Start(name string, args ...string) error
}

// DetachedRunner starts commands in their own session with no stdio.
type DetachedRunner struct{}

func (DetachedRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Start()
}

// ProcessHostMonitor implements domain.HostMonitor by looking for the
// host observer process. With no observer configured the host is
// in-process and always considered observing.
type ProcessHostMonitor struct {
	pm             domain.ProcessManager
	observer       string
	restartCommand []string
	runner         CommandRunner
	logger         *zap.Logger
}

// NewProcessHostMonitor creates a monitor for the named observer process.
func NewProcessHostMonitor(pm domain.ProcessManager, observer string, restartCommand []string, runner CommandRunner, logger *zap.Logger) *ProcessHostMonitor {
	if runner == nil {
		runner = DetachedRunner{}
	}
	return &ProcessHostMonitor{
		pm:             pm,
		observer:       observer,
		restartCommand: restartCommand,
		runner:         runner,
		logger:         logger,
	}
}

// IsObserving reports whether an observer process other than this one runs.
func (m *ProcessHostMonitor) IsObserving() bool {
	if m.observer == "" {
		return true
	}
	pids, err := m.pm.FindByName(m.observer)
	if err != nil {
		m.logger.Warn("failed to list processes", zap.Error(err))
		// Can't tell; don't trigger a restart on a listing failure.
		return true
	}
	self := m.pm.GetCurrentPID()
	for _, pid := range pids {
		if pid != self && m.pm.IsRunning(pid) {
			return true
		}
	}
	return false
}

// RequestRestart launches the configured restart command detached.
func (m *ProcessHostMonitor) RequestRestart() error {
	if len(m.restartCommand) == 0 {
		return ErrNoRestartCommand
	}
	if err := m.runner.Start(m.restartCommand[0], m.restartCommand[1:]...); err != nil {
		return fmt.Errorf("failed to start %s: %w", m.restartCommand[0], err)
	}
	m.logger.Info("requested host restart", zap.Strings("command", m.restartCommand))
	return nil
}

var (
	_ domain.ProcessManager = (*ProcessManagerImpl)(nil)
	_ domain.HostMonitor    = (*ProcessHostMonitor)(nil)
	_ CommandRunner         = DetachedRunner{}
)
