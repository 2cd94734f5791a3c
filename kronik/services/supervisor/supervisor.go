package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"kronik/kronik/utils/logging"
	waitutil "kronik/kronik/utils/wait"

	"go.uber.org/zap"
)

var (
	ErrEmulatorNotRunning = errors.New("no running emulator found, start the emulator first when using --skip-device")
	ErrAppiumNotRunning   = errors.New("no running appium server found, start appium first when using --skip-device")
	ErrBootTimeout        = errors.New("did not become ready within the boot timeout")
)

const (
	pollInterval = time.Second
	stopGrace    = 10 * time.Second
)

// Process is a started child process.
type Process interface {
	Stop() error
}

// Launcher starts a long-running command.
type Launcher func(name string, args ...string) (Process, error)

// Runner runs a short command to completion and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// StatusChecker reports whether the Appium server answers /status.
type StatusChecker interface {
	Status(ctx context.Context) (bool, error)
}

type Config struct {
	EmulatorName string
	AppiumPort   int
	BootTimeout  time.Duration
}

// Supervisor starts, checks and stops the emulator and the Appium server.
type Supervisor struct {
	cfg      Config
	appium   StatusChecker
	launch   Launcher
	run      Runner
	log      *zap.Logger
	emulator Process
	server   Process
}

func New(cfg Config, appium StatusChecker) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		appium: appium,
		launch: execLauncher,
		run:    execRunner,
		log:    logging.Named("device"),
	}
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan error
}

func execLauncher(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	p := &execProcess{cmd: cmd, done: make(chan error, 1)}
	go func() { p.done <- cmd.Wait() }()
	return p, nil
}

// Stop interrupts the process and kills it when it outlives the grace period.
func (p *execProcess) Stop() error {
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		return p.cmd.Process.Kill()
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(stopGrace):
		return p.cmd.Process.Kill()
	}
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	err := cmd.Run()
	return stdout.Bytes(), err
}

// EmulatorBooted reports whether adb sees a fully booted device.
func (s *Supervisor) EmulatorBooted(ctx context.Context) bool {
	out, err := s.run(ctx, "adb", "shell", "getprop", "sys.boot_completed")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "1"
}

// AppiumReady reports whether the Appium server answers.
func (s *Supervisor) AppiumReady(ctx context.Context) bool {
	statusCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ready, err := s.appium.Status(statusCtx)
	return err == nil && ready
}

// CheckRunning verifies an already running emulator and Appium server.
func (s *Supervisor) CheckRunning(ctx context.Context) error {
	if !s.EmulatorBooted(ctx) {
		return ErrEmulatorNotRunning
	}
	s.log.Info("found running emulator")
	if !s.AppiumReady(ctx) {
		return ErrAppiumNotRunning
	}
	s.log.Info("found running appium server")
	return nil
}

// Start boots the emulator and then the Appium server, waiting for each to
// become ready. A component that never becomes ready is stopped.
func (s *Supervisor) Start(ctx context.Context) error {
	s.log.Info("starting android emulator", zap.String("avd", s.cfg.EmulatorName))
	emulator, err := s.startAndWait(ctx, "emulator", s.EmulatorBooted, "emulator", "-avd", s.cfg.EmulatorName)
	if err != nil {
		return err
	}
	s.emulator = emulator

	s.log.Info("starting appium server", zap.Int("port", s.cfg.AppiumPort))
	server, err := s.startAndWait(ctx, "appium server", s.AppiumReady, "appium", "--port", fmt.Sprint(s.cfg.AppiumPort))
	if err != nil {
		return err
	}
	s.server = server
	return nil
}

func (s *Supervisor) startAndWait(ctx context.Context, what string, ready func(context.Context) bool, name string, args ...string) (Process, error) {
	defer logging.LogDuration(ctx, "supervisor_start_"+name)()
	p, err := s.launch(name, args...)
	if err != nil {
		return nil, err
	}
	if err := waitutil.Until(ctx, pollInterval, s.cfg.BootTimeout, ready); err != nil {
		if stopErr := p.Stop(); stopErr != nil {
			s.log.Warn("failed to stop "+what, zap.Error(stopErr))
		}
		if errors.Is(err, waitutil.ErrTimeout) {
			return nil, fmt.Errorf("%s %w", what, ErrBootTimeout)
		}
		return nil, err
	}
	s.log.Info(what + " is ready")
	return p, nil
}

// Stop terminates whatever Start launched, Appium first.
func (s *Supervisor) Stop() {
	if s.server != nil {
		if err := s.server.Stop(); err != nil {
			s.log.Warn("failed to stop appium server", zap.Error(err))
		}
		s.server = nil
		s.log.Info("appium server stopped")
	}
	if s.emulator != nil {
		if err := s.emulator.Stop(); err != nil {
			s.log.Warn("failed to stop emulator", zap.Error(err))
		}
		s.emulator = nil
		s.log.Info("emulator stopped")
	}
}

// LookPath reports which of the required host tools are missing from PATH.
func LookPath(tools ...string) []string {
	var missing []string
	for _, t := range tools {
		if _, err := exec.LookPath(t); err != nil {
			missing = append(missing, t)
		}
	}
	return missing
}
