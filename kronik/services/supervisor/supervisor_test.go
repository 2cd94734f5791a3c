package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProcess struct {
	name    string
	stopped bool
}

func (p *fakeProcess) Stop() error {
	p.stopped = true
	return nil
}

type fakeAppium struct {
	ready bool
}

func (f *fakeAppium) Status(ctx context.Context) (bool, error) {
	if !f.ready {
		return false, errors.New("connection refused")
	}
	return true, nil
}

func newTestSupervisor(booted, appiumReady bool) (*Supervisor, map[string]*fakeProcess) {
	started := map[string]*fakeProcess{}
	s := New(Config{EmulatorName: "KronikPixel", AppiumPort: 4723, BootTimeout: 50 * time.Millisecond}, &fakeAppium{ready: appiumReady})
	s.launch = func(name string, args ...string) (Process, error) {
		p := &fakeProcess{name: name}
		started[name] = p
		return p, nil
	}
	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if booted {
			return []byte("1\n"), nil
		}
		return []byte("\n"), nil
	}
	return s, started
}

func TestCheckRunning(t *testing.T) {
	tests := []struct {
		name    string
		booted  bool
		appium  bool
		wantErr error
	}{
		{"both running", true, true, nil},
		{"no emulator", false, true, ErrEmulatorNotRunning},
		{"no appium", true, false, ErrAppiumNotRunning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSupervisor(tt.booted, tt.appium)
			if err := s.CheckRunning(context.Background()); !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckRunning() err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartAndStop(t *testing.T) {
	s, started := newTestSupervisor(true, true)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if started["emulator"] == nil || started["appium"] == nil {
		t.Fatalf("started = %v, want emulator and appium", started)
	}
	s.Stop()
	if !started["emulator"].stopped || !started["appium"].stopped {
		t.Error("Stop() should stop both processes")
	}
}

func TestStartBootTimeout(t *testing.T) {
	s, started := newTestSupervisor(false, true)
	err := s.Start(context.Background())
	if !errors.Is(err, ErrBootTimeout) {
		t.Fatalf("Start() err = %v, want ErrBootTimeout", err)
	}
	if !started["emulator"].stopped {
		t.Error("emulator should be stopped after a boot timeout")
	}
	if started["appium"] != nil {
		t.Error("appium should not start without a booted emulator")
	}
}
