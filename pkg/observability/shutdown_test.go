package observability

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestNewShutdownManager_DefaultTimeout(t *testing.T) {
	logger := NewLogger(InfoLevel, nil)
	sm := NewShutdownManager(logger, 0)

	if sm.shutdownTimeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", sm.shutdownTimeout)
	}
}

func TestShutdownManager_RunsRegisteredFuncs(t *testing.T) {
	logger := NewLogger(InfoLevel, nil)
	server := &http.Server{Addr: ":0"}
	sm := NewShutdownManager(logger, 5*time.Second, server)

	var calls int32
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- sm.WaitForShutdown()
	}()

	// Give WaitForShutdown time to install its signal handler.
	time.Sleep(50 * time.Millisecond)
	syscall.Kill(syscall.Getpid(), syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Unexpected shutdown error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not complete")
	}

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 shutdown funcs to run, got %d", calls)
	}
}

func TestShutdownManager_ReportsFuncErrors(t *testing.T) {
	logger := NewLogger(ErrorLevel, nil)
	sm := NewShutdownManager(logger, 5*time.Second)

	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return errors.New("cleanup failed")
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- sm.WaitForShutdown()
	}()

	time.Sleep(50 * time.Millisecond)
	syscall.Kill(syscall.Getpid(), syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Expected an error from a failing shutdown func")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not complete")
	}
}
