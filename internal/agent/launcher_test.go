package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/wsmaster/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// agentServer отвечает 503 первые failures запросов, затем 200.
func agentServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != "/api/ping" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func splitServer(t *testing.T, srv *httptest.Server) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	return host, port
}

func devMachine(ports map[string]string, address string) domain.Machine {
	return domain.Machine{
		ID:      "dev-1",
		Config:  domain.MachineConfig{Name: "dev", Dev: true},
		Runtime: domain.MachineRuntime{Ports: ports, Address: address, Ready: true},
	}
}

// --- Launch Tests ---

func TestLaunch_PublishedPort(t *testing.T) {
	srv, calls := agentServer(t, 2)
	host, port := splitServer(t, srv)

	l := NewLauncher(Config{
		Host:     host,
		Attempts: 5,
		Interval: time.Millisecond,
		Logger:   discardLogger(),
	})

	err := l.Launch(context.Background(), "ws-1", devMachine(map[string]string{"4401/tcp": port}, ""))
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestLaunch_ContainerAddress(t *testing.T) {
	srv, _ := agentServer(t, 0)
	host, port := splitServer(t, srv)

	l := NewLauncher(Config{
		Port:     port + "/tcp",
		Path:     "api/ping",
		Attempts: 1,
		Logger:   discardLogger(),
	})

	if err := l.Launch(context.Background(), "ws-1", devMachine(nil, host)); err != nil {
		t.Fatalf("launch failed: %v", err)
	}
}

func TestLaunch_AttemptsExhausted(t *testing.T) {
	srv, calls := agentServer(t, 100)
	host, port := splitServer(t, srv)

	l := NewLauncher(Config{
		Host:     host,
		Attempts: 3,
		Interval: time.Millisecond,
		Logger:   discardLogger(),
	})

	err := l.Launch(context.Background(), "ws-1", devMachine(map[string]string{"4401/tcp": port}, ""))
	if !errors.Is(err, ErrAgentUnavailable) {
		t.Fatalf("expected ErrAgentUnavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestLaunch_ContextCancelled(t *testing.T) {
	srv, _ := agentServer(t, 100)
	host, port := splitServer(t, srv)

	l := NewLauncher(Config{
		Host:     host,
		Attempts: 100,
		Interval: time.Hour,
		Logger:   discardLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Launch(ctx, "ws-1", devMachine(map[string]string{"4401/tcp": port}, ""))
	if !errors.Is(err, ErrAgentUnavailable) {
		t.Fatalf("expected ErrAgentUnavailable, got %v", err)
	}
}

func TestLaunch_NoEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		machine domain.Machine
	}{
		{"port not published", "localhost", devMachine(map[string]string{"8080/tcp": "32000"}, "")},
		{"no address", "", devMachine(nil, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLauncher(Config{Host: tt.host, Logger: discardLogger()})
			err := l.Launch(context.Background(), "ws-1", tt.machine)
			if !errors.Is(err, ErrNoEndpoint) {
				t.Errorf("expected ErrNoEndpoint, got %v", err)
			}
		})
	}
}
