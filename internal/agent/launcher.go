package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Значения по умолчанию.
const (
	defaultPort     = "4401/tcp"
	defaultPath     = "/api/ping"
	defaultAttempts = 10
	defaultInterval = time.Second
	defaultTimeout  = 2 * time.Second
)

// Config — конфигурация Launcher.
type Config struct {
	// Port — порт агента в контейнере ("4401/tcp").
	Port string

	// Path — путь ping-запроса.
	Path string

	// Host — хост, на котором опубликованы порты контейнеров.
	// Пусто — обращаться к адресу контейнера напрямую.
	Host string

	// Attempts — количество попыток ping.
	Attempts int

	// Interval — пауза между попытками.
	Interval time.Duration

	// Timeout — таймаут одного запроса.
	Timeout time.Duration

	// Logger
	Logger *slog.Logger
}

// Launcher ждёт готовности агента на dev-машине.
type Launcher struct {
	port     string
	path     string
	host     string
	attempts int
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// NewLauncher создаёт Launcher.
func NewLauncher(cfg Config) *Launcher {
	l := &Launcher{
		port:     cfg.Port,
		path:     cfg.Path,
		host:     cfg.Host,
		attempts: cfg.Attempts,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}

	if l.port == "" {
		l.port = defaultPort
	}
	if l.path == "" {
		l.path = defaultPath
	}
	if !strings.HasPrefix(l.path, "/") {
		l.path = "/" + l.path
	}
	if l.attempts <= 0 {
		l.attempts = defaultAttempts
	}
	if l.interval <= 0 {
		l.interval = defaultInterval
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	l.client = &http.Client{Timeout: timeout}

	return l
}

// Launch пингует агента, пока он не ответит 2xx или не закончатся попытки.
func (l *Launcher) Launch(ctx context.Context, workspaceID string, devMachine domain.Machine) error {
	url, err := l.endpoint(devMachine)
	if err != nil {
		return err
	}

	logger := l.logger.With("workspace_id", workspaceID, "machine_id", devMachine.ID)

	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		lastErr = l.ping(ctx, url)
		if lastErr == nil {
			logger.Info("agent is ready", "url", url, "attempt", attempt)
			return nil
		}

		if attempt == l.attempts {
			break
		}

		logger.Debug("agent is not ready yet",
			"url", url,
			"attempt", attempt,
			"error", lastErr,
		)

		// Ждём с учётом context
		select {
		case <-time.After(l.interval):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrAgentUnavailable, ctx.Err())
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrAgentUnavailable, l.attempts, lastErr)
}

// endpoint строит URL ping-запроса для dev-машины.
func (l *Launcher) endpoint(m domain.Machine) (string, error) {
	if l.host != "" {
		hostPort, ok := m.Runtime.Ports[l.port]
		if !ok || hostPort == "" {
			return "", fmt.Errorf("%w: port %s is not published on machine %s", ErrNoEndpoint, l.port, m.ID)
		}
		return "http://" + net.JoinHostPort(l.host, hostPort) + l.path, nil
	}

	if m.Runtime.Address == "" {
		return "", fmt.Errorf("%w: machine %s has no address", ErrNoEndpoint, m.ID)
	}
	_, containerPort := nat.SplitProtoPort(l.port)
	return "http://" + net.JoinHostPort(m.Runtime.Address, containerPort) + l.path, nil
}

// ping выполняет один запрос к агенту.
func (l *Launcher) ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
