package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Задержки переподключения: удвоение от reconnectBaseDelay до reconnectMaxDelay.
const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
	defaultHeartbeat   = 10 * time.Second
)

var (
	// ErrNoChannel — канал недоступен (соединение ещё не восстановлено).
	ErrNoChannel = errors.New("no amqp channel available")
	// ErrConnectionClosed — соединение закрыто вызовом Close.
	ErrConnectionClosed = errors.New("amqp connection closed")
)

// ConnectionConfig — параметры соединения с брокером.
type ConnectionConfig struct {
	URL string
	// Name видно в management UI брокера (connection_name).
	Name      string
	Heartbeat time.Duration
}

// ConnectionStatus — состояние соединения для /healthz.
type ConnectionStatus struct {
	Connected  bool      `json:"connected"`
	Closed     bool      `json:"closed"`
	Reconnects int       `json:"reconnects"`
	LastError  string    `json:"last_error,omitempty"`
	Since      time.Time `json:"since"`
}

// Connection держит одно AMQP соединение и один канал на процесс.
// После разрыва переподключается в фоне; подписчики узнают об этом
// через ReconnectNotify и заново объявляют consume.
type Connection struct {
	cfg    ConnectionConfig
	logger *slog.Logger

	mu         sync.RWMutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	closed     bool
	reconnects int
	lastErr    error
	since      time.Time

	closedCh    chan struct{}
	reconnectCh chan struct{}

	// chMu: amqp.Channel не потокобезопасен, события одного workspace уходят по порядку
	chMu sync.Mutex
}

// NewConnection подключается к брокеру и запускает фоновое переподключение.
func NewConnection(cfg ConnectionConfig, logger *slog.Logger) (*Connection, error) {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}

	c := newConnection(cfg, logger)
	if err := c.dial(); err != nil {
		return nil, err
	}

	go c.supervise()

	return c, nil
}

func newConnection(cfg ConnectionConfig, logger *slog.Logger) *Connection {
	return &Connection{
		cfg:         cfg,
		logger:      logger.With("component", "amqp", "connection_name", cfg.Name),
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}
}

// amqpConfig собирает параметры dial.
func (c *Connection) amqpConfig() amqp.Config {
	props := amqp.NewConnectionProperties()
	if c.cfg.Name != "" {
		props.SetClientConnectionName(c.cfg.Name)
	}
	return amqp.Config{
		Heartbeat:  c.cfg.Heartbeat,
		Locale:     "en_US",
		Properties: props,
	}
}

// dial устанавливает соединение и открывает канал.
func (c *Connection) dial() error {
	conn, err := amqp.DialConfig(c.cfg.URL, c.amqpConfig())
	if err != nil {
		c.setLastError(err)
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		c.setLastError(err)
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ch.Close()
		conn.Close()
		return ErrConnectionClosed
	}
	c.conn = conn
	c.channel = ch
	c.lastErr = nil
	c.since = time.Now().UTC()
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ", "host", conn.RemoteAddr().String())
	return nil
}

func (c *Connection) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// supervise ждёт разрыва текущего соединения и восстанавливает его.
func (c *Connection) supervise() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closedCh:
			return
		case amqpErr := <-notifyClose:
			if amqpErr == nil {
				// Соединение закрыли мы сами
				return
			}
			c.logger.Warn("connection lost", "code", amqpErr.Code, "reason", amqpErr.Reason)
			c.setLastError(amqpErr)
		}

		if !c.redial() {
			return
		}
	}
}

// redial повторяет dial до успеха или Close. Возвращает false после Close.
func (c *Connection) redial() bool {
	for attempt := 0; ; attempt++ {
		delay := reconnectDelay(attempt)
		c.logger.Info("reconnecting", "attempt", attempt+1, "delay", delay)

		select {
		case <-c.closedCh:
			return false
		case <-time.After(delay):
		}

		err := c.dial()
		if errors.Is(err, ErrConnectionClosed) {
			return false
		}
		if err != nil {
			c.logger.Warn("reconnect failed", "attempt", attempt+1, "error", err)
			continue
		}

		c.mu.Lock()
		c.reconnects++
		c.mu.Unlock()

		select {
		case c.reconnectCh <- struct{}{}:
		default:
		}
		return true
	}
}

// reconnectDelay — задержка перед попыткой attempt (с нуля).
func reconnectDelay(attempt int) time.Duration {
	delay := reconnectBaseDelay
	for range attempt {
		delay *= 2
		if delay >= reconnectMaxDelay {
			return reconnectMaxDelay
		}
	}
	return delay
}

// Channel возвращает текущий AMQP канал.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// ReconnectNotify возвращает канал для уведомлений о переподключении.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// Close закрывает соединение. Повторный вызов ничего не делает.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	var errs []error
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.logger.Info("connection closed", "reconnects", c.reconnects)
	return errors.Join(errs...)
}

// IsConnected проверяет, установлено ли соединение.
func (c *Connection) IsConnected() bool {
	return c.Status().Connected
}

// Status возвращает снимок состояния соединения.
func (c *Connection) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := ConnectionStatus{
		Connected:  !c.closed && c.conn != nil && !c.conn.IsClosed(),
		Closed:     c.closed,
		Reconnects: c.reconnects,
		Since:      c.since,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// WithChannel выполняет fn с текущим каналом под chMu.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.chMu.Lock()
	defer c.chMu.Unlock()

	c.mu.RLock()
	ch, closed := c.channel, c.closed
	c.mu.RUnlock()

	if closed {
		return ErrConnectionClosed
	}
	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}

	return fn(ch)
}
