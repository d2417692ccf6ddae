package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError — одно нарушение в конфигурации.
type ValidationError struct {
	Field   string // путь поля, например "api.port"
	Value   any
	Message string
}

// Error реализует интерфейс error.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors — набор ошибок валидации.
type ValidationErrors []ValidationError

// Error реализует интерфейс error.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "text"}
)

// cronParser совпадает с парсером janitor.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate возвращает все найденные ошибки конфигурации.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, ValidationError{"log.level", c.Log.Level, "must be one of " + strings.Join(validLogLevels, ", ")})
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, ValidationError{"log.format", c.Log.Format, "must be json or text"})
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, ValidationError{"api.port", c.API.Port, "must be a valid TCP port"})
	}

	if c.DB.URL == "" {
		errs = append(errs, ValidationError{"db.url", c.DB.URL, "must not be empty"})
	}
	if c.DB.MaxConns <= 0 {
		errs = append(errs, ValidationError{"db.max_conns", c.DB.MaxConns, "must be positive"})
	}

	if c.RabbitMQ.Enabled && c.RabbitMQ.URL == "" {
		errs = append(errs, ValidationError{"rabbitmq.url", c.RabbitMQ.URL, "must not be empty when rabbitmq is enabled"})
	}

	if c.Docker.StopTimeoutSec < 0 {
		errs = append(errs, ValidationError{"docker.stop_timeout_sec", c.Docker.StopTimeoutSec, "must not be negative"})
	}

	if c.Agent.Enabled {
		if c.Agent.Attempts <= 0 {
			errs = append(errs, ValidationError{"agent.attempts", c.Agent.Attempts, "must be positive"})
		}
		if !strings.Contains(c.Agent.Port, "/") {
			errs = append(errs, ValidationError{"agent.port", c.Agent.Port, "must look like 4401/tcp"})
		}
	}

	if c.Janitor.Enabled {
		if _, err := cronParser.Parse(c.Janitor.Schedule); err != nil {
			errs = append(errs, ValidationError{"janitor.schedule", c.Janitor.Schedule, "invalid cron expression"})
		}
		if c.Janitor.RetentionHours <= 0 {
			errs = append(errs, ValidationError{"janitor.retention_hours", c.Janitor.RetentionHours, "must be positive"})
		}
	}

	if c.Orchestrator.CleanupConcurrency <= 0 {
		errs = append(errs, ValidationError{"orchestrator.cleanup_concurrency", c.Orchestrator.CleanupConcurrency, "must be positive"})
	}

	return errs
}
