package janitor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule проверяет валидность cron-выражения.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextRun вычисляет следующее время запуска после from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return schedule.Next(from), nil
}

// cronLogger передаёт логи cron в slog.
type cronLogger struct {
	logger *slog.Logger
}

// Info реализует cron.Logger.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

// Error реализует cron.Logger.
func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
