// Package janitor удаляет устаревшие snapshot'ы по расписанию.
//
// Структура:
//   - janitor.go — Janitor (Tick, Run)
//   - cron.go    — парсинг cron-выражений и адаптер логгера cron
//
// Использование:
//
//	j := janitor.New(janitor.Config{
//	    Snapshots: snapshotRepo,
//	    Remover:   orch,
//	    Retention: 14 * 24 * time.Hour,
//	    Lock:      repo.NewAdvisoryLock(pool, janitor.LockKey), // опционально
//	    Logger:    logger,
//	})
//
//	// Блокируется до отмены ctx
//	err := j.Run(ctx, "0 3 * * *")
//
// При нескольких экземплярах сервиса очистку выполняет только тот,
// кто удерживает advisory lock в PostgreSQL.
package janitor
