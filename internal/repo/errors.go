package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")
)

// pgUniqueViolation — SQLSTATE нарушения уникальности.
const pgUniqueViolation = "23505"

// isUniqueViolation проверяет, что err — нарушение уникального ограничения.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
