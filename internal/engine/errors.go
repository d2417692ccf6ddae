package engine

import "errors"

// Ошибки валидации окружения.
var (
	// ErrEmptyMachines — окружение не содержит машин.
	ErrEmptyMachines = errors.New("environment has no machines")

	// ErrEmptyMachineName — машина без имени.
	ErrEmptyMachineName = errors.New("machine has empty name")

	// ErrDuplicateMachineName — несколько машин с одинаковым именем.
	ErrDuplicateMachineName = errors.New("duplicate machine name")

	// ErrUnsupportedSource — тип источника не поддерживается движком.
	ErrUnsupportedSource = errors.New("unsupported machine source")

	// ErrEmptySourceLocation — источник без образа.
	ErrEmptySourceLocation = errors.New("machine source has empty location")

	// ErrInvalidPort — порт не в формате "4401/tcp".
	ErrInvalidPort = errors.New("invalid machine port")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Machine string // имя машины, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Machine != "" {
		return "machine " + e.Machine + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(machine, field, message string, err error) *ValidationError {
	return &ValidationError{
		Machine: machine,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
