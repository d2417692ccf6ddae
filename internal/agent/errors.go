package agent

import "errors"

// Ошибки запуска агента.
var (
	// ErrNoEndpoint — у машины нет ни опубликованного порта агента, ни адреса.
	ErrNoEndpoint = errors.New("agent endpoint is not available")

	// ErrAgentUnavailable — агент не ответил за все попытки.
	ErrAgentUnavailable = errors.New("agent is not available")
)
