// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (оркестратор, хранилища, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (request id, логгер запроса, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - runtime_handler.go  — обработчики для /workspaces/{id}/runtime
//   - machine_handler.go  — обработчики для /workspaces/{id}/machines
//   - snapshot_handler.go — обработчики для snapshots и журнала событий
//
// API предоставляет REST endpoints для управления runtime workspace.
package api
