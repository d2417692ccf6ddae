// Package cli реализует инструмент командной строки wsmaster.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с wsmaster API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для wsmaster API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	states, err := client.ListWorkspaces("RUNNING")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: wsmaster workspace list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - workspace: list, start, show, stop
//   - machine: start, show, stop, save
//   - snapshot: list, remove
//   - events
//
// Каждая группа создаётся через фабричную функцию (NewWorkspaceCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
//
// Описания workspace и машин читаются из YAML или JSON файлов.
package cli
