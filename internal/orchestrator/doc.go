// Package orchestrator управляет runtime'ами workspace.
//
// Orchestrator отвечает за:
//   - Гарантию не более одного runtime на workspace
//   - Упорядоченную машину состояний STARTING → RUNNING → STOPPING → STOPPED
//   - Делегирование провизии машин EnvironmentEngine
//   - Строгий порядок событий жизненного цикла для каждого workspace
//   - Чистое восстановление после частичных сбоев провизии
//
// Единственное разделяемое изменяемое состояние — Registry.
// Операции над одним workspace сериализуются блокировкой по его ID,
// операции над разными workspace выполняются параллельно.
package orchestrator
