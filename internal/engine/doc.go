// Package engine провизионирует машины окружений workspace в Docker.
//
// Структура:
//   - validate.go — проверка окружения до создания контейнеров
//   - labels.go   — метки контейнеров и фильтры поиска
//   - docker.go   — Engine: запуск, остановка, snapshot'ы машин
//
// Каждая машина — отдельный контейнер, ID машины совпадает с ID контейнера.
// Контейнеры помечаются метками workspace, окружения и машины, поэтому
// после рестарта сервиса Start с recover подхватывает уже существующие
// контейнеры, а при их отсутствии поднимает машину из последнего snapshot.
package engine
