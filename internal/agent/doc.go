// Package agent запускает агента на dev-машине workspace.
//
// Launcher ждёт, пока агент в контейнере dev-машины начнёт отвечать
// на HTTP ping. Адрес берётся из опубликованных портов машины
// (при заданном Host) или из адреса контейнера в сети движка.
//
// Неудачный запуск агента не откатывает runtime: оркестратор только
// логирует ошибку и увеличивает метрику.
package agent
