package orchestrator

import "sync"

// keyedLocker — мьютексы по ключу (workspace ID) со счётчиком ссылок.
// Запись удаляется, когда мьютекс никто не держит и не ждёт.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*refMutex)}
}

// Lock захватывает мьютекс ключа и возвращает функцию освобождения.
// Повторный вызов функции освобождения ничего не делает.
func (l *keyedLocker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	rm, ok := l.locks[key]
	if !ok {
		rm = &refMutex{}
		l.locks[key] = rm
	}
	rm.refs++
	l.mu.Unlock()

	rm.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			rm.mu.Unlock()

			l.mu.Lock()
			rm.refs--
			if rm.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// size возвращает количество ключей с живыми мьютексами.
func (l *keyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
