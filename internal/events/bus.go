// Package events доставляет события жизненного цикла workspace подписчикам.
//
// Bus реализует orchestrator.EventPublisher. Publish синхронно вызывает
// подписчиков в порядке подписки, поэтому порядок событий одного
// workspace у каждого подписчика совпадает с порядком публикации.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/shaiso/wsmaster/internal/domain"
)

// Subscriber получает события.
// Ошибка подписчика не останавливает доставку остальным.
type Subscriber func(ctx context.Context, event domain.WorkspaceEvent) error

// Bus — шина событий в памяти.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]namedSubscriber
	nextID int
	logger *slog.Logger
}

type namedSubscriber struct {
	name string
	fn   Subscriber
}

// NewBus создаёт пустую шину.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[int]namedSubscriber),
		logger: logger,
	}
}

// Subscribe добавляет подписчика и возвращает функцию отписки.
func (b *Bus) Subscribe(name string, fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = namedSubscriber{name: name, fn: fn}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish доставляет событие всем подписчикам.
// Возвращает объединённую ошибку подписчиков.
func (b *Bus) Publish(ctx context.Context, event domain.WorkspaceEvent) error {
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	subs := make([]namedSubscriber, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		subs = append(subs, b.subs[id])
	}
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.fn(ctx, event); err != nil {
			b.logger.Warn("event subscriber failed",
				"subscriber", s.name,
				"workspace_id", event.WorkspaceID,
				"type", event.Type,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
