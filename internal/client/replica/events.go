package replica

import (
	"log/slog"
	"sync"
)

type callback[E any] struct {
	fn func(E)
	id int
}

// subscribers упорядоченный список обработчиков событий. Обработчики
// вызываются синхронно в порядке подписки; паника одного не мешает остальным.
type subscribers[E any] struct {
	list []callback[E]
	next int
	mu   sync.Mutex
}

func (s *subscribers[E]) add(fn func(E)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	s.list = append(s.list, callback[E]{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, cb := range s.list {
			if cb.id == id {
				s.list = append(s.list[:i:i], s.list[i+1:]...)
				return
			}
		}
	}
}

func (s *subscribers[E]) notify(logger *slog.Logger, ev E) {
	s.mu.Lock()
	list := make([]callback[E], len(s.list))
	copy(list, s.list)
	s.mu.Unlock()

	for _, cb := range list {
		dispatch(logger, cb, ev)
	}
}

func dispatch[E any](logger *slog.Logger, cb callback[E], ev E) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Session subscriber panicked",
				"subscriber", cb.id,
				"error", r)
		}
	}()
	cb.fn(ev)
}
