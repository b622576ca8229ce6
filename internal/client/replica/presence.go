package replica

import (
	"time"

	"github.com/iudanet/codesync/internal/models"
	"github.com/iudanet/codesync/pkg/api"
)

// PublishAwareness публикует собственное присутствие. Запись получает
// следующий clock; без соединения она будет отправлена после handshake.
// Clock не меньше текущего времени в миллисекундах: после перезапуска
// реплики с тем же ID ее записи новее записей прошлого запуска.
// Пустое имя пользователя заменяется Options.User.
func (s *Session) PublishAwareness(state AwarenessState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return ErrSessionClosed
	}

	user := state.User
	if user.Name == "" {
		user = s.opts.User
	}

	var clock int64
	if s.self != nil {
		clock = s.self.Clock
	}

	p := models.Presence{
		ReplicaID: s.replicaID,
		Clock:     nextPresenceClock(clock),
		User:      user,
		Cursor:    state.Cursor,
	}
	p = p.Clone()
	s.self = &p

	if s.link != nil {
		s.link.send(api.NewAwareness(p))
	}

	return nil
}

// OnAwarenessChange подписывает на изменения присутствия других реплик.
// Возвращает функцию отписки.
func (s *Session) OnAwarenessChange(fn func(AwarenessEvent)) func() {
	return s.awarenessSubs.add(fn)
}

// Awareness возвращает актуальные записи присутствия других реплик
func (s *Session) Awareness() []models.Presence {
	return s.peers.Snapshot()
}

// Self возвращает собственную опубликованную запись
func (s *Session) Self() (models.Presence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.self == nil {
		return models.Presence{}, false
	}
	return s.self.Clone(), true
}

// nextPresenceClock следующий clock собственной записи присутствия
func nextPresenceClock(prev int64) int64 {
	return max(prev+1, time.Now().UnixMilli())
}
