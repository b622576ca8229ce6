// Package awareness хранит эфемерные записи присутствия реплик проекта.
// Записи не сливаются по правилам CRDT: для каждой реплики хранится последняя
// запись с наибольшим clock, устаревшие записи удаляются по таймауту.
package awareness

import (
	"sort"
	"sync"
	"time"

	"github.com/iudanet/codesync/internal/models"
)

const (
	// DefaultTimeout время жизни записи без обновлений
	DefaultTimeout = 30 * time.Second

	// DefaultGrace сколько запись живет после разрыва соединения реплики
	DefaultGrace = 5 * time.Second
)

type entry struct {
	expiresAt time.Time
	presence  models.Presence
}

// Map таблица присутствия replicaID -> запись. Потокобезопасна.
type Map struct {
	entries map[string]*entry
	left    map[string]int64 // clock записи Left удаленных реплик
	timeout time.Duration
	grace   time.Duration
	mu      sync.Mutex
}

// New создает таблицу. Нулевые значения заменяются значениями по умолчанию.
func New(timeout, grace time.Duration) *Map {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if grace <= 0 || grace > timeout {
		grace = min(DefaultGrace, timeout)
	}

	return &Map{
		entries: make(map[string]*entry),
		left:    make(map[string]int64),
		timeout: timeout,
		grace:   grace,
	}
}

// Timeout возвращает окно устаревания записи
func (m *Map) Timeout() time.Duration {
	return m.timeout
}

// Apply сохраняет запись, если ее clock больше сохраненного.
// Запись с Left удаляет реплику. Возвращает true, если состояние изменилось.
func (m *Map) Apply(p models.Presence, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.entries[p.ReplicaID]
	if ok && p.Clock <= current.presence.Clock {
		return false
	}
	if p.Clock <= m.left[p.ReplicaID] {
		return false
	}

	if p.Left {
		if !ok {
			return false
		}
		delete(m.entries, p.ReplicaID)
		m.left[p.ReplicaID] = p.Clock
		return true
	}
	delete(m.left, p.ReplicaID)

	m.entries[p.ReplicaID] = &entry{
		presence:  p.Clone(),
		expiresAt: now.Add(m.timeout),
	}

	return true
}

// Touch продлевает запись реплики без изменения содержимого
func (m *Map) Touch(replicaID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[replicaID]; ok {
		e.expiresAt = now.Add(m.timeout)
	}
}

// Disconnect сокращает срок жизни записи до grace-периода
func (m *Map) Disconnect(replicaID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[replicaID]; ok {
		if deadline := now.Add(m.grace); deadline.Before(e.expiresAt) {
			e.expiresAt = deadline
		}
	}
}

// Expire удаляет просроченные записи и возвращает их в виде записей Left
// с увеличенным clock, готовых к рассылке
func (m *Map) Expire(now time.Time) []models.Presence {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []models.Presence
	for id, e := range m.entries {
		if now.Before(e.expiresAt) {
			continue
		}
		delete(m.entries, id)
		m.left[id] = e.presence.Clock + 1
		removed = append(removed, models.Presence{
			ReplicaID: id,
			Clock:     e.presence.Clock + 1,
			User:      e.presence.User,
			Left:      true,
		})
	}

	sortPresence(removed)
	return removed
}

// Remove удаляет запись реплики немедленно. Возвращает запись Left для рассылки.
func (m *Map) Remove(replicaID string) (models.Presence, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[replicaID]
	if !ok {
		return models.Presence{}, false
	}
	delete(m.entries, replicaID)
	m.left[replicaID] = e.presence.Clock + 1

	return models.Presence{
		ReplicaID: replicaID,
		Clock:     e.presence.Clock + 1,
		User:      e.presence.User,
		Left:      true,
	}, true
}

// Forget снимает запрет на старые clock удаленной реплики.
// Вызывается, когда реплика заново проходит handshake.
func (m *Map) Forget(replicaID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.left, replicaID)
}

// Get возвращает запись реплики
func (m *Map) Get(replicaID string) (models.Presence, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[replicaID]
	if !ok {
		return models.Presence{}, false
	}
	return e.presence.Clone(), true
}

// Snapshot возвращает все живые записи, упорядоченные по replicaID
func (m *Map) Snapshot() []models.Presence {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]models.Presence, 0, len(m.entries))
	for _, e := range m.entries {
		result = append(result, e.presence.Clone())
	}

	sortPresence(result)
	return result
}

// Len возвращает количество записей
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Clear удаляет все записи (например, после перезапуска координатора)
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.entries)
	clear(m.left)
}

func sortPresence(list []models.Presence) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].ReplicaID < list[j].ReplicaID
	})
}
