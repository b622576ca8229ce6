package crdt

import (
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/codesync/internal/models"
)

// LamportClock логические часы реплики. Каждая локальная операция получает
// OpID{Replica: nodeID, Clock: counter}; при приеме удаленной операции часы
// сдвигаются вперед, поэтому причинно более поздняя операция всегда имеет больший ID.
type LamportClock struct {
	nodeID  string     // идентификатор реплики
	counter int64      // последнее выданное значение
	mu      sync.Mutex // часы общие для всех документов реплики
}

// NewLamportClock создает часы со случайным идентификатором реплики (UUID).
func NewLamportClock() *LamportClock {
	return &LamportClock{
		nodeID: uuid.New().String(),
	}
}

// NewLamportClockWithNodeID создает часы с заданным идентификатором реплики.
// Используется при восстановлении реплики из локального хранилища и в тестах.
func NewLamportClockWithNodeID(nodeID string) *LamportClock {
	return &LamportClock{
		nodeID: nodeID,
	}
}

// Tick выдает следующий идентификатор операции.
func (lc *LamportClock) Tick() models.OpID {
	return lc.Reserve(1)
}

// Reserve резервирует n последовательных значений и возвращает идентификатор первого.
// Вставка строки из n символов занимает n значений часов.
func (lc *LamportClock) Reserve(n int) models.OpID {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if n < 1 {
		n = 1
	}
	first := lc.counter + 1
	lc.counter += int64(n)

	return models.OpID{Replica: lc.nodeID, Clock: first}
}

// Update учитывает увиденный удаленный timestamp:
// counter = max(counter, remote). Следующий Tick вернет значение больше remote.
func (lc *LamportClock) Update(remoteTimestamp int64) int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if remoteTimestamp > lc.counter {
		lc.counter = remoteTimestamp
	}

	return lc.counter
}

// GetTimestamp возвращает текущее значение счетчика без его изменения.
func (lc *LamportClock) GetTimestamp() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.counter
}

// GetNodeID возвращает идентификатор реплики.
func (lc *LamportClock) GetNodeID() string {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.nodeID
}

// SetTimestamp устанавливает счетчик в заданное значение.
// Используется для восстановления часов после перезапуска реплики.
func (lc *LamportClock) SetTimestamp(timestamp int64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.counter = timestamp
}
