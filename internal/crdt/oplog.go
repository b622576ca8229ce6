package crdt

import (
	"sort"

	"github.com/iudanet/codesync/internal/models"
)

// OpLog append-only журнал операций документа в порядке применения.
// Порядок применения причинный, поэтому любой суффикс журнала, отфильтрованный
// по вектору состояния, можно отправить другой реплике как есть.
type OpLog struct {
	ops       []models.Operation
	byReplica map[string][]int // индексы операций автора, по возрастанию clock
	sv        models.StateVector
}

// NewOpLog создает пустой журнал
func NewOpLog() *OpLog {
	return &OpLog{
		byReplica: make(map[string][]int),
		sv:        make(models.StateVector),
	}
}

// Append добавляет примененную операцию в журнал.
// Возвращает false, если операция уже есть в журнале.
func (l *OpLog) Append(op models.Operation) bool {
	if l.sv.Covers(&op) {
		return false
	}

	l.ops = append(l.ops, op.Clone())
	l.byReplica[op.ID.Replica] = append(l.byReplica[op.ID.Replica], len(l.ops)-1)
	l.sv.Observe(&op)

	return true
}

// Contains сообщает, покрыт ли идентификатор журналом.
// Работает и для ID отдельных символов многосимвольной вставки.
func (l *OpLog) Contains(id models.OpID) bool {
	return id.Clock <= l.sv.Get(id.Replica)
}

// StateVector возвращает копию вектора состояния журнала
func (l *OpLog) StateVector() models.StateVector {
	return l.sv.Clone()
}

// Last возвращает последний clock автора в этом журнале
func (l *OpLog) Last(replica string) int64 {
	return l.sv.Get(replica)
}

// Since возвращает операции, которых нет у владельца вектора sv, в причинном порядке
func (l *OpLog) Since(sv models.StateVector) []models.Operation {
	var idx []int

	for replica, indices := range l.byReplica {
		known := sv.Get(replica)
		// Операции автора упорядочены по clock, ищем первую неизвестную
		start := sort.Search(len(indices), func(i int) bool {
			return l.ops[indices[i]].LastClock() > known
		})
		idx = append(idx, indices[start:]...)
	}

	sort.Ints(idx)

	result := make([]models.Operation, 0, len(idx))
	for _, i := range idx {
		result = append(result, l.ops[i].Clone())
	}

	return result
}

// All возвращает копию всех операций журнала
func (l *OpLog) All() []models.Operation {
	return l.Since(nil)
}

// Len возвращает количество операций в журнале
func (l *OpLog) Len() int {
	return len(l.ops)
}
