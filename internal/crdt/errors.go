package crdt

import "errors"

// Ошибки локального API. Аномалии слияния (дубликаты, циклические перемещения
// от удаленных реплик) ошибками не являются и разрешаются детерминированно.
var (
	// ErrInvalidPosition позиция вставки за пределами видимого текста
	ErrInvalidPosition = errors.New("invalid position")

	// ErrInvalidRange диапазон удаления за пределами видимого текста
	ErrInvalidRange = errors.New("invalid range")

	// ErrEmptyContent попытка вставить пустую строку
	ErrEmptyContent = errors.New("empty content")

	// ErrCyclicMove перемещение узла внутрь собственного потомка
	ErrCyclicMove = errors.New("cyclic move")

	// ErrUnknownNode узел (или родитель) отсутствует в дереве
	ErrUnknownNode = errors.New("unknown node")
)
