package models

import "unicode/utf8"

// DocumentKind тип реплицируемого документа
type DocumentKind string

const (
	KindText DocumentKind = "text" // последовательность символов
	KindMap  DocumentKind = "map"  // key-value карта узлов дерева файлов
)

// FileTreeDocumentID фиксированный ID map-документа с деревом файлов проекта
const FileTreeDocumentID = "filetree"

// OpType тип операции
type OpType string

const (
	OpInsert OpType = "insert" // вставка в текст
	OpDelete OpType = "delete" // удаление (tombstone) символов текста
	OpSet    OpType = "set"    // создание/обновление узла дерева
)

// Operation представляет одну операцию журнала документа.
// Текстовые и map-операции используют разные наборы полей.
type Operation struct {
	ID   OpID   `json:"id"`
	Type OpType `json:"type"`
	// Prev clock предыдущей операции того же автора в этом документе (0 для первой).
	// Используется для причинной доставки операций одного автора по порядку.
	Prev int64 `json:"prev"`

	// Текст
	OriginLeft  OpID   `json:"origin_left"`
	OriginRight OpID   `json:"origin_right"`
	Content     string `json:"content,omitempty"`
	Targets     []OpID `json:"targets,omitempty"`

	// Map
	Key  OpID      `json:"key"`
	Node *NodeBody `json:"node,omitempty"`
}

// Span возвращает количество значений clock, занятых операцией.
// Вставка n символов занимает n последовательных значений.
func (op *Operation) Span() int64 {
	if op.Type == OpInsert {
		if n := utf8.RuneCountInString(op.Content); n > 1 {
			return int64(n)
		}
	}
	return 1
}

// LastClock возвращает последнее значение clock, занятое операцией
func (op *Operation) LastClock() int64 {
	return op.ID.Clock + op.Span() - 1
}

// Clone создает глубокую копию операции
func (op *Operation) Clone() Operation {
	c := *op
	if op.Targets != nil {
		c.Targets = make([]OpID, len(op.Targets))
		copy(c.Targets, op.Targets)
	}
	if op.Node != nil {
		node := op.Node.Clone()
		c.Node = &node
	}
	return c
}
