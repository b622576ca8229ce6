package replica

import (
	"github.com/iudanet/codesync/internal/document"
	"github.com/iudanet/codesync/internal/models"
	"github.com/iudanet/codesync/pkg/api"
)

// DocumentHandle документ сессии. Методы потокобезопасны.
type DocumentHandle struct {
	s   *Session
	doc *document.Document
}

// ID возвращает идентификатор документа
func (h *DocumentHandle) ID() string {
	return h.doc.ID()
}

// Kind возвращает тип документа
func (h *DocumentHandle) Kind() models.DocumentKind {
	return h.doc.Kind()
}

// Apply применяет локальную правку, сохраняет операцию и отправляет ее
// координатору, если есть соединение. Ошибки позиции и диапазона
// возвращаются синхронно. Подписчики получают событие до возврата из Apply,
// если в этот момент сессия не рассылает другие изменения; иначе событие
// доставляется сразу после них.
func (h *DocumentHandle) Apply(edit document.Edit) (models.Operation, error) {
	s := h.s

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return models.Operation{}, ErrSessionClosed
	}

	op, err := h.doc.Apply(edit)
	if err != nil {
		s.mu.Unlock()
		return models.Operation{}, err
	}

	ops := []models.Operation{op}
	s.persist(h.doc, ops)
	if s.link != nil {
		s.link.send(api.NewUpdate(h.doc.ID(), h.doc.Kind(), ops))
	}
	s.enqueue(notification{doc: h.doc, ops: ops, local: true})
	s.mu.Unlock()

	s.flush()

	return op, nil
}

// Insert вставляет text перед видимым символом pos
func (h *DocumentHandle) Insert(pos int, text string) (models.Operation, error) {
	return h.Apply(document.TextInsert{Position: pos, Content: text})
}

// Delete удаляет length видимых символов начиная с pos
func (h *DocumentHandle) Delete(pos, length int) (models.Operation, error) {
	return h.Apply(document.TextDelete{Position: pos, Length: length})
}

// Subscribe регистрирует подписчика изменений (локальных и удаленных).
// Подписчики вызываются в порядке подписки, события приходят в порядке
// применения изменений и никогда не пересекаются.
func (h *DocumentHandle) Subscribe(fn func(document.Event)) func() {
	return h.doc.Subscribe(fn)
}

// CurrentValue возвращает string для текста и []models.FileNode для дерева
func (h *DocumentHandle) CurrentValue() any {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.doc.CurrentValue()
}

// Text возвращает видимый текст
func (h *DocumentHandle) Text() string {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.doc.Text()
}

// TextLen возвращает количество видимых символов
func (h *DocumentHandle) TextLen() int {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.doc.TextLen()
}

// Nodes возвращает видимые узлы дерева файлов
func (h *DocumentHandle) Nodes() []models.FileNode {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.doc.Nodes()
}

// Digest возвращает хеш видимого значения
func (h *DocumentHandle) Digest() string {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.doc.Digest()
}

// StateVector возвращает вектор состояния документа
func (h *DocumentHandle) StateVector() models.StateVector {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.doc.StateVector()
}

// Len возвращает количество операций в журнале
func (h *DocumentHandle) Len() int {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.doc.Len()
}

// PendingLen возвращает количество операций, ожидающих зависимостей
func (h *DocumentHandle) PendingLen() int {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.doc.PendingLen()
}

// read выполняет fn под мьютексом сессии
func (h *DocumentHandle) read(fn func(doc *document.Document)) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	fn(h.doc)
}
