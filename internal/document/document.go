package document

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/iudanet/codesync/internal/crdt"
	"github.com/iudanet/codesync/internal/crypto"
	"github.com/iudanet/codesync/internal/models"
)

var (
	// ErrKindMismatch правка не соответствует типу документа
	ErrKindMismatch = errors.New("edit does not match document kind")

	// ErrReadOnly документ без часов не может порождать локальные операции
	ErrReadOnly = errors.New("document is read-only")
)

// Snapshot полное состояние документа для массового слияния
type Snapshot struct {
	DocumentID string              `json:"document_id"`
	Kind       models.DocumentKind `json:"kind"`
	Ops        []models.Operation  `json:"ops"`
}

// Event уведомление подписчика об изменении документа
type Event struct {
	DocumentID string
	Ops        []models.Operation
	Local      bool
}

type subscriber struct {
	fn func(Event)
	id int
}

// Document именованный экземпляр текстового или map CRDT вместе с журналом
// операций, буфером причинной доставки и списком подписчиков.
//
// Мутации не потокобезопасны: владелец (сессия реплики или координатор)
// сериализует их. Apply/ApplyRemote не вызывают подписчиков - владелец вызывает
// Notify после выхода из своей критической секции.
type Document struct {
	text    *crdt.Text
	tree    *crdt.TreeMap
	log     *crdt.OpLog
	clock   *crdt.LamportClock
	logger  *slog.Logger
	id      string
	kind    models.DocumentKind
	pending []models.Operation

	subs    []subscriber
	nextSub int
	subMu   sync.Mutex
}

// New создает пустой документ. clock == nil делает документ доступным только
// для удаленных операций.
func New(id string, kind models.DocumentKind, clock *crdt.LamportClock, logger *slog.Logger) *Document {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Document{
		id:     id,
		kind:   kind,
		log:    crdt.NewOpLog(),
		clock:  clock,
		logger: logger,
	}

	switch kind {
	case models.KindMap:
		d.tree = crdt.NewTreeMap(clock)
	default:
		d.kind = models.KindText
		d.text = crdt.NewText(clock)
	}

	return d
}

// ID возвращает идентификатор документа
func (d *Document) ID() string {
	return d.id
}

// Kind возвращает тип документа
func (d *Document) Kind() models.DocumentKind {
	return d.kind
}

// Apply применяет локальную правку и возвращает созданную операцию
func (d *Document) Apply(edit Edit) (models.Operation, error) {
	if d.clock == nil {
		return models.Operation{}, ErrReadOnly
	}
	if edit.kind() != d.kind {
		return models.Operation{}, fmt.Errorf("%w: %s edit on %s document", ErrKindMismatch, edit.kind(), d.kind)
	}

	var (
		op  models.Operation
		err error
	)

	switch e := edit.(type) {
	case TextInsert:
		op, err = d.text.LocalInsert(e.Position, e.Content)
	case TextDelete:
		op, err = d.text.LocalDelete(e.Position, e.Length)
	case NodeSet:
		op, err = d.tree.LocalSet(e.Key, e.Body)
	case NodeDelete:
		op, err = d.tree.LocalDelete(e.Key)
	}
	if err != nil {
		return models.Operation{}, err
	}

	op.Prev = d.log.Last(op.ID.Replica)
	d.log.Append(op)

	return op, nil
}

// ApplyRemote принимает удаленные операции в любом порядке.
// Операция применяется только после всех, от которых она причинно зависит,
// до этого она ждет в буфере. Возвращает реально примененные операции
// в порядке применения (причинном). Дубликаты игнорируются.
func (d *Document) ApplyRemote(ops ...models.Operation) []models.Operation {
	for i := range ops {
		op := &ops[i]
		if !d.accepts(op) || d.known(op) || d.isPending(op.ID) {
			continue
		}
		d.pending = append(d.pending, op.Clone())
	}

	var applied []models.Operation
	for progress := true; progress && len(d.pending) > 0; {
		progress = false
		rest := d.pending[:0]

		for _, op := range d.pending {
			switch {
			case d.known(&op):
				// Уже применена другим путем
			case d.ready(&op):
				d.integrate(&op)
				applied = append(applied, op)
				progress = true
			default:
				rest = append(rest, op)
			}
		}

		d.pending = rest
	}

	if len(d.pending) > 0 {
		d.logger.Debug("Operations waiting for causal dependencies",
			"document_id", d.id,
			"pending", len(d.pending))
	}

	return applied
}

// Snapshot возвращает полное состояние документа
func (d *Document) Snapshot() Snapshot {
	return Snapshot{
		DocumentID: d.id,
		Kind:       d.kind,
		Ops:        d.log.All(),
	}
}

// Merge сливает снимок другой реплики: эквивалентно применению всех
// неизвестных операций снимка, порядок не важен.
func (d *Document) Merge(s Snapshot) []models.Operation {
	return d.ApplyRemote(s.Ops...)
}

// StateVector возвращает максимальный clock каждой реплики в документе
func (d *Document) StateVector() models.StateVector {
	return d.log.StateVector()
}

// Missing возвращает операции, которых нет у владельца вектора sv
func (d *Document) Missing(sv models.StateVector) []models.Operation {
	return d.log.Since(sv)
}

// PendingLen возвращает количество операций, ожидающих зависимостей
func (d *Document) PendingLen() int {
	return len(d.pending)
}

// Len возвращает количество операций в журнале
func (d *Document) Len() int {
	return d.log.Len()
}

// Text возвращает видимый текст (пустая строка для map-документа)
func (d *Document) Text() string {
	if d.text == nil {
		return ""
	}
	return d.text.String()
}

// TextLen возвращает количество видимых символов
func (d *Document) TextLen() int {
	if d.text == nil {
		return 0
	}
	return d.text.Len()
}

// Tree возвращает map CRDT дерева файлов (nil для текстового документа).
// Только для чтения: изменения выполняются через Apply.
func (d *Document) Tree() *crdt.TreeMap {
	return d.tree
}

// Nodes возвращает видимые узлы дерева файлов
func (d *Document) Nodes() []models.FileNode {
	if d.tree == nil {
		return nil
	}
	return d.tree.Nodes()
}

// Tombstones возвращает количество удаленных символов или узлов, которые
// документ хранит для слияния конкурентных операций
func (d *Document) Tombstones() int {
	n := 0
	if d.kind == models.KindMap {
		for _, node := range d.tree.All() {
			if node.Deleted {
				n++
			}
		}
		return n
	}

	for _, e := range d.text.Elements() {
		if e.Deleted {
			n++
		}
	}
	return n
}

// CurrentValue возвращает string для текста и []models.FileNode для дерева
func (d *Document) CurrentValue() any {
	if d.kind == models.KindMap {
		return d.Nodes()
	}
	return d.Text()
}

// Digest возвращает BLAKE2b-256 видимого значения. Реплики с одинаковым
// видимым состоянием имеют одинаковый digest.
func (d *Document) Digest() string {
	var b strings.Builder

	if d.kind == models.KindMap {
		for _, node := range d.tree.All() {
			fmt.Fprintf(&b, "%s|%s|%s|%s|%t\n", node.ID, node.Kind, node.Name, node.Parent(), node.Deleted)
		}
	} else {
		b.WriteString(d.text.String())
	}

	return crypto.Digest([]byte(b.String()))
}

// Subscribe регистрирует подписчика. Возвращает функцию отписки.
func (d *Document) Subscribe(fn func(Event)) func() {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	d.nextSub++
	id := d.nextSub
	d.subs = append(d.subs, subscriber{id: id, fn: fn})

	return func() {
		d.subMu.Lock()
		defer d.subMu.Unlock()

		for i, s := range d.subs {
			if s.id == id {
				d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify синхронно вызывает подписчиков в порядке подписки.
// Паника одного подписчика логируется и не мешает остальным.
func (d *Document) Notify(ev Event) {
	d.subMu.Lock()
	subs := make([]subscriber, len(d.subs))
	copy(subs, d.subs)
	d.subMu.Unlock()

	for _, s := range subs {
		d.dispatch(s, ev)
	}
}

func (d *Document) dispatch(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Document subscriber panicked",
				"document_id", d.id,
				"subscriber", s.id,
				"error", r)
		}
	}()
	s.fn(ev)
}

// accepts отбрасывает операции, не подходящие по типу документа
func (d *Document) accepts(op *models.Operation) bool {
	ok := op.Type == models.OpSet
	if d.kind == models.KindText {
		ok = op.Type == models.OpInsert || op.Type == models.OpDelete
	}
	if !ok {
		d.logger.Warn("Dropping operation of foreign kind",
			"document_id", d.id,
			"kind", d.kind,
			"op_type", op.Type,
			"op_id", op.ID.String())
	}
	return ok
}

// known сообщает, что операция (все ее символы) уже в журнале
func (d *Document) known(op *models.Operation) bool {
	return d.log.Contains(models.OpID{Replica: op.ID.Replica, Clock: op.LastClock()})
}

func (d *Document) isPending(id models.OpID) bool {
	for i := range d.pending {
		if d.pending[i].ID == id {
			return true
		}
	}
	return false
}

// ready: предыдущая операция автора и все зависимости CRDT уже применены
func (d *Document) ready(op *models.Operation) bool {
	if op.Prev > d.log.Last(op.ID.Replica) {
		return false
	}
	if d.tree != nil {
		return d.tree.Ready(op)
	}
	return d.text.Ready(op)
}

func (d *Document) integrate(op *models.Operation) {
	if d.tree != nil {
		d.tree.ApplyRemote(op)
	} else {
		d.text.ApplyRemote(op)
	}
	d.log.Append(*op)

	if d.clock != nil {
		d.clock.Update(op.LastClock())
	}
}
