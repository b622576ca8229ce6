package crdt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iudanet/codesync/internal/models"
)

// Element один символ текстового CRDT.
// OriginLeft/OriginRight фиксируются при создании и никогда не меняются.
type Element struct {
	ID          models.OpID
	OriginLeft  models.OpID
	OriginRight models.OpID
	Value       rune
	Deleted     bool
}

// Text последовательность символов с конкурентными вставками и удалениями.
// Размещение вставки зависит только от неизменяемых origin-указателей и
// детерминированного tie-break по replica ID, удаление - идемпотентный tombstone,
// поэтому реплики, применившие одно и то же множество операций, видят один текст.
//
// Text не потокобезопасен: владелец документа сериализует доступ.
type Text struct {
	clock   *LamportClock
	elems   []*Element
	index   map[models.OpID]*Element
	visible int
}

// NewText создает пустой текст. clock может быть nil для реплики,
// которая только принимает удаленные операции (координатор).
func NewText(clock *LamportClock) *Text {
	return &Text{
		clock: clock,
		index: make(map[models.OpID]*Element),
	}
}

// LocalInsert вставляет content перед видимым символом с индексом position.
// Возвращает операцию для отправки другим репликам; ее ID - ID первого символа.
func (t *Text) LocalInsert(position int, content string) (models.Operation, error) {
	if content == "" {
		return models.Operation{}, ErrEmptyContent
	}
	if position < 0 || position > t.visible {
		return models.Operation{}, fmt.Errorf("%w: %d (length %d)", ErrInvalidPosition, position, t.visible)
	}

	// Левый сосед - предыдущий видимый символ, правый - следующий элемент
	// полной последовательности (может быть tombstone)
	leftIdx := -1
	if position > 0 {
		leftIdx = t.visibleIndex(position - 1)
	}

	var left, right models.OpID
	if leftIdx >= 0 {
		left = t.elems[leftIdx].ID
	}
	if leftIdx+1 < len(t.elems) {
		right = t.elems[leftIdx+1].ID
	}

	op := models.Operation{
		ID:          t.clock.Reserve(utf8.RuneCountInString(content)),
		Type:        models.OpInsert,
		OriginLeft:  left,
		OriginRight: right,
		Content:     content,
	}
	t.integrate(&op)

	return op, nil
}

// LocalDelete помечает удаленными length видимых символов начиная с position.
func (t *Text) LocalDelete(position, length int) (models.Operation, error) {
	if position < 0 || length <= 0 || position+length > t.visible {
		return models.Operation{}, fmt.Errorf("%w: [%d, %d) (length %d)", ErrInvalidRange, position, position+length, t.visible)
	}

	targets := make([]models.OpID, 0, length)
	count := 0
	for _, e := range t.elems {
		if e.Deleted {
			continue
		}
		if count >= position {
			targets = append(targets, e.ID)
			if len(targets) == length {
				break
			}
		}
		count++
	}

	op := models.Operation{
		ID:      t.clock.Tick(),
		Type:    models.OpDelete,
		Targets: targets,
	}
	t.markDeleted(op.Targets)

	return op, nil
}

// Ready сообщает, присутствуют ли все элементы, от которых зависит операция
func (t *Text) Ready(op *models.Operation) bool {
	switch op.Type {
	case models.OpInsert:
		return t.known(op.OriginLeft) && t.known(op.OriginRight)
	case models.OpDelete:
		for _, id := range op.Targets {
			if _, ok := t.index[id]; !ok {
				return false
			}
		}
		return true
	}
	return false
}

// ApplyRemote интегрирует удаленную вставку или удаление.
// Повторное применение - no-op. Возвращает false, если операция не изменила
// состояние или ее зависимости отсутствуют (см. Ready).
func (t *Text) ApplyRemote(op *models.Operation) bool {
	if !t.Ready(op) {
		return false
	}

	switch op.Type {
	case models.OpInsert:
		if _, exists := t.index[op.ID]; exists || op.Content == "" {
			return false
		}
		t.integrate(op)
		return true
	case models.OpDelete:
		return t.markDeleted(op.Targets) > 0
	}

	return false
}

// String возвращает видимый текст
func (t *Text) String() string {
	var b strings.Builder
	b.Grow(t.visible)
	for _, e := range t.elems {
		if !e.Deleted {
			b.WriteRune(e.Value)
		}
	}
	return b.String()
}

// Len возвращает количество видимых символов
func (t *Text) Len() int {
	return t.visible
}

// Elements возвращает копию полной последовательности, включая tombstones
func (t *Text) Elements() []Element {
	result := make([]Element, 0, len(t.elems))
	for _, e := range t.elems {
		result = append(result, *e)
	}
	return result
}

// integrate раскладывает вставку на символы: первый символ ссылается на
// OriginLeft операции, каждый следующий - на предыдущий символ этой же вставки.
func (t *Text) integrate(op *models.Operation) {
	left := op.OriginLeft
	n := 0
	for _, r := range op.Content {
		e := &Element{
			ID:          op.ID.Offset(n),
			OriginLeft:  left,
			OriginRight: op.OriginRight,
			Value:       r,
		}
		t.integrateElement(e)
		left = e.ID
		n++
	}
}

// integrateElement находит позицию элемента между его origins.
// Просматриваем элементы от OriginLeft к OriginRight: конкурентный элемент с тем же
// левым origin и меньшим replica ID остается левее; элемент, чей левый origin лежит
// внутри просмотренного участка, относится к поддереву соседа и тоже пропускается.
func (t *Text) integrateElement(e *Element) {
	leftIdx := -1
	if !e.OriginLeft.IsZero() {
		leftIdx = t.indexOf(e.OriginLeft)
	}
	rightIdx := len(t.elems)
	if !e.OriginRight.IsZero() {
		rightIdx = t.indexOf(e.OriginRight)
	}

	insertAt := leftIdx + 1
	conflicting := make(map[models.OpID]bool)
	beforeOrigin := make(map[models.OpID]bool)

	for i := leftIdx + 1; i < rightIdx; i++ {
		o := t.elems[i]
		beforeOrigin[o.ID] = true
		conflicting[o.ID] = true

		if o.OriginLeft == e.OriginLeft {
			if o.ID.Replica < e.ID.Replica {
				insertAt = i + 1
				clear(conflicting)
			} else if o.OriginRight == e.OriginRight {
				break
			}
		} else if !o.OriginLeft.IsZero() && beforeOrigin[o.OriginLeft] {
			if !conflicting[o.OriginLeft] {
				insertAt = i + 1
				clear(conflicting)
			}
		} else {
			break
		}
	}

	t.elems = append(t.elems, nil)
	copy(t.elems[insertAt+1:], t.elems[insertAt:])
	t.elems[insertAt] = e
	t.index[e.ID] = e
	t.visible++
}

// markDeleted ставит tombstone на найденные элементы, возвращает число новых tombstones
func (t *Text) markDeleted(targets []models.OpID) int {
	changed := 0
	for _, id := range targets {
		e, ok := t.index[id]
		if !ok || e.Deleted {
			continue
		}
		e.Deleted = true
		t.visible--
		changed++
	}
	return changed
}

// known сообщает, есть ли элемент с данным ID (нулевой ID - граница документа)
func (t *Text) known(id models.OpID) bool {
	if id.IsZero() {
		return true
	}
	_, ok := t.index[id]
	return ok
}

// indexOf возвращает индекс элемента в полной последовательности
func (t *Text) indexOf(id models.OpID) int {
	target := t.index[id]
	for i, e := range t.elems {
		if e == target {
			return i
		}
	}
	return -1
}

// visibleIndex переводит видимый индекс в индекс полной последовательности
func (t *Text) visibleIndex(position int) int {
	count := 0
	for i, e := range t.elems {
		if e.Deleted {
			continue
		}
		if count == position {
			return i
		}
		count++
	}
	return -1
}
