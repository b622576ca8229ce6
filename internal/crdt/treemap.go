package crdt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iudanet/codesync/internal/models"
)

// TreeMap Last-Write-Wins карта узлов дерева файлов.
// Ключ - OpID создания узла, значение - фиксированный набор полей (models.NodeBody).
//
// Состояние материализуется применением операций в порядке возрастания OpID.
// Часы Лампорта делают этот порядок линейным расширением причинного, поэтому
// последняя примененная запись ключа - запись с наибольшим LastWriter.
// Смена родителя, которая в этой точке порядка образует цикл, игнорируется
// (остальные поля применяются). Операция, пришедшая "в прошлое", вызывает
// детерминированное перепроигрывание, поэтому все реплики отвергают одни и те же
// перемещения независимо от порядка доставки.
type TreeMap struct {
	clock *LamportClock
	ops   []models.Operation // примененные операции, по возрастанию ID
	seen  map[models.OpID]struct{}
	nodes map[models.OpID]*models.FileNode
}

// NewTreeMap создает пустое дерево. clock может быть nil (только удаленные операции).
func NewTreeMap(clock *LamportClock) *TreeMap {
	return &TreeMap{
		clock: clock,
		seen:  make(map[models.OpID]struct{}),
		nodes: make(map[models.OpID]*models.FileNode),
	}
}

// LocalSet создает узел (key == nil) или обновляет существующий.
// LastWriter получает новый OpID. Перемещение внутрь собственного потомка
// отклоняется с ErrCyclicMove.
func (m *TreeMap) LocalSet(key *models.OpID, body models.NodeBody) (models.Operation, error) {
	if body.ParentID != nil {
		parent, ok := m.nodes[*body.ParentID]
		if !ok || parent.Deleted {
			return models.Operation{}, fmt.Errorf("%w: parent %s", ErrUnknownNode, body.ParentID)
		}
	}

	var op models.Operation
	if key == nil {
		id := m.clock.Tick()
		op = models.Operation{ID: id, Type: models.OpSet, Key: id}
	} else {
		current, ok := m.nodes[*key]
		if !ok {
			return models.Operation{}, fmt.Errorf("%w: %s", ErrUnknownNode, key)
		}
		if body.Parent() != current.Parent() && !m.ValidateAcyclic(*key, body.Parent()) {
			return models.Operation{}, fmt.Errorf("%w: %s under %s", ErrCyclicMove, key, body.ParentID)
		}
		op = models.Operation{ID: m.clock.Tick(), Type: models.OpSet, Key: *key}
	}

	node := body.Clone()
	op.Node = &node
	m.apply(op)

	return op, nil
}

// LocalDelete помечает узел удаленным. Потомки не удаляются:
// каскадное удаление выполняет вызывающий код обходом дерева.
func (m *TreeMap) LocalDelete(key models.OpID) (models.Operation, error) {
	current, ok := m.nodes[key]
	if !ok {
		return models.Operation{}, fmt.Errorf("%w: %s", ErrUnknownNode, key)
	}

	body := current.NodeBody.Clone()
	body.Deleted = true

	op := models.Operation{ID: m.clock.Tick(), Type: models.OpSet, Key: key, Node: &body}
	m.apply(op)

	return op, nil
}

// Ready сообщает, известны ли узел-ключ и новый родитель
func (m *TreeMap) Ready(op *models.Operation) bool {
	if op.Type != models.OpSet || op.Node == nil {
		return false
	}
	if op.Key != op.ID {
		if _, ok := m.seen[op.Key]; !ok {
			return false
		}
	}
	if op.Node.ParentID != nil {
		if _, ok := m.seen[*op.Node.ParentID]; !ok {
			return false
		}
	}
	return true
}

// ApplyRemote применяет удаленное обновление по правилу LWW.
// Повторная доставка - no-op. Возвращает false, если операция уже известна
// или ее зависимости отсутствуют.
func (m *TreeMap) ApplyRemote(op *models.Operation) bool {
	if !m.Ready(op) {
		return false
	}
	return m.apply(op.Clone())
}

// ValidateAcyclic проверяет, что nodeID не встречается среди предков newParent
// (включая сам newParent). Обход ограничен глубиной дерева.
func (m *TreeMap) ValidateAcyclic(nodeID, newParent models.OpID) bool {
	current := newParent
	for steps := 0; steps <= len(m.nodes); steps++ {
		if current.IsZero() {
			return true
		}
		if current == nodeID {
			return false
		}
		node, ok := m.nodes[current]
		if !ok {
			return true
		}
		current = node.Parent()
	}
	return false
}

// Get возвращает копию узла (включая удаленные)
func (m *TreeMap) Get(id models.OpID) (models.FileNode, bool) {
	node, ok := m.nodes[id]
	if !ok {
		return models.FileNode{}, false
	}
	return node.Clone(), true
}

// Visible сообщает, что узел и все его предки не удалены
func (m *TreeMap) Visible(id models.OpID) bool {
	current := id
	for steps := 0; steps <= len(m.nodes); steps++ {
		if current.IsZero() {
			return true
		}
		node, ok := m.nodes[current]
		if !ok || node.Deleted {
			return false
		}
		current = node.Parent()
	}
	return false
}

// Children возвращает видимых детей узла (нулевой parent - корень),
// отсортированных по имени, затем по ID
func (m *TreeMap) Children(parent models.OpID) []models.FileNode {
	if !m.Visible(parent) {
		return nil
	}

	var result []models.FileNode
	for _, node := range m.nodes {
		if node.Deleted || node.Parent() != parent {
			continue
		}
		result = append(result, node.Clone())
	}
	sortNodes(result)

	return result
}

// Nodes возвращает все видимые узлы в детерминированном порядке
func (m *TreeMap) Nodes() []models.FileNode {
	result := make([]models.FileNode, 0, len(m.nodes))
	for id, node := range m.nodes {
		if m.Visible(id) {
			result = append(result, node.Clone())
		}
	}
	sortNodes(result)

	return result
}

// All возвращает все записи, включая tombstones
func (m *TreeMap) All() []models.FileNode {
	result := make([]models.FileNode, 0, len(m.nodes))
	for _, node := range m.nodes {
		result = append(result, node.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.Less(result[j].ID)
	})
	return result
}

// Path возвращает путь узла от корня вида "src/app/main.go"
func (m *TreeMap) Path(id models.OpID) (string, error) {
	var parts []string
	current := id
	for steps := 0; steps <= len(m.nodes); steps++ {
		if current.IsZero() {
			// Собираем путь от корня
			for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
				parts[i], parts[j] = parts[j], parts[i]
			}
			return strings.Join(parts, "/"), nil
		}
		node, ok := m.nodes[current]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownNode, current)
		}
		parts = append(parts, node.Name)
		current = node.Parent()
	}
	return "", fmt.Errorf("%w: %s", ErrCyclicMove, id)
}

// Len возвращает общее количество записей, включая tombstones
func (m *TreeMap) Len() int {
	return len(m.nodes)
}

// apply добавляет операцию в упорядоченный журнал и материализует ее
func (m *TreeMap) apply(op models.Operation) bool {
	if _, dup := m.seen[op.ID]; dup {
		return false
	}
	m.seen[op.ID] = struct{}{}

	// Обычный случай: операция новее всех примененных
	if len(m.ops) == 0 || m.ops[len(m.ops)-1].ID.Less(op.ID) {
		m.ops = append(m.ops, op)
		m.materialize(&m.ops[len(m.ops)-1])
		return true
	}

	pos := sort.Search(len(m.ops), func(i int) bool {
		return op.ID.Less(m.ops[i].ID)
	})
	m.ops = append(m.ops, models.Operation{})
	copy(m.ops[pos+1:], m.ops[pos:])
	m.ops[pos] = op

	m.replay()
	return true
}

// replay пересобирает состояние из журнала в порядке ID
func (m *TreeMap) replay() {
	m.nodes = make(map[models.OpID]*models.FileNode, len(m.nodes))
	for i := range m.ops {
		m.materialize(&m.ops[i])
	}
}

// materialize применяет одну операцию к материализованному состоянию
func (m *TreeMap) materialize(op *models.Operation) {
	body := op.Node.Clone()

	node, exists := m.nodes[op.Key]
	if !exists {
		if body.Parent() == op.Key {
			body.ParentID = nil
		}
		m.nodes[op.Key] = &models.FileNode{NodeBody: body, ID: op.Key, LastWriter: op.ID}
		return
	}

	if !node.LastWriter.Less(op.ID) {
		return
	}

	if body.Parent() != node.Parent() && !m.ValidateAcyclic(op.Key, body.Parent()) {
		// Цикл: смена родителя игнорируется, остальные поля применяются
		body.ParentID = node.NodeBody.Clone().ParentID
	}

	node.NodeBody = body
	node.LastWriter = op.ID
}

func sortNodes(nodes []models.FileNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].ID.Less(nodes[j].ID)
	})
}
