package models

// NodeKind тип узла дерева файлов
type NodeKind string

const (
	NodeFile   NodeKind = "file"
	NodeFolder NodeKind = "folder"
)

// NodeBody набор полей узла, передаваемый в map-операции целиком.
// Каждое обновление несет полный набор полей (LWW на уровне ключа).
type NodeBody struct {
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name"`
	ParentID *OpID    `json:"parent_id,omitempty"` // nil = корень проекта
	Deleted  bool     `json:"deleted"`
}

// Clone создает глубокую копию полей узла
func (b NodeBody) Clone() NodeBody {
	if b.ParentID != nil {
		parent := *b.ParentID
		b.ParentID = &parent
	}
	return b
}

// Parent возвращает родителя или нулевой OpID для корня
func (b NodeBody) Parent() OpID {
	if b.ParentID == nil {
		return OpID{}
	}
	return *b.ParentID
}

// FileNode представляет узел дерева файлов (запись map CRDT)
type FileNode struct {
	NodeBody
	ID         OpID `json:"id"`          // ID операции создания узла
	LastWriter OpID `json:"last_writer"` // LastWriter ID последнего примененного обновления
}

// IsFolder сообщает, является ли узел папкой
func (n *FileNode) IsFolder() bool {
	return n.Kind == NodeFolder
}

// Clone создает глубокую копию узла
func (n *FileNode) Clone() FileNode {
	return FileNode{
		NodeBody:   n.NodeBody.Clone(),
		ID:         n.ID,
		LastWriter: n.LastWriter,
	}
}
