package replica

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/codesync/internal/crdt"
	"github.com/iudanet/codesync/internal/document"
	"github.com/iudanet/codesync/internal/models"
	"github.com/iudanet/codesync/internal/validation"
)

var (
	// ErrInvalidName имя узла не проходит validation.ValidateNodeName
	ErrInvalidName = errors.New("invalid node name")

	// ErrNotFolder родителем может быть только папка
	ErrNotFolder = errors.New("not a folder")
)

// FileTree дерево файлов проекта поверх map-документа
// models.FileTreeDocumentID. Содержимое файла - текстовый документ с ID,
// равным ID узла (OpID.String()).
type FileTree struct {
	h *DocumentHandle
}

// Handle возвращает map-документ дерева
func (t *FileTree) Handle() *DocumentHandle {
	return t.h
}

// CreateFile создает файл в папке parent (nil - корень) и заполняет его
// текст строкой "// <name>\n"
func (t *FileTree) CreateFile(parent *models.OpID, name string) (models.FileNode, error) {
	node, err := t.create(parent, name, models.NodeFile)
	if err != nil {
		return models.FileNode{}, err
	}

	if _, err := t.File(node.ID).Insert(0, "// "+name+"\n"); err != nil {
		return node, fmt.Errorf("failed to seed file: %w", err)
	}

	return node, nil
}

// CreateFolder создает папку в parent (nil - корень)
func (t *FileTree) CreateFolder(parent *models.OpID, name string) (models.FileNode, error) {
	return t.create(parent, name, models.NodeFolder)
}

func (t *FileTree) create(parent *models.OpID, name string, kind models.NodeKind) (models.FileNode, error) {
	if err := validateName(name); err != nil {
		return models.FileNode{}, err
	}
	if err := t.checkFolder(parent); err != nil {
		return models.FileNode{}, err
	}

	body := models.NodeBody{Kind: kind, Name: name, ParentID: parent}
	op, err := t.h.Apply(document.NodeSet{Body: body.Clone()})
	if err != nil {
		return models.FileNode{}, err
	}

	return models.FileNode{NodeBody: op.Node.Clone(), ID: op.ID, LastWriter: op.ID}, nil
}

// File возвращает текстовый документ файла
func (t *FileTree) File(id models.OpID) *DocumentHandle {
	return t.h.s.Document(id.String())
}

// Rename меняет имя узла
func (t *FileTree) Rename(id models.OpID, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return t.update(id, func(body *models.NodeBody) {
		body.Name = name
	})
}

// Move переносит узел в папку newParent (nil - корень). Перемещение внутрь
// собственного потомка отклоняется с crdt.ErrCyclicMove.
func (t *FileTree) Move(id models.OpID, newParent *models.OpID) error {
	if err := t.checkFolder(newParent); err != nil {
		return err
	}

	return t.update(id, func(body *models.NodeBody) {
		if newParent == nil {
			body.ParentID = nil
			return
		}
		parent := *newParent
		body.ParentID = &parent
	})
}

// checkFolder проверяет, что parent (nil - корень) существует и является папкой
func (t *FileTree) checkFolder(parent *models.OpID) error {
	if parent == nil {
		return nil
	}

	node, ok := t.Get(*parent)
	if !ok || node.Deleted {
		return fmt.Errorf("%w: %s", crdt.ErrUnknownNode, parent)
	}
	if !node.IsFolder() {
		return fmt.Errorf("%w: %s", ErrNotFolder, node.Name)
	}
	return nil
}

func (t *FileTree) update(id models.OpID, change func(body *models.NodeBody)) error {
	node, ok := t.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", crdt.ErrUnknownNode, id)
	}

	body := node.NodeBody.Clone()
	change(&body)

	_, err := t.h.Apply(document.NodeSet{Key: &id, Body: body})
	return err
}

// Delete помечает узел удаленным без каскада: потомки становятся невидимыми
func (t *FileTree) Delete(id models.OpID) error {
	if _, ok := t.Get(id); !ok {
		return fmt.Errorf("%w: %s", crdt.ErrUnknownNode, id)
	}
	_, err := t.h.Apply(document.NodeDelete{Key: id})
	return err
}

// DeleteRecursive удаляет узел и всех видимых потомков (сначала потомков)
// и очищает текст удаляемых файлов. Возвращает количество удаленных узлов.
func (t *FileTree) DeleteRecursive(id models.OpID) (int, error) {
	root, ok := t.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", crdt.ErrUnknownNode, id)
	}

	var nodes []models.FileNode
	t.h.read(func(doc *document.Document) {
		nodes = postOrder(doc.Tree(), root)
	})

	for i, node := range nodes {
		if !node.IsFolder() {
			file := t.File(node.ID)
			if n := file.TextLen(); n > 0 {
				if _, err := file.Delete(0, n); err != nil {
					return i, fmt.Errorf("failed to clear %s: %w", node.Name, err)
				}
			}
		}

		if _, err := t.h.Apply(document.NodeDelete{Key: node.ID}); err != nil {
			return i, err
		}
	}

	return len(nodes), nil
}

// postOrder возвращает поддерево root, потомки раньше предков
func postOrder(tree *crdt.TreeMap, root models.FileNode) []models.FileNode {
	var result []models.FileNode
	for _, child := range tree.Children(root.ID) {
		result = append(result, postOrder(tree, child)...)
	}
	return append(result, root)
}

// Get возвращает узел (включая удаленные)
func (t *FileTree) Get(id models.OpID) (models.FileNode, bool) {
	var (
		node models.FileNode
		ok   bool
	)
	t.h.read(func(doc *document.Document) {
		node, ok = doc.Tree().Get(id)
	})
	return node, ok
}

// Children возвращает видимых детей папки (nil - корень)
func (t *FileTree) Children(parent *models.OpID) []models.FileNode {
	var id models.OpID
	if parent != nil {
		id = *parent
	}

	var children []models.FileNode
	t.h.read(func(doc *document.Document) {
		children = doc.Tree().Children(id)
	})
	return children
}

// Nodes возвращает все видимые узлы
func (t *FileTree) Nodes() []models.FileNode {
	return t.h.Nodes()
}

// Path возвращает путь узла вида "src/main.go"
func (t *FileTree) Path(id models.OpID) (string, error) {
	var (
		path string
		err  error
	)
	t.h.read(func(doc *document.Document) {
		path, err = doc.Tree().Path(id)
	})
	return path, err
}

// Resolve находит видимый узел по пути "src/main.go". При одинаковых именах
// выбирается узел с меньшим ID.
func (t *FileTree) Resolve(path string) (models.FileNode, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return models.FileNode{}, fmt.Errorf("%w: empty path", crdt.ErrUnknownNode)
	}

	var (
		node  models.FileNode
		found bool
	)
	t.h.read(func(doc *document.Document) {
		tree := doc.Tree()
		var parent models.OpID
		for _, name := range parts {
			found = false
			for _, child := range tree.Children(parent) {
				if child.Name == name {
					node, found = child, true
					break
				}
			}
			if !found {
				return
			}
			parent = node.ID
		}
	})

	if !found {
		return models.FileNode{}, fmt.Errorf("%w: %s", crdt.ErrUnknownNode, path)
	}
	return node, nil
}

// Render возвращает дерево в текстовом виде: по узлу на строку, вложенность
// отступом в два пробела, папки со слешем на конце
func (t *FileTree) Render() string {
	var b strings.Builder
	t.h.read(func(doc *document.Document) {
		render(&b, doc.Tree(), models.OpID{}, 0)
	})
	return b.String()
}

func render(b *strings.Builder, tree *crdt.TreeMap, parent models.OpID, depth int) {
	for _, node := range tree.Children(parent) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(node.Name)
		if node.IsFolder() {
			b.WriteString("/\n")
			render(b, tree, node.ID, depth+1)
			continue
		}
		b.WriteString("\n")
	}
}

func validateName(name string) error {
	if err := validation.ValidateNodeName(name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	return nil
}
