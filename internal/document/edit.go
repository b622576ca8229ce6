package document

import "github.com/iudanet/codesync/internal/models"

// Edit локальное изменение документа. Tagged variant: TextInsert, TextDelete,
// NodeSet, NodeDelete.
type Edit interface {
	kind() models.DocumentKind
}

// TextInsert вставка Content перед видимым символом Position
type TextInsert struct {
	Content  string
	Position int
}

// TextDelete удаление Length видимых символов начиная с Position
type TextDelete struct {
	Position int
	Length   int
}

// NodeSet создание (Key == nil) или обновление узла дерева файлов
type NodeSet struct {
	Key  *models.OpID
	Body models.NodeBody
}

// NodeDelete пометка узла удаленным (без каскада)
type NodeDelete struct {
	Key models.OpID
}

func (TextInsert) kind() models.DocumentKind { return models.KindText }
func (TextDelete) kind() models.DocumentKind { return models.KindText }
func (NodeSet) kind() models.DocumentKind    { return models.KindMap }
func (NodeDelete) kind() models.DocumentKind { return models.KindMap }
