package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidOpID возвращается при разборе некорректной строки идентификатора
var ErrInvalidOpID = errors.New("invalid operation id")

// OpID уникальный идентификатор операции: (replica, clock).
// Полный порядок задается парой (Clock, Replica).
// Нулевое значение используется как граничный маркер (начало/конец документа, корень дерева).
type OpID struct {
	Replica string `json:"r"` // Replica идентификатор реплики-автора
	Clock   int64  `json:"c"` // Clock значение часов Лампорта автора
}

// IsZero сообщает, является ли идентификатор граничным маркером
func (id OpID) IsZero() bool {
	return id.Clock == 0 && id.Replica == ""
}

// Compare возвращает -1, 0 или 1 по полному порядку (Clock, Replica)
func (id OpID) Compare(other OpID) int {
	switch {
	case id.Clock < other.Clock:
		return -1
	case id.Clock > other.Clock:
		return 1
	}
	return strings.Compare(id.Replica, other.Replica)
}

// Less сообщает, предшествует ли id идентификатору other
func (id OpID) Less(other OpID) bool {
	return id.Compare(other) < 0
}

// String возвращает строковое представление "<clock>@<replica>".
// Используется как ID текстового документа файла.
func (id OpID) String() string {
	if id.IsZero() {
		return ""
	}
	return strconv.FormatInt(id.Clock, 10) + "@" + id.Replica
}

// Offset возвращает идентификатор n-го символа внутри многосимвольной вставки
func (id OpID) Offset(n int) OpID {
	return OpID{Replica: id.Replica, Clock: id.Clock + int64(n)}
}

// ParseOpID разбирает строку, полученную из OpID.String
func ParseOpID(s string) (OpID, error) {
	clockStr, replica, ok := strings.Cut(s, "@")
	if !ok || replica == "" {
		return OpID{}, fmt.Errorf("%w: %q", ErrInvalidOpID, s)
	}

	clock, err := strconv.ParseInt(clockStr, 10, 64)
	if err != nil || clock <= 0 {
		return OpID{}, fmt.Errorf("%w: %q", ErrInvalidOpID, s)
	}

	return OpID{Replica: replica, Clock: clock}, nil
}
