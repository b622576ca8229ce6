package api

import (
	"errors"
	"fmt"

	"github.com/iudanet/codesync/internal/models"
)

// ProtocolVersion версия протокола синхронизации
const ProtocolVersion = 1

// MessageType тип сообщения протокола
type MessageType string

const (
	// TypeHello реплика -> координатор: векторы состояния всех документов реплики
	TypeHello MessageType = "hello"
	// TypeSyncStep координатор -> реплика: недостающие реплике операции и
	// векторы координатора
	TypeSyncStep MessageType = "sync_step"
	// TypeSyncReply реплика -> координатор: операции, которых нет у координатора
	TypeSyncReply MessageType = "sync_reply"
	// TypeUpdate новые операции одного документа (в обе стороны)
	TypeUpdate MessageType = "update"
	// TypeAwareness запись присутствия (в обе стороны)
	TypeAwareness MessageType = "awareness"
	// TypeError нарушение протокола
	TypeError MessageType = "error"
)

// ErrInvalidMessage сообщение не соответствует протоколу
var ErrInvalidMessage = errors.New("invalid message")

// DocumentState состояние документа в handshake: тип и вектор состояния
type DocumentState struct {
	Kind        models.DocumentKind `json:"kind"`
	StateVector models.StateVector  `json:"state_vector"`
}

// DocumentDiff операции одного документа, которых нет у получателя.
// StateVector - вектор отправителя (в sync_step), по нему получатель
// вычисляет ответ.
type DocumentDiff struct {
	StateVector models.StateVector  `json:"state_vector,omitempty"`
	Kind        models.DocumentKind `json:"kind"`
	Ops         []models.Operation  `json:"ops,omitempty"`
}

// Hello открывает handshake
type Hello struct {
	Documents map[string]DocumentState `json:"documents"`
	ReplicaID string                   `json:"replica_id"`
	// Epoch эпоха координатора, с которым реплика синхронизировалась последний раз
	Epoch   string `json:"epoch,omitempty"`
	Version int    `json:"version"`
}

// SyncStep ответ координатора на hello
type SyncStep struct {
	Documents map[string]DocumentDiff `json:"documents"`
	Epoch     string                  `json:"epoch"`
	Awareness []models.Presence       `json:"awareness,omitempty"`
}

// SyncReply операции, недостающие координатору
type SyncReply struct {
	Documents map[string]DocumentDiff `json:"documents"`
}

// Update новые операции документа
type Update struct {
	DocumentID string              `json:"document_id"`
	Kind       models.DocumentKind `json:"kind"`
	Ops        []models.Operation  `json:"ops"`
}

// ErrorMessage описание нарушения протокола
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Коды ошибок протокола
const (
	CodeBadMessage   = "bad_message"
	CodeHandshake    = "handshake_required"
	CodeSlowConsumer = "slow_consumer"
	CodeShutdown     = "shutdown"
)

// Message конверт протокола. Заполнено ровно одно поле, соответствующее Type.
type Message struct {
	Hello     *Hello           `json:"hello,omitempty"`
	SyncStep  *SyncStep        `json:"sync_step,omitempty"`
	SyncReply *SyncReply       `json:"sync_reply,omitempty"`
	Update    *Update          `json:"update,omitempty"`
	Awareness *models.Presence `json:"awareness,omitempty"`
	Error     *ErrorMessage    `json:"error,omitempty"`
	Type      MessageType      `json:"type"`
}

// NewHello создает сообщение hello
func NewHello(h Hello) *Message {
	h.Version = ProtocolVersion
	return &Message{Type: TypeHello, Hello: &h}
}

// NewSyncStep создает сообщение sync_step
func NewSyncStep(s SyncStep) *Message {
	return &Message{Type: TypeSyncStep, SyncStep: &s}
}

// NewSyncReply создает сообщение sync_reply
func NewSyncReply(r SyncReply) *Message {
	return &Message{Type: TypeSyncReply, SyncReply: &r}
}

// NewUpdate создает сообщение update
func NewUpdate(documentID string, kind models.DocumentKind, ops []models.Operation) *Message {
	return &Message{Type: TypeUpdate, Update: &Update{DocumentID: documentID, Kind: kind, Ops: ops}}
}

// NewAwareness создает сообщение awareness
func NewAwareness(p models.Presence) *Message {
	return &Message{Type: TypeAwareness, Awareness: &p}
}

// NewError создает сообщение error
func NewError(code, message string) *Message {
	return &Message{Type: TypeError, Error: &ErrorMessage{Code: code, Message: message}}
}

// Validate проверяет, что тело сообщения соответствует его типу
func (m *Message) Validate() error {
	var ok bool

	switch m.Type {
	case TypeHello:
		ok = m.Hello != nil && m.Hello.ReplicaID != ""
	case TypeSyncStep:
		ok = m.SyncStep != nil && m.SyncStep.Epoch != ""
	case TypeSyncReply:
		ok = m.SyncReply != nil
	case TypeUpdate:
		ok = m.Update != nil && m.Update.DocumentID != "" && validKind(m.Update.Kind)
	case TypeAwareness:
		ok = m.Awareness != nil && m.Awareness.ReplicaID != ""
	case TypeError:
		ok = m.Error != nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}

	if !ok {
		return fmt.Errorf("%w: malformed %s", ErrInvalidMessage, m.Type)
	}

	return nil
}

func validKind(kind models.DocumentKind) bool {
	return kind == models.KindText || kind == models.KindMap
}
