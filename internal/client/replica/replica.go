// Package replica клиентская сторона синхронизации: локальные копии документов
// проекта, handshake с координатором, поток обновлений, присутствие и
// автоматическое переподключение.
//
// Локальные правки применяются синхронно и не требуют соединения. После
// восстановления связи реплика и координатор обмениваются векторами
// состояния и досылают друг другу недостающие операции.
package replica

import (
	"errors"
	"log/slog"
	"time"

	"github.com/iudanet/codesync/internal/awareness"
	"github.com/iudanet/codesync/internal/client/storage"
	"github.com/iudanet/codesync/internal/models"
	"github.com/iudanet/codesync/internal/transport"
)

var (
	// ErrTransportDisconnected соединение с координатором потеряно.
	// Не фатально: сессия переподключается сама.
	ErrTransportDisconnected = errors.New("transport disconnected")

	// ErrCoordinatorStateLost координатор перезапущен и потерял состояние
	// сессии. Реплика заново отправляет все операции, которых у него нет.
	ErrCoordinatorStateLost = errors.New("coordinator state lost")

	// ErrDataLoss после перезапуска координатора часть операций, которые
	// реплика видела раньше, отсутствует и у нее, и у координатора
	ErrDataLoss = errors.New("data loss")

	// ErrSessionClosed сессия отключена вызовом Disconnect
	ErrSessionClosed = errors.New("session closed")

	// ErrProtocol координатор отклонил сообщение реплики
	ErrProtocol = errors.New("protocol error")
)

// Status состояние подключения сессии
type Status int

const (
	StatusOffline    Status = iota // нет соединения, ждем повтора
	StatusConnecting               // устанавливаем соединение
	StatusSyncing                  // hello отправлен, ждем sync_step
	StatusLive                     // handshake завершен, поток обновлений
	StatusClosed                   // Disconnect
)

func (s Status) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusConnecting:
		return "connecting"
	case StatusSyncing:
		return "syncing"
	case StatusLive:
		return "live"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// StatusEvent смена состояния подключения. Err объясняет переход:
// ErrTransportDisconnected, ErrCoordinatorStateLost, ErrDataLoss или nil.
type StatusEvent struct {
	Err    error
	Status Status
}

// AwarenessState собственное присутствие, публикуемое репликой
type AwarenessState struct {
	Cursor *models.Cursor
	User   models.User
}

// AwarenessEvent изменение присутствия другой реплики.
// Presence.Left == true означает, что реплика покинула сессию.
type AwarenessEvent struct {
	Presence models.Presence
}

// Options параметры подключения
type Options struct {
	Dialer transport.Dialer
	// Store локальное хранилище (nil - состояние только в памяти)
	Store  storage.Store
	Logger *slog.Logger

	ProjectID string
	// ReplicaID идентификатор реплики. Пустой - берется из Store или
	// генерируется.
	ReplicaID string
	User      models.User

	// OnStatusChange подписчик смены состояния, зарегистрированный до
	// начала подключения: получает все события, включая первый handshake
	OnStatusChange func(StatusEvent)

	// AwarenessTimeout окно устаревания присутствия; собственная запись
	// переотправляется каждые AwarenessTimeout/3
	AwarenessTimeout time.Duration

	// MinBackoff и MaxBackoff границы экспоненциальной паузы между
	// попытками подключения
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// OutboxSize емкость очереди исходящих сообщений соединения
	OutboxSize int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.AwarenessTimeout <= 0 {
		o.AwarenessTimeout = awareness.DefaultTimeout
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = 100 * time.Millisecond
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = max(10*time.Second, o.MinBackoff)
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 256
	}
	return o
}

// documentKind тип документа по его идентификатору: дерево файлов проекта -
// map, остальные документы - текст
func documentKind(id string) models.DocumentKind {
	if id == models.FileTreeDocumentID {
		return models.KindMap
	}
	return models.KindText
}
