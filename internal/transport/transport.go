// Package transport двунаправленный канал сообщений протокола между
// репликой и координатором.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/iudanet/codesync/pkg/api"
)

// ErrClosed соединение закрыто (локально или удаленной стороной)
var ErrClosed = errors.New("connection closed")

// Conn соединение, передающее сообщения протокола.
// Send и Receive можно вызывать из разных горутин одновременно.
type Conn interface {
	Send(ctx context.Context, msg *api.Message) error
	Receive(ctx context.Context) (*api.Message, error)
	Close() error
	RemoteAddr() string
}

// Dialer устанавливает новое соединение с координатором
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc адаптер функции к Dialer
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial вызывает f(ctx)
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// Options параметры websocket-соединения
type Options struct {
	WriteTimeout   time.Duration // таймаут записи одного сообщения
	PongTimeout    time.Duration // соединение считается мертвым без pong/данных
	PingInterval   time.Duration // период ping, должен быть меньше PongTimeout
	MaxMessageSize int64         // максимальный размер входящего сообщения
	ReceiveBuffer  int           // размер очереди прочитанных сообщений
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 8 << 20,
		ReceiveBuffer:  64,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = d.PongTimeout
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = o.PongTimeout * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.ReceiveBuffer <= 0 {
		o.ReceiveBuffer = d.ReceiveBuffer
	}
	return o
}
