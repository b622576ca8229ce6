package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/iudanet/codesync/pkg/api"
)

// pipeConn один конец соединения в памяти. Сообщения копируются через JSON,
// как при передаче по сети.
type pipeConn struct {
	in         <-chan []byte
	out        chan<- []byte
	closed     chan struct{}
	peerClosed <-chan struct{}
	name       string
	once       sync.Once
}

// Pipe создает пару связанных соединений в памяти (для тестов и встроенного режима).
// buffer - емкость очереди в каждую сторону.
func Pipe(buffer int) (Conn, Conn) {
	if buffer < 0 {
		buffer = 0
	}

	ab := make(chan []byte, buffer)
	ba := make(chan []byte, buffer)
	aClosed := make(chan struct{})
	bClosed := make(chan struct{})

	a := &pipeConn{name: "pipe-a", in: ba, out: ab, closed: aClosed, peerClosed: bClosed}
	b := &pipeConn{name: "pipe-b", in: ab, out: ba, closed: bClosed, peerClosed: aClosed}

	return a, b
}

func (p *pipeConn) Send(ctx context.Context, msg *api.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	select {
	case <-p.closed:
		return ErrClosed
	case <-p.peerClosed:
		return ErrClosed
	default:
	}

	select {
	case p.out <- data:
		return nil
	case <-p.closed:
		return ErrClosed
	case <-p.peerClosed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) Receive(ctx context.Context) (*api.Message, error) {
	select {
	case data := <-p.in:
		return decode(data)
	case <-p.closed:
		return nil, ErrClosed
	case <-p.peerClosed:
		// Сообщения, отправленные до закрытия, доставляются
		select {
		case data := <-p.in:
			return decode(data)
		default:
		}
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() {
		close(p.closed)
	})
	return nil
}

func (p *pipeConn) RemoteAddr() string {
	return p.name
}

func decode(data []byte) (*api.Message, error) {
	var msg api.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &msg, nil
}
