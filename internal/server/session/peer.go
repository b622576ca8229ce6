package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iudanet/codesync/internal/transport"
	"github.com/iudanet/codesync/pkg/api"
)

// State состояние реплики в сессии
type State int

const (
	StateConnecting   State = iota // ждем hello
	StateSyncing                   // sync_step отправлен, ждем sync_reply
	StateLive                      // handshake завершен
	StateDisconnected              // отключена, ждет удаления
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSyncing:
		return "syncing"
	case StateLive:
		return "live"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

var errKicked = errors.New("peer kicked")

// peer подключенная реплика. Поля без мьютекса принадлежат горутине
// координатора.
type peer struct {
	conn      transport.Conn
	send      chan *api.Message
	quit      chan struct{}
	quitMsg   *api.Message
	kickErr   error
	stop      context.CancelFunc
	timer     *time.Timer
	helloAt   time.Time
	replicaID string
	state     State
	quitOnce  sync.Once
}

func newPeer(conn transport.Conn, queue int) *peer {
	return &peer{
		conn:  conn,
		send:  make(chan *api.Message, queue),
		quit:  make(chan struct{}),
		state: StateConnecting,
	}
}

// synced реплика получает рассылку обновлений
func (p *peer) synced() bool {
	return p.state == StateSyncing || p.state == StateLive
}

// close прерывает обслуживание реплики: msg (если есть) отправляется
// последним сообщением
func (p *peer) close(msg *api.Message, err error) {
	p.quitOnce.Do(func() {
		p.quitMsg = msg
		p.kickErr = err
		p.state = StateDisconnected
		if p.timer != nil {
			p.timer.Stop()
		}
		close(p.quit)
		if p.stop != nil {
			p.stop()
		}
	})
}

// kicked сообщает, что координатор отключил реплику
func (p *peer) kicked() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}

// readPump передает входящие сообщения в очередь координатора
func (p *peer) readPump(ctx context.Context, c *Coordinator) error {
	for {
		msg, err := p.conn.Receive(ctx)
		if err != nil {
			return err
		}
		c.metrics.MessageReceived(string(msg.Type))

		select {
		case c.inbox <- messageEvent{peer: p, msg: msg}:
		case <-c.done:
			return ErrSessionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writePump отправляет сообщения из очереди реплики
func (p *peer) writePump(ctx context.Context) error {
	for {
		select {
		case msg := <-p.send:
			if err := p.conn.Send(ctx, msg); err != nil {
				return p.exit(err)
			}
		case <-p.quit:
			return p.exit(nil)
		case <-ctx.Done():
			return p.exit(ctx.Err())
		}
	}
}

// exit отправляет прощальное сообщение, если реплику отключил координатор.
// ctx к этому моменту уже отменен.
func (p *peer) exit(err error) error {
	if !p.kicked() {
		return err
	}

	if p.quitMsg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = p.conn.Send(ctx, p.quitMsg)
		cancel()
	}
	return errKicked
}
