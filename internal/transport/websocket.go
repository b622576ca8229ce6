package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/codesync/pkg/api"
)

// wsConn Conn поверх gorilla/websocket. Чтение выполняет отдельная горутина
// (readLoop), она же отвечает на ping; запись сериализуется мьютексом.
type wsConn struct {
	ws       *websocket.Conn
	logger   *slog.Logger
	incoming chan *api.Message
	closed   chan struct{}
	readDone chan struct{}
	readErr  error
	opts     Options

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWebSocketConn оборачивает установленное websocket-соединение
func NewWebSocketConn(ws *websocket.Conn, opts Options, logger *slog.Logger) Conn {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	c := &wsConn{
		ws:       ws,
		opts:     opts,
		logger:   logger,
		incoming: make(chan *api.Message, opts.ReceiveBuffer),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
	}

	go c.readLoop()
	go c.pingLoop()

	return c
}

// Upgrade переводит HTTP-запрос в websocket-соединение
func Upgrade(w http.ResponseWriter, r *http.Request, opts Options, logger *slog.Logger) (Conn, error) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// Авторизация и проверка источника выполняются до подключения к сессии
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	return NewWebSocketConn(ws, opts, logger), nil
}

// WebSocketDialer подключается к координатору по URL вида
// ws://host/api/collaboration/{projectID}
type WebSocketDialer struct {
	Logger  *slog.Logger
	Header  http.Header
	URL     string
	Options Options
}

// Dial устанавливает websocket-соединение
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 15 * time.Second,
	}

	ws, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %w (status %d)", d.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", d.URL, err)
	}

	return NewWebSocketConn(ws, d.Options, d.Logger), nil
}

// Send отправляет сообщение. Дедлайн записи - минимум из WriteTimeout и дедлайна ctx.
func (c *wsConn) Send(ctx context.Context, msg *api.Message) error {
	select {
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return c.wrapErr(err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return c.wrapErr(err)
	}

	return nil
}

// Receive возвращает следующее сообщение. Сообщения, прочитанные до разрыва,
// отдаются до ошибки.
func (c *wsConn) Receive(ctx context.Context) (*api.Message, error) {
	select {
	case msg := <-c.incoming:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.readDone:
		select {
		case msg := <-c.incoming:
			return msg, nil
		default:
		}
		return nil, c.readErr
	}
}

// Close закрывает соединение. Повторный вызов безопасен.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.ws.Close()
	})
	return err
}

// RemoteAddr возвращает адрес удаленной стороны
func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *wsConn) readLoop() {
	defer close(c.readDone)

	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.readErr = c.wrapErr(err)
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))

		var msg api.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Dropping undecodable message",
				"remote_addr", c.RemoteAddr(),
				"error", err)
			continue
		}

		select {
		case c.incoming <- &msg:
		case <-c.closed:
			c.readErr = ErrClosed
			return
		}
	}
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("Ping failed", "remote_addr", c.RemoteAddr(), "error", err)
				return
			}
		case <-c.closed:
			return
		case <-c.readDone:
			return
		}
	}
}

// wrapErr приводит ошибки закрытия к ErrClosed
func (c *wsConn) wrapErr(err error) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	if errors.Is(err, websocket.ErrCloseSent) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrClosed
	}

	// Любая ошибка чтения/записи делает соединение непригодным
	return fmt.Errorf("%w: %v", ErrClosed, err)
}
