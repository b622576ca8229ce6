// Package session координатор сессии проекта: актор, который владеет
// документами проекта, таблицей присутствия и списком подключенных реплик,
// выполняет handshake и пересылает примененные операции остальным репликам.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/codesync/internal/awareness"
	"github.com/iudanet/codesync/internal/document"
	"github.com/iudanet/codesync/internal/models"
	"github.com/iudanet/codesync/internal/server/metrics"
	"github.com/iudanet/codesync/internal/server/storage"
	"github.com/iudanet/codesync/internal/transport"
	"github.com/iudanet/codesync/pkg/api"
)

const (
	inboxSize   = 64
	saveTimeout = 5 * time.Second
)

// События очереди координатора
type (
	joinEvent struct {
		peer     *peer
		accepted chan struct{}
	}
	leaveEvent struct {
		peer *peer
	}
	messageEvent struct {
		peer *peer
		msg  *api.Message
	}
	handshakeTimeoutEvent struct {
		peer *peer
	}
	statsEvent struct {
		reply chan api.ProjectStats
	}
	snapshotEvent struct {
		reply chan *storage.ProjectSnapshot
	}
)

// Coordinator единственный авторитетный участник сессии проекта.
// Все изменения состояния выполняет одна горутина (run), остальные
// взаимодействуют с ней через inbox.
type Coordinator struct {
	startedAt time.Time
	store     storage.SnapshotStorage
	logger    *slog.Logger
	metrics   *metrics.Metrics
	inbox     chan any
	done      chan struct{}
	onStop    func()
	projectID string
	cfg       Config

	// Принадлежат горутине run
	epoch     string
	docs      map[string]*document.Document
	peers     map[*peer]struct{}
	awareness *awareness.Map
	idle      *time.Timer
	dirty     bool
}

// NewCoordinator создает координатор проекта. store и m могут быть nil.
// onStop вызывается после остановки до того, как Serve начнет возвращать
// ErrSessionClosed.
func NewCoordinator(projectID string, cfg Config, store storage.SnapshotStorage, m *metrics.Metrics,
	logger *slog.Logger, onStop func()) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &Coordinator{
		projectID: projectID,
		cfg:       cfg,
		store:     store,
		metrics:   m,
		logger:    logger.With("project_id", projectID),
		startedAt: time.Now(),
		onStop:    onStop,
		inbox:     make(chan any, inboxSize),
		done:      make(chan struct{}),
		docs:      make(map[string]*document.Document),
		peers:     make(map[*peer]struct{}),
		awareness: awareness.New(cfg.AwarenessTimeout, cfg.AwarenessGrace),
	}
}

// Start запускает горутину координатора. Снимок загружается в ней же,
// события до окончания загрузки ждут в очереди.
// Координатор работает до отмены ctx или до IdleTimeout без реплик.
func (c *Coordinator) Start(ctx context.Context) {
	c.metrics.SessionStarted()

	go c.run(ctx)
}

// Done закрывается после остановки координатора
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Serve обслуживает соединение реплики до его закрытия.
// Возвращает ErrSessionClosed, если координатор уже остановлен и реплика
// не была принята.
func (c *Coordinator) Serve(ctx context.Context, conn transport.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := newPeer(conn, c.cfg.SendQueue)
	p.stop = cancel
	join := joinEvent{peer: p, accepted: make(chan struct{})}

	select {
	case c.inbox <- join:
	case <-c.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// Событие могло остаться в буфере остановленного координатора
	select {
	case <-join.accepted:
	case <-c.done:
		select {
		case <-join.accepted:
		default:
			return ErrSessionClosed
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.readPump(gctx, c)
	})
	g.Go(func() error {
		return p.writePump(gctx)
	})
	err := g.Wait()
	kicked := p.kicked()

	select {
	case c.inbox <- leaveEvent{peer: p}:
	case <-c.done:
	}
	_ = conn.Close()

	switch {
	case kicked:
		return p.kickErr
	case errors.Is(err, transport.ErrClosed),
		errors.Is(err, ErrSessionClosed),
		errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

// Stats возвращает сводку по сессии
func (c *Coordinator) Stats(ctx context.Context) (api.ProjectStats, error) {
	reply := make(chan api.ProjectStats, 1)

	select {
	case c.inbox <- statsEvent{reply: reply}:
	case <-c.done:
		return api.ProjectStats{}, ErrSessionClosed
	case <-ctx.Done():
		return api.ProjectStats{}, ctx.Err()
	}

	select {
	case stats := <-reply:
		return stats, nil
	case <-c.done:
		return api.ProjectStats{}, ErrSessionClosed
	case <-ctx.Done():
		return api.ProjectStats{}, ctx.Err()
	}
}

// Snapshot возвращает текущее состояние всех документов
func (c *Coordinator) Snapshot(ctx context.Context) (*storage.ProjectSnapshot, error) {
	reply := make(chan *storage.ProjectSnapshot, 1)

	select {
	case c.inbox <- snapshotEvent{reply: reply}:
	case <-c.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) run(ctx context.Context) {
	c.load(ctx)

	c.idle = time.NewTimer(c.cfg.IdleTimeout)
	defer c.idle.Stop()

	sweep := time.NewTicker(c.cfg.SweepInterval)
	defer sweep.Stop()

	var snapshotC <-chan time.Time
	if c.store != nil && c.cfg.SnapshotInterval > 0 {
		ticker := time.NewTicker(c.cfg.SnapshotInterval)
		defer ticker.Stop()
		snapshotC = ticker.C
	}

	c.logger.Info("Session started", "epoch", c.epoch, "documents", len(c.docs))

	for {
		select {
		case ev := <-c.inbox:
			c.handle(ev)
		case now := <-sweep.C:
			c.expireAwareness(now)
		case <-snapshotC:
			c.save()
		case <-c.idle.C:
			c.logger.Info("Session idle, stopping")
			c.stop()
			return
		case <-ctx.Done():
			c.logger.Info("Session shutting down")
			c.stop()
			return
		}
	}
}

func (c *Coordinator) stop() {
	for p := range c.peers {
		c.kick(p, api.CodeShutdown, "session closed", nil)
		c.metrics.PeerDisconnected()
	}
	c.save()
	c.metrics.SessionStopped()

	if c.onStop != nil {
		c.onStop()
	}
	close(c.done)
}

func (c *Coordinator) handle(ev any) {
	switch e := ev.(type) {
	case joinEvent:
		c.join(e.peer)
		close(e.accepted)
	case leaveEvent:
		c.leave(e.peer)
	case messageEvent:
		c.handleMessage(e.peer, e.msg)
	case handshakeTimeoutEvent:
		if e.peer.state == StateConnecting {
			c.logger.Warn("Handshake timeout", "remote_addr", e.peer.conn.RemoteAddr())
			c.kick(e.peer, api.CodeHandshake, "hello was not received in time", ErrHandshakeTimeout)
		}
	case statsEvent:
		e.reply <- c.stats()
	case snapshotEvent:
		e.reply <- c.snapshot()
	}
}

func (c *Coordinator) join(p *peer) {
	c.peers[p] = struct{}{}
	c.idle.Stop()
	c.metrics.PeerConnected()

	p.timer = time.AfterFunc(c.cfg.HandshakeTimeout, func() {
		select {
		case c.inbox <- handshakeTimeoutEvent{peer: p}:
		case <-c.done:
		}
	})

	c.logger.Debug("Peer connected", "remote_addr", p.conn.RemoteAddr(), "peers", len(c.peers))
}

func (c *Coordinator) leave(p *peer) {
	if _, ok := c.peers[p]; !ok {
		return
	}
	delete(c.peers, p)
	p.close(nil, nil)
	c.metrics.PeerDisconnected()

	if p.replicaID != "" && !c.connected(p.replicaID) {
		c.awareness.Disconnect(p.replicaID, time.Now())
	}

	if len(c.peers) == 0 {
		c.idle.Reset(c.cfg.IdleTimeout)
	}

	c.logger.Debug("Peer disconnected",
		"replica_id", p.replicaID,
		"remote_addr", p.conn.RemoteAddr(),
		"peers", len(c.peers))
}

// connected сообщает, есть ли другое соединение той же реплики
func (c *Coordinator) connected(replicaID string) bool {
	for p := range c.peers {
		if p.replicaID == replicaID && p.state != StateDisconnected {
			return true
		}
	}
	return false
}

func (c *Coordinator) handleMessage(p *peer, msg *api.Message) {
	if p.state == StateDisconnected {
		return
	}

	if err := msg.Validate(); err != nil {
		c.logger.Warn("Invalid message", "replica_id", p.replicaID, "error", err)
		c.enqueue(p, api.NewError(api.CodeBadMessage, err.Error()))
		return
	}

	if p.state == StateConnecting && msg.Type != api.TypeHello {
		c.enqueue(p, api.NewError(api.CodeHandshake, fmt.Sprintf("%s before hello", msg.Type)))
		return
	}

	switch msg.Type {
	case api.TypeHello:
		c.handleHello(p, msg.Hello)
	case api.TypeSyncReply:
		c.handleSyncReply(p, msg.SyncReply)
	case api.TypeUpdate:
		c.applyOps(p, msg.Update.DocumentID, msg.Update.Kind, msg.Update.Ops)
	case api.TypeAwareness:
		c.handleAwareness(p, msg.Awareness)
	case api.TypeError:
		c.logger.Warn("Peer reported error",
			"replica_id", p.replicaID,
			"code", msg.Error.Code,
			"message", msg.Error.Message)
	default:
		c.enqueue(p, api.NewError(api.CodeBadMessage, fmt.Sprintf("unexpected %s", msg.Type)))
	}
}

func (c *Coordinator) handleHello(p *peer, hello *api.Hello) {
	if p.state != StateConnecting {
		c.enqueue(p, api.NewError(api.CodeBadMessage, "duplicate hello"))
		return
	}
	if hello.Version != api.ProtocolVersion {
		c.kick(p, api.CodeBadMessage,
			fmt.Sprintf("protocol version %d, want %d", hello.Version, api.ProtocolVersion), ErrProtocolVersion)
		return
	}

	p.timer.Stop()
	p.replicaID = hello.ReplicaID
	p.helloAt = time.Now()

	// Запись прошлого подключения не продлевается новым: реплика могла
	// перезапуститься и начать clock присутствия заново
	if _, ok := c.awareness.Remove(hello.ReplicaID); ok {
		c.logger.Debug("Dropped presence of previous connection", "replica_id", hello.ReplicaID)
	}
	c.awareness.Forget(hello.ReplicaID)

	for id, state := range hello.Documents {
		c.document(id, state.Kind)
	}

	step := api.SyncStep{
		Epoch:     c.epoch,
		Documents: make(map[string]api.DocumentDiff, len(c.docs)),
		Awareness: c.awareness.Snapshot(),
	}
	for id, doc := range c.docs {
		step.Documents[id] = api.DocumentDiff{
			Kind:        doc.Kind(),
			StateVector: doc.StateVector(),
			Ops:         doc.Missing(hello.Documents[id].StateVector),
		}
	}

	if c.enqueue(p, api.NewSyncStep(step)) {
		p.state = StateSyncing
	}

	c.logger.Debug("Handshake started",
		"replica_id", p.replicaID,
		"documents", len(step.Documents))
}

func (c *Coordinator) handleSyncReply(p *peer, reply *api.SyncReply) {
	if p.state != StateSyncing {
		c.enqueue(p, api.NewError(api.CodeBadMessage, "unexpected sync_reply"))
		return
	}

	ids := make([]string, 0, len(reply.Documents))
	for id := range reply.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		diff := reply.Documents[id]
		c.applyOps(p, id, diff.Kind, diff.Ops)
	}

	p.state = StateLive
	c.metrics.Handshake(time.Since(p.helloAt))

	c.logger.Info("Peer synchronized",
		"replica_id", p.replicaID,
		"remote_addr", p.conn.RemoteAddr(),
		"duration", time.Since(p.helloAt))
}

// applyOps применяет операции реплики и рассылает реально примененные.
// Отправителю возвращаются только операции других реплик, которые ждали
// в буфере и применились вместе с его операциями.
func (c *Coordinator) applyOps(from *peer, docID string, kind models.DocumentKind, ops []models.Operation) {
	if len(ops) == 0 {
		return
	}

	doc := c.document(docID, kind)
	if doc == nil {
		c.enqueue(from, api.NewError(api.CodeBadMessage,
			fmt.Sprintf("document %s is not %s", docID, kind)))
		return
	}

	applied := doc.ApplyRemote(ops...)
	if len(applied) == 0 {
		return
	}
	c.dirty = true
	c.metrics.OperationsAppliedAdd(string(doc.Kind()), len(applied))

	c.broadcast(from, api.NewUpdate(docID, doc.Kind(), applied))

	incoming := make(map[models.OpID]struct{}, len(ops))
	for i := range ops {
		incoming[ops[i].ID] = struct{}{}
	}

	var released []models.Operation
	for _, op := range applied {
		if _, ok := incoming[op.ID]; !ok && op.ID.Replica != from.replicaID {
			released = append(released, op)
		}
	}
	if len(released) > 0 {
		c.enqueue(from, api.NewUpdate(docID, doc.Kind(), released))
	}
}

func (c *Coordinator) handleAwareness(p *peer, presence *models.Presence) {
	if presence.ReplicaID != p.replicaID {
		c.enqueue(p, api.NewError(api.CodeBadMessage, "presence of another replica"))
		return
	}

	now := time.Now()
	if !c.awareness.Apply(*presence, now) {
		c.awareness.Touch(p.replicaID, now)
		return
	}

	c.broadcast(p, api.NewAwareness(*presence))
}

func (c *Coordinator) expireAwareness(now time.Time) {
	removed := c.awareness.Expire(now)
	if len(removed) == 0 {
		return
	}
	c.metrics.PresenceExpired(len(removed))

	for _, presence := range removed {
		c.logger.Debug("Presence expired", "replica_id", presence.ReplicaID)
		c.broadcast(nil, api.NewAwareness(presence))
	}
}

// document возвращает документ, создавая его при первом обращении.
// nil означает конфликт типов.
func (c *Coordinator) document(id string, kind models.DocumentKind) *document.Document {
	if doc, ok := c.docs[id]; ok {
		if kind != "" && doc.Kind() != kind {
			c.logger.Warn("Document kind mismatch",
				"document_id", id,
				"kind", doc.Kind(),
				"requested", kind)
			return nil
		}
		return doc
	}

	doc := document.New(id, kind, nil, c.logger)
	c.docs[id] = doc
	return doc
}

// broadcast ставит сообщение в очередь всем синхронизированным репликам,
// кроме except
func (c *Coordinator) broadcast(except *peer, msg *api.Message) {
	for p := range c.peers {
		if p == except || !p.synced() {
			continue
		}
		c.enqueue(p, msg)
	}
}

// enqueue ставит сообщение в очередь реплики без блокировки.
// Переполненная очередь отключает реплику: она догонит состояние
// при переподключении.
func (c *Coordinator) enqueue(p *peer, msg *api.Message) bool {
	if p.state == StateDisconnected {
		return false
	}

	select {
	case p.send <- msg:
		c.metrics.MessageSent(string(msg.Type))
		return true
	default:
		c.logger.Warn("Peer send queue overflow, disconnecting",
			"replica_id", p.replicaID,
			"remote_addr", p.conn.RemoteAddr(),
			"queue", cap(p.send))
		c.metrics.SlowConsumer()
		c.kick(p, api.CodeSlowConsumer, "send queue overflow", ErrSlowConsumer)
		return false
	}
}

func (c *Coordinator) kick(p *peer, code, message string, err error) {
	p.close(api.NewError(code, message), err)
}

func (c *Coordinator) stats() api.ProjectStats {
	stats := api.ProjectStats{
		ProjectID: c.projectID,
		Epoch:     c.epoch,
		StartedAt: c.startedAt,
		Awareness: c.awareness.Len(),
		Documents: make([]api.DocumentStats, 0, len(c.docs)),
		Peers:     make([]api.PeerStats, 0, len(c.peers)),
	}

	for id, doc := range c.docs {
		stats.Documents = append(stats.Documents, api.DocumentStats{
			ID:         id,
			Kind:       string(doc.Kind()),
			Digest:     doc.Digest(),
			Operations: doc.Len(),
			Pending:    doc.PendingLen(),
			Tombstones: doc.Tombstones(),
		})
	}
	sort.Slice(stats.Documents, func(i, j int) bool {
		return stats.Documents[i].ID < stats.Documents[j].ID
	})

	for p := range c.peers {
		stats.Peers = append(stats.Peers, api.PeerStats{
			ReplicaID: p.replicaID,
			State:     p.state.String(),
			Queued:    len(p.send),
		})
	}
	sort.Slice(stats.Peers, func(i, j int) bool {
		return stats.Peers[i].ReplicaID < stats.Peers[j].ReplicaID
	})

	return stats
}

func (c *Coordinator) snapshot() *storage.ProjectSnapshot {
	s := &storage.ProjectSnapshot{
		ProjectID: c.projectID,
		Epoch:     c.epoch,
		SavedAt:   time.Now(),
		Documents: make([]document.Snapshot, 0, len(c.docs)),
	}
	for _, doc := range c.docs {
		s.Documents = append(s.Documents, doc.Snapshot())
	}
	sort.Slice(s.Documents, func(i, j int) bool {
		return s.Documents[i].DocumentID < s.Documents[j].DocumentID
	})
	return s
}

// load восстанавливает документы и эпоху из снимка. Без снимка начинается
// новая эпоха: реплики увидят ее смену и отправят все свое состояние.
func (c *Coordinator) load(ctx context.Context) {
	c.epoch = uuid.NewString()
	if c.store == nil {
		return
	}

	start := time.Now()
	s, err := c.store.LoadSnapshot(ctx, c.projectID)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		return
	}
	c.metrics.Snapshot("load", time.Since(start), err)
	if err != nil {
		c.logger.Error("Failed to load snapshot, starting new epoch", "error", err)
		return
	}

	if s.Epoch != "" {
		c.epoch = s.Epoch
	}
	for _, ds := range s.Documents {
		doc := document.New(ds.DocumentID, ds.Kind, nil, c.logger)
		doc.Merge(ds)
		c.docs[ds.DocumentID] = doc
	}

	c.logger.Info("Snapshot loaded",
		"epoch", c.epoch,
		"documents", len(c.docs),
		"saved_at", s.SavedAt)
}

func (c *Coordinator) save() {
	if c.store == nil || !c.dirty {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	start := time.Now()
	err := c.store.SaveSnapshot(ctx, c.snapshot())
	c.metrics.Snapshot("save", time.Since(start), err)
	if err != nil {
		c.logger.Error("Failed to save snapshot", "error", err)
		return
	}
	c.dirty = false

	c.logger.Debug("Snapshot saved", "documents", len(c.docs))
}
