package replica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/codesync/internal/awareness"
	"github.com/iudanet/codesync/internal/client/storage"
	"github.com/iudanet/codesync/internal/crdt"
	"github.com/iudanet/codesync/internal/document"
	"github.com/iudanet/codesync/internal/models"
	"github.com/iudanet/codesync/internal/transport"
	"github.com/iudanet/codesync/pkg/api"
)

var (
	errOutboxOverflow = errors.New("outbox overflow")
	errDrained        = errors.New("outbox drained")
)

// link одно установленное соединение с координатором
type link struct {
	conn    transport.Conn
	out     chan *api.Message
	drop    context.CancelCauseFunc
	drained chan struct{}
}

// send ставит сообщение в очередь без блокировки. Переполнение разрывает
// соединение: недоставленное будет дослано handshake после переподключения.
func (l *link) send(msg *api.Message) {
	select {
	case l.out <- msg:
	default:
		l.drop(errOutboxOverflow)
	}
}

// notification изменения документа, которые нужно разослать подписчикам
// после выхода из критической секции
type notification struct {
	doc   *document.Document
	ops   []models.Operation
	local bool
}

// Session подключение реплики к проекту. Владеет документами проекта:
// все мутации документов сериализуются мьютексом сессии, подписчики
// вызываются вне его в порядке применения изменений.
type Session struct {
	clock  *crdt.LamportClock
	peers  *awareness.Map
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}

	statusSubs    subscribers[StatusEvent]
	awarenessSubs subscribers[AwarenessEvent]

	mu        sync.Mutex
	docs      map[string]*DocumentHandle
	link      *link
	live      chan struct{}
	self      *models.Presence
	seen      map[string]models.StateVector
	epoch     string
	replicaID string
	// lost описание неподтвержденной потери данных
	lost    string
	lastErr error
	opts    Options
	// queue изменения документов, ожидающие рассылки
	queue       []notification
	status      Status
	closing     bool
	dispatching bool
}

// Connect открывает сессию проекта: восстанавливает документы из Store и
// запускает в фоне подключение к координатору с handshake и
// переподключением. Не ждет соединения, см. WaitLive.
func Connect(ctx context.Context, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if opts.ProjectID == "" {
		return nil, errors.New("project id is required")
	}
	if opts.Dialer == nil {
		return nil, errors.New("dialer is required")
	}

	s := &Session{
		opts:   opts,
		logger: opts.Logger.With("project_id", opts.ProjectID),
		peers:  awareness.New(opts.AwarenessTimeout, 0),
		docs:   make(map[string]*DocumentHandle),
		live:   make(chan struct{}),
		done:   make(chan struct{}),
		status: StatusOffline,
	}

	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	if opts.OnStatusChange != nil {
		s.statusSubs.add(opts.OnStatusChange)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(runCtx)

	s.logger.Info("Session opened",
		"replica_id", s.replicaID,
		"documents", len(s.docs))

	return s, nil
}

// restore загружает идентичность реплики и журналы документов
func (s *Session) restore(ctx context.Context) error {
	store := s.opts.Store
	replicaID := s.opts.ReplicaID

	if store != nil {
		state, err := store.GetReplica(ctx, s.opts.ProjectID)
		switch {
		case err == nil:
			if replicaID == "" {
				replicaID = state.ReplicaID
			}
			s.epoch = state.Epoch
			s.seen = state.Seen
			s.lost = state.DataLoss
		case errors.Is(err, storage.ErrReplicaNotFound):
		default:
			return fmt.Errorf("failed to load replica state: %w", err)
		}
	}

	if replicaID == "" {
		s.clock = crdt.NewLamportClock()
	} else {
		s.clock = crdt.NewLamportClockWithNodeID(replicaID)
	}
	s.replicaID = s.clock.GetNodeID()

	if store == nil {
		return nil
	}

	snapshots, err := store.LoadDocuments(ctx, s.opts.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	for _, snapshot := range snapshots {
		h := s.document(snapshot.DocumentID, snapshot.Kind)
		h.doc.Merge(snapshot)
		if n := h.doc.PendingLen(); n > 0 {
			s.logger.Warn("Stored operations with missing dependencies",
				"document_id", snapshot.DocumentID,
				"pending", n)
		}
	}
	s.advanceClock()

	return s.saveState(s.replicaState())
}

// advanceClock сдвигает часы за все clock, которые реплика видела при
// последней синхронизации. Журнал мог не сохранить последние собственные
// операции, уже полученные координатором: их ID нельзя выдавать повторно.
func (s *Session) advanceClock() {
	var seen int64
	for _, sv := range s.seen {
		seen = max(seen, sv.Max())
	}

	if seen > s.clock.GetTimestamp() {
		s.logger.Info("Clock advanced past synchronized operations",
			"from", s.clock.GetTimestamp(),
			"to", seen)
		s.clock.SetTimestamp(seen)
	}
}

// ReplicaID возвращает идентификатор реплики
func (s *Session) ReplicaID() string {
	return s.replicaID
}

// ProjectID возвращает идентификатор проекта
func (s *Session) ProjectID() string {
	return s.opts.ProjectID
}

// Status возвращает текущее состояние подключения и причину последнего
// перехода. Пока потеря данных не подтверждена, при переходе без ошибки
// причиной остается ErrDataLoss.
func (s *Session) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastErr == nil {
		return s.status, s.dataLoss()
	}
	return s.status, s.lastErr
}

// DataLoss возвращает обнаруженную потерю операций (ErrDataLoss) или nil.
// Отметка хранится в Store и переживает перезапуск до вызова
// AcknowledgeDataLoss.
func (s *Session) DataLoss() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataLoss()
}

// AcknowledgeDataLoss снимает отметку о потере данных
func (s *Session) AcknowledgeDataLoss() error {
	s.mu.Lock()
	if s.lost == "" {
		s.mu.Unlock()
		return nil
	}
	s.lost = ""
	state := s.replicaState()
	s.mu.Unlock()

	s.logger.Info("Data loss acknowledged")
	return s.saveState(state)
}

func (s *Session) dataLoss() error {
	if s.lost == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDataLoss, s.lost)
}

// Epoch возвращает эпоху координатора последней синхронизации
func (s *Session) Epoch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Document возвращает документ, создавая пустой при первом обращении.
// Дерево файлов (models.FileTreeDocumentID) - map-документ, остальные - текст.
func (s *Session) Document(id string) *DocumentHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document(id, documentKind(id))
}

// Documents возвращает идентификаторы известных документов
func (s *Session) Documents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FileTree возвращает дерево файлов проекта
func (s *Session) FileTree() *FileTree {
	return &FileTree{h: s.Document(models.FileTreeDocumentID)}
}

// OnStatusChange подписывает на смену состояния подключения.
// Возвращает функцию отписки.
func (s *Session) OnStatusChange(fn func(StatusEvent)) func() {
	return s.statusSubs.add(fn)
}

// WaitLive ждет завершения handshake
func (s *Session) WaitLive(ctx context.Context) error {
	s.mu.Lock()
	if s.closing || s.status == StatusClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.status == StatusLive {
		s.mu.Unlock()
		return nil
	}
	live := s.live
	s.mu.Unlock()

	select {
	case <-live:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect завершает сессию: отправляет оставшиеся сообщения и запись
// ухода, закрывает соединение и сохраняет состояние реплики.
// Повторный вызов безопасен.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closing = true

	l := s.link
	if l != nil {
		if s.self != nil {
			left := *s.self
			left.Clock = nextPresenceClock(left.Clock)
			left.Cursor = nil
			left.Left = true
			l.send(api.NewAwareness(left))
		}
		l.send(nil)
	}
	s.mu.Unlock()

	if l != nil {
		timer := time.NewTimer(time.Second)
		select {
		case <-l.drained:
		case <-timer.C:
			s.logger.Warn("Outbox was not flushed before disconnect")
		}
		timer.Stop()
	}

	s.cancel()
	<-s.done

	s.mu.Lock()
	s.seen = s.stateVectors()
	state := s.replicaState()
	ev := s.transition(StatusClosed, nil)
	s.mu.Unlock()

	err := s.saveState(state)
	s.statusSubs.notify(s.logger, ev)

	s.logger.Info("Session closed", "replica_id", s.replicaID)
	return err
}

// run цикл подключения с экспоненциальной паузой между попытками
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.MinBackoff
	b.MaxInterval = s.opts.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		s.setStatus(StatusConnecting, nil)

		live, err := s.connect(ctx)
		if ctx.Err() != nil || s.isClosing() {
			return
		}
		if live {
			b.Reset()
		}

		wait := b.NextBackOff()
		s.logger.Warn("Disconnected from coordinator",
			"error", err,
			"retry_in", wait)
		s.setStatus(StatusOffline, fmt.Errorf("%w: %w", ErrTransportDisconnected, err))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// connect обслуживает одно соединение до его разрыва. live сообщает,
// что handshake был завершен.
func (s *Session) connect(ctx context.Context) (bool, error) {
	conn, err := s.opts.Dialer.Dial(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if err := conn.Send(ctx, s.hello()); err != nil {
		return false, err
	}

	l := &link{
		conn:    conn,
		out:     make(chan *api.Message, s.opts.OutboxSize),
		drop:    cancel,
		drained: make(chan struct{}),
	}
	s.attach(l)
	defer s.detach(l)

	var live atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.writeLoop(gctx, l)
	})
	g.Go(func() error {
		return s.readLoop(gctx, l, &live)
	})
	g.Go(func() error {
		return s.heartbeat(gctx, l)
	})

	err = g.Wait()
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		err = cause
	}

	return live.Load(), err
}

func (s *Session) hello() *api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make(map[string]api.DocumentState, len(s.docs))
	for id, h := range s.docs {
		docs[id] = api.DocumentState{
			Kind:        h.doc.Kind(),
			StateVector: h.doc.StateVector(),
		}
	}

	return api.NewHello(api.Hello{
		ReplicaID: s.replicaID,
		Epoch:     s.epoch,
		Documents: docs,
	})
}

// attach делает соединение текущим: с этого момента локальные операции
// отправляются сразу
func (s *Session) attach(l *link) {
	s.mu.Lock()
	s.link = l
	ev := s.transition(StatusSyncing, nil)
	s.mu.Unlock()

	s.statusSubs.notify(s.logger, ev)
}

func (s *Session) detach(l *link) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.link == l {
		s.link = nil
	}
}

func (s *Session) writeLoop(ctx context.Context, l *link) error {
	for {
		select {
		case msg := <-l.out:
			if msg == nil {
				close(l.drained)
				return errDrained
			}
			if err := l.conn.Send(ctx, msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) readLoop(ctx context.Context, l *link, live *atomic.Bool) error {
	for {
		msg, err := l.conn.Receive(ctx)
		if err != nil {
			return err
		}

		if err := msg.Validate(); err != nil {
			s.logger.Warn("Dropping invalid message", "error", err)
			continue
		}

		switch msg.Type {
		case api.TypeSyncStep:
			s.handleSyncStep(l, msg.SyncStep)
			live.Store(true)
		case api.TypeUpdate:
			s.handleUpdate(msg.Update)
		case api.TypeAwareness:
			s.handleAwareness(*msg.Awareness)
		case api.TypeError:
			if err := s.handleError(msg.Error); err != nil {
				return err
			}
		default:
			s.logger.Debug("Ignoring unexpected message", "type", msg.Type)
		}
	}
}

// heartbeat переотправляет собственное присутствие и удаляет устаревшие
// записи других реплик
func (s *Session) heartbeat(ctx context.Context, l *link) error {
	ticker := time.NewTicker(s.peers.Timeout() / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if s.self != nil && s.link == l && s.status == StatusLive {
				s.self.Clock = nextPresenceClock(s.self.Clock)
				l.send(api.NewAwareness(*s.self))
			}
			s.mu.Unlock()

			for _, p := range s.peers.Expire(time.Now()) {
				s.awarenessSubs.notify(s.logger, AwarenessEvent{Presence: p})
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleSyncStep применяет недостающие операции, отвечает операциями,
// которых нет у координатора, и переводит сессию в Live
func (s *Session) handleSyncStep(l *link, step *api.SyncStep) {
	var (
		events   []StatusEvent
		received int
		sent     int
	)

	s.mu.Lock()

	lost := s.epoch != "" && step.Epoch != s.epoch
	var lossErr error
	if lost {
		if missing := s.checkLoss(step); missing != "" {
			s.recordLoss(missing)
			lossErr = fmt.Errorf("%w: %s", ErrDataLoss, missing)
		}
	}

	ids := make([]string, 0, len(step.Documents))
	for id := range step.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		diff := step.Documents[id]
		h := s.document(id, diff.Kind)
		if h.doc.Kind() != diff.Kind {
			s.logger.Warn("Document kind mismatch",
				"document_id", id,
				"local", h.doc.Kind(),
				"remote", diff.Kind)
			continue
		}

		applied := h.doc.ApplyRemote(diff.Ops...)
		if len(applied) > 0 {
			s.persist(h.doc, applied)
			s.enqueue(notification{doc: h.doc, ops: applied})
			received += len(applied)
		}
	}

	reply := api.SyncReply{Documents: make(map[string]api.DocumentDiff)}
	for id, h := range s.docs {
		ops := h.doc.Missing(step.Documents[id].StateVector)
		if len(ops) == 0 {
			continue
		}
		reply.Documents[id] = api.DocumentDiff{Kind: h.doc.Kind(), Ops: ops}
		sent += len(ops)
	}
	l.send(api.NewSyncReply(reply))

	if s.self != nil {
		s.self.Clock = nextPresenceClock(s.self.Clock)
		l.send(api.NewAwareness(*s.self))
	}

	presence := s.resetPeers(step.Awareness)

	s.epoch = step.Epoch
	s.seen = s.stateVectors()
	state := s.replicaState()

	if lost {
		events = append(events, s.transition(StatusSyncing, ErrCoordinatorStateLost))
	}
	if lossErr != nil {
		events = append(events, s.transition(StatusSyncing, lossErr))
	}
	events = append(events, s.transition(StatusLive, nil))

	s.mu.Unlock()

	if err := s.saveState(state); err != nil {
		s.logger.Warn("Failed to save replica state", "error", err)
	}

	s.logger.Info("Synchronized with coordinator",
		"epoch", step.Epoch,
		"state_lost", lost,
		"received", received,
		"sent", sent)
	if lossErr != nil {
		s.logger.Error("Operations lost after coordinator restart", "error", lossErr)
	}

	s.flush()
	for _, ev := range presence {
		s.awarenessSubs.notify(s.logger, ev)
	}
	for _, ev := range events {
		s.statusSubs.notify(s.logger, ev)
	}
}

// checkLoss ищет операции, которые реплика видела до перезапуска
// координатора, но которых нет ни в ее журнале, ни у нового координатора.
// Возвращает описание пропущенных диапазонов или пустую строку.
func (s *Session) checkLoss(step *api.SyncStep) string {
	var missing []string

	for id, seen := range s.seen {
		var local models.StateVector
		if h, ok := s.docs[id]; ok {
			local = h.doc.StateVector()
		}
		remote := step.Documents[id].StateVector

		for replica, clock := range seen {
			if have := max(local.Get(replica), remote.Get(replica)); clock > have {
				missing = append(missing, fmt.Sprintf("%s: %s %d..%d", id, replica, have+1, clock))
			}
		}
	}

	if len(missing) == 0 {
		return ""
	}
	sort.Strings(missing)
	return strings.Join(missing, "; ")
}

// recordLoss добавляет пропущенные диапазоны к неподтвержденной потере.
// Вызывается под s.mu.
func (s *Session) recordLoss(missing string) {
	if s.lost == "" {
		s.lost = missing
		return
	}
	s.lost += "; " + missing
}

// resetPeers заменяет таблицу присутствия снимком координатора
func (s *Session) resetPeers(snapshot []models.Presence) []AwarenessEvent {
	now := time.Now()
	before := s.peers.Snapshot()
	s.peers.Clear()

	var events []AwarenessEvent
	current := make(map[string]bool, len(snapshot))
	for _, p := range snapshot {
		if p.ReplicaID == s.replicaID {
			continue
		}
		current[p.ReplicaID] = true
		if s.peers.Apply(p, now) {
			events = append(events, AwarenessEvent{Presence: p})
		}
	}

	for _, p := range before {
		if current[p.ReplicaID] {
			continue
		}
		p.Clock++
		p.Cursor = nil
		p.Left = true
		events = append(events, AwarenessEvent{Presence: p})
	}

	return events
}

func (s *Session) handleUpdate(u *api.Update) {
	s.mu.Lock()
	h := s.document(u.DocumentID, u.Kind)
	if h.doc.Kind() != u.Kind {
		s.mu.Unlock()
		s.logger.Warn("Dropping update of foreign kind",
			"document_id", u.DocumentID,
			"local", h.doc.Kind(),
			"remote", u.Kind)
		return
	}

	applied := h.doc.ApplyRemote(u.Ops...)
	if len(applied) > 0 {
		s.persist(h.doc, applied)
		s.enqueue(notification{doc: h.doc, ops: applied})
	}
	s.mu.Unlock()

	s.flush()
}

func (s *Session) handleAwareness(p models.Presence) {
	if p.ReplicaID == s.replicaID {
		return
	}
	if s.peers.Apply(p, time.Now()) {
		s.awarenessSubs.notify(s.logger, AwarenessEvent{Presence: p})
	}
}

func (s *Session) handleError(e *api.ErrorMessage) error {
	if e.Code == api.CodeBadMessage {
		s.logger.Warn("Coordinator rejected message", "message", e.Message)
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrProtocol, e.Code, e.Message)
}

// enqueue ставит изменения в очередь рассылки. Вызывается под s.mu,
// поэтому порядок очереди совпадает с порядком применения.
func (s *Session) enqueue(n notification) {
	if len(n.ops) == 0 {
		return
	}
	s.queue = append(s.queue, n)
}

// flush рассылает очередь изменений. Вызывается без s.mu.
// Рассылку ведет одна горутина: если очередь уже разбирается, новые
// изменения будут доставлены ею следом за предыдущими.
func (s *Session) flush() {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true

	for len(s.queue) > 0 {
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, n := range batch {
			n.doc.Notify(document.Event{DocumentID: n.doc.ID(), Ops: n.ops, Local: n.local})
		}

		s.mu.Lock()
	}

	s.dispatching = false
	s.mu.Unlock()
}

// document возвращает документ, создавая его при необходимости.
// Существующий документ возвращается независимо от kind. Вызывается под s.mu.
func (s *Session) document(id string, kind models.DocumentKind) *DocumentHandle {
	if h, ok := s.docs[id]; ok {
		return h
	}

	h := &DocumentHandle{
		s:   s,
		doc: document.New(id, kind, s.clock, s.logger),
	}
	s.docs[id] = h

	return h
}

// persist дописывает операции в локальное хранилище. Ошибка хранилища не
// мешает редактированию: недостающее вернется от координатора при handshake.
// Вызывается под s.mu, чтобы порядок записи совпадал с порядком применения.
func (s *Session) persist(doc *document.Document, ops []models.Operation) {
	if s.opts.Store == nil || len(ops) == 0 {
		return
	}

	err := s.opts.Store.AppendOperations(context.Background(), s.opts.ProjectID, doc.ID(), doc.Kind(), ops)
	if err != nil {
		s.logger.Warn("Failed to persist operations",
			"document_id", doc.ID(),
			"operations", len(ops),
			"error", err)
	}
}

func (s *Session) stateVectors() map[string]models.StateVector {
	result := make(map[string]models.StateVector, len(s.docs))
	for id, h := range s.docs {
		result[id] = h.doc.StateVector()
	}
	return result
}

func (s *Session) replicaState() *storage.ReplicaState {
	return &storage.ReplicaState{
		ProjectID: s.opts.ProjectID,
		ReplicaID: s.replicaID,
		Epoch:     s.epoch,
		Seen:      s.seen,
		DataLoss:  s.lost,
	}
}

func (s *Session) saveState(state *storage.ReplicaState) error {
	if s.opts.Store == nil {
		return nil
	}
	if err := s.opts.Store.SaveReplica(context.Background(), state); err != nil {
		return fmt.Errorf("failed to save replica state: %w", err)
	}
	return nil
}

func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// setStatus меняет состояние и уведомляет подписчиков. После Disconnect
// состояние не меняется.
func (s *Session) setStatus(status Status, err error) {
	s.mu.Lock()
	if s.closing || s.status == StatusClosed {
		s.mu.Unlock()
		return
	}
	ev := s.transition(status, err)
	s.mu.Unlock()

	s.statusSubs.notify(s.logger, ev)
}

// transition меняет состояние под s.mu и возвращает событие для рассылки
func (s *Session) transition(status Status, err error) StatusEvent {
	if s.status == StatusLive && status != StatusLive {
		s.live = make(chan struct{})
	}
	if status == StatusLive && s.status != StatusLive {
		close(s.live)
	}
	s.status = status
	s.lastErr = err

	return StatusEvent{Status: status, Err: err}
}
