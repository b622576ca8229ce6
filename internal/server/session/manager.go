package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/iudanet/codesync/internal/server/metrics"
	"github.com/iudanet/codesync/internal/server/storage"
	"github.com/iudanet/codesync/internal/transport"
	"github.com/iudanet/codesync/pkg/api"
)

// Manager реестр координаторов: создает координатор проекта при первом
// подключении и забывает его после остановки
type Manager struct {
	ctx      context.Context
	cancel   context.CancelFunc
	store    storage.SnapshotStorage
	metrics  *metrics.Metrics
	logger   *slog.Logger
	sessions map[string]*Coordinator
	cfg      Config
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

// NewManager создает реестр. store и m могут быть nil.
func NewManager(cfg Config, store storage.SnapshotStorage, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		store:    store,
		metrics:  m,
		logger:   logger,
		sessions: make(map[string]*Coordinator),
	}
}

// Attach подключает соединение реплики к сессии проекта и блокируется
// до отключения
func (m *Manager) Attach(ctx context.Context, projectID string, conn transport.Conn) error {
	for {
		c, err := m.coordinator(projectID)
		if err != nil {
			return err
		}

		err = c.Serve(ctx, conn)
		if errors.Is(err, ErrSessionClosed) {
			// Координатор остановился между поиском и подключением
			continue
		}
		return err
	}
}

// Stats возвращает сводку по активной сессии проекта
func (m *Manager) Stats(ctx context.Context, projectID string) (api.ProjectStats, error) {
	m.mu.Lock()
	c, ok := m.sessions[projectID]
	m.mu.Unlock()

	if !ok {
		return api.ProjectStats{}, ErrSessionNotFound
	}

	stats, err := c.Stats(ctx)
	if errors.Is(err, ErrSessionClosed) {
		return api.ProjectStats{}, ErrSessionNotFound
	}
	return stats, err
}

// Sessions возвращает id проектов с активным координатором
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SavedProjects возвращает id проектов с сохраненным снимком
func (m *Manager) SavedProjects(ctx context.Context) ([]string, error) {
	if m.store == nil {
		return nil, ErrNoSnapshotStore
	}

	ids, err := m.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteSnapshot удаляет снимок проекта без активной сессии.
// Следующее подключение начнет проект с новой эпохой.
func (m *Manager) DeleteSnapshot(ctx context.Context, projectID string) error {
	if m.store == nil {
		return ErrNoSnapshotStore
	}

	// Под m.mu координатор проекта не может ни появиться, ни загрузить снимок
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[projectID]; ok {
		return ErrSessionActive
	}

	if err := m.store.DeleteSnapshot(ctx, projectID); err != nil {
		return err
	}

	m.logger.Info("Project snapshot deleted", "project_id", projectID)
	return nil
}

// Shutdown останавливает все координаторы (с сохранением снимков) и ждет
// их завершения
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) coordinator(projectID string) (*Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrSessionClosed
	}

	if c, ok := m.sessions[projectID]; ok {
		return c, nil
	}

	var c *Coordinator
	c = NewCoordinator(projectID, m.cfg, m.store, m.metrics, m.logger, func() {
		m.remove(projectID, c)
	})
	m.sessions[projectID] = c

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-c.Done()
	}()

	c.Start(m.ctx)

	return c, nil
}

func (m *Manager) remove(projectID string, c *Coordinator) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[projectID] == c {
		delete(m.sessions, projectID)
	}
}
