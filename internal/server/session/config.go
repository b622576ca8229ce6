package session

import (
	"time"

	"github.com/iudanet/codesync/internal/awareness"
)

// Config параметры координаторов проектов
type Config struct {
	// IdleTimeout время жизни координатора после ухода последней реплики
	IdleTimeout time.Duration
	// SnapshotInterval период сохранения снимка (0 - только при остановке)
	SnapshotInterval time.Duration
	// HandshakeTimeout время ожидания hello после подключения
	HandshakeTimeout time.Duration

	AwarenessTimeout time.Duration
	AwarenessGrace   time.Duration
	// SweepInterval период удаления устаревших записей присутствия
	SweepInterval time.Duration

	// SendQueue емкость очереди исходящих сообщений реплики.
	// Переполнение отключает реплику.
	SendQueue int
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		IdleTimeout:      time.Minute,
		SnapshotInterval: 30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		AwarenessTimeout: awareness.DefaultTimeout,
		AwarenessGrace:   awareness.DefaultGrace,
		SweepInterval:    time.Second,
		SendQueue:        256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.SnapshotInterval < 0 {
		c.SnapshotInterval = 0
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.AwarenessTimeout <= 0 {
		c.AwarenessTimeout = d.AwarenessTimeout
	}
	if c.AwarenessGrace <= 0 {
		c.AwarenessGrace = d.AwarenessGrace
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.SendQueue <= 0 {
		c.SendQueue = d.SendQueue
	}
	return c
}
