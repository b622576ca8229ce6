package session

import "errors"

var (
	// ErrSessionClosed координатор проекта остановлен
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionNotFound для проекта нет активного координатора
	ErrSessionNotFound = errors.New("session not found")

	// ErrSlowConsumer реплика отключена из-за переполнения очереди отправки
	ErrSlowConsumer = errors.New("slow consumer")

	// ErrHandshakeTimeout реплика не прислала hello вовремя
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrProtocolVersion реплика использует другую версию протокола
	ErrProtocolVersion = errors.New("unsupported protocol version")

	// ErrSessionActive операция недоступна, пока координатор проекта работает
	ErrSessionActive = errors.New("session is active")

	// ErrNoSnapshotStore сервер запущен без хранилища снимков
	ErrNoSnapshotStore = errors.New("snapshots are not persisted")
)
