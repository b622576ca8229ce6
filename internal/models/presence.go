package models

// Cursor позиция курсора и выделения в текстовом документе
type Cursor struct {
	DocumentID string `json:"document_id"`
	Anchor     int    `json:"anchor"`
	Head       int    `json:"head"`
}

// User отображаемые данные участника сессии
type User struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Presence эфемерная запись присутствия реплики (awareness).
// Не сливается по правилам CRDT: побеждает запись с большим Clock.
type Presence struct {
	ReplicaID string  `json:"replica_id"`
	Clock     int64   `json:"clock"`
	User      User    `json:"user"`
	Cursor    *Cursor `json:"cursor,omitempty"`
	// Left true означает, что реплика покинула сессию (запись удалена)
	Left bool `json:"left,omitempty"`
}

// Clone создает копию записи присутствия
func (p *Presence) Clone() Presence {
	c := *p
	if p.Cursor != nil {
		cursor := *p.Cursor
		c.Cursor = &cursor
	}
	return c
}
