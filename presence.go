package main

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// UserStatus is the presence state reported to the rest of the platform.
type UserStatus string

const (
	StatusOnline UserStatus = "online"
	StatusInGame UserStatus = "ingame"
)

// Presence is the status collaborator. The gateway calls SetStatus on
// connect, join, exit and disconnect; the platform reads it back via
// Get/IsOnline. Last-seen timestamps are persisted.
type Presence struct {
	mu     sync.RWMutex
	status map[int64]UserStatus
	db     *DB
}

// NewPresence creates the presence tracker. db may be nil in tests.
func NewPresence(db *DB) *Presence {
	return &Presence{status: make(map[int64]UserStatus), db: db}
}

// SetStatus records an identity's status change.
func (p *Presence) SetStatus(id int64, s UserStatus) {
	p.mu.Lock()
	p.status[id] = s
	p.mu.Unlock()

	if p.db != nil {
		if err := p.db.TouchLastSeen(id); err != nil {
			logrus.WithError(err).WithField("player", id).Warn("presence: last_seen update failed")
		}
	}
	logrus.WithFields(logrus.Fields{"player": id, "status": s}).Debug("status change")
}

// Clear drops an identity from presence tracking (connection gone).
func (p *Presence) Clear(id int64) {
	p.mu.Lock()
	delete(p.status, id)
	p.mu.Unlock()
}

// Get returns the identity's current status; absent identities are
// offline ("").
func (p *Presence) Get(id int64) UserStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status[id]
}

// IsOnline reports whether the identity has a live connection.
func (p *Presence) IsOnline(id int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.status[id]
	return ok
}
