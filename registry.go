package main

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// RoomRegistry holds every active room, keyed by room name. Name
// uniqueness is the only invariant enforced here; rooms are inserted
// fully constructed so no caller observes a partial one.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*Room)}
}

// Create builds and inserts a room under the given name, failing with
// Conflict when the name is taken.
func (rr *RoomRegistry) Create(name string, cfg *Config, results ResultSink) (*Room, *GameError) {
	room := NewRoom(name, cfg, rr, results)

	rr.mu.Lock()
	defer rr.mu.Unlock()
	if _, exists := rr.rooms[name]; exists {
		return nil, errf(ErrConflict, "room %s already exists", name)
	}
	rr.rooms[name] = room
	logrus.WithField("room", name).Debug("room created")
	return room, nil
}

// Find returns the room or nil.
func (rr *RoomRegistry) Find(name string) *Room {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return rr.rooms[name]
}

// Remove deletes the room; removing an absent name is a no-op.
func (rr *RoomRegistry) Remove(name string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if _, ok := rr.rooms[name]; ok {
		delete(rr.rooms, name)
		logrus.WithField("room", name).Debug("room removed")
	}
}

// List snapshots every room for the room browser.
func (rr *RoomRegistry) List() []RoomInfo {
	rooms := rr.snapshot()
	list := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		list = append(list, room.Info())
	}
	return list
}

// RoomOf returns the room the identity belongs to, or nil. Room locks
// are taken after the registry lock is released, never under it.
func (rr *RoomRegistry) RoomOf(id int64) *Room {
	for _, room := range rr.snapshot() {
		if room.HasMember(id) {
			return room
		}
	}
	return nil
}

// snapshot copies the room set so callers can take room locks without
// holding the registry lock.
func (rr *RoomRegistry) snapshot() []*Room {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	rooms := make([]*Room, 0, len(rr.rooms))
	for _, room := range rr.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Count returns the number of active rooms.
func (rr *RoomRegistry) Count() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.rooms)
}
