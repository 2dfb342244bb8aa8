package main

import "github.com/sirupsen/logrus"

// Matchmaker pairs an unmatched connection with a pending room, or
// creates one. Pending rooms stay joinable indefinitely; there is no
// reclamation timeout.
type Matchmaker struct {
	registry *RoomRegistry
	cfg      *Config
	results  ResultSink
}

// NewMatchmaker wires the matchmaker to the registry.
func NewMatchmaker(registry *RoomRegistry, cfg *Config, results ResultSink) *Matchmaker {
	return &Matchmaker{registry: registry, cfg: cfg, results: results}
}

// RequestMatch returns the room the caller was matched into. A caller
// who is already a member of any room is not matched twice: that case
// is a logged no-op and both return values are nil.
func (m *Matchmaker) RequestMatch(mem Member) (*Room, *GameError) {
	if existing := m.registry.RoomOf(mem.ID); existing != nil {
		logrus.WithFields(logrus.Fields{
			"user": mem.Username,
			"room": existing.Name(),
		}).Info("match request ignored, already in a room")
		return nil, nil
	}

	for _, room := range m.registry.snapshot() {
		if room.TryMatch(mem) {
			logrus.WithFields(logrus.Fields{"user": mem.Username, "room": room.Name()}).Info("matched into pending room")
			return room, nil
		}
	}

	// No pending opponent: open a new pending room.
	var room *Room
	for {
		var ge *GameError
		room, ge = m.registry.Create(GenerateRoomName(), m.cfg, m.results)
		if ge == nil {
			break
		}
		// Name collision, roll again.
	}
	room.markPending()
	if _, ge := room.Join(mem); ge != nil {
		return nil, ge
	}
	logrus.WithFields(logrus.Fields{"user": mem.Username, "room": room.Name()}).Info("opened pending room")
	return room, nil
}
