package realtime

import "sync"

// Room kinds. A room name is "<kind>:<id>".
const (
	KindUser      = "user"
	KindRole      = "role"
	KindCompany   = "company"
	KindSchool    = "school"
	KindBus       = "bus"
	KindTrip      = "trip"
	KindDashboard = "dashboard"
)

// RoomDashboardAll is the broadcast-all room fleet dashboards observe. It is
// an ordinary room, not a special code path in the fan-out.
const RoomDashboardAll = KindDashboard + ":all"

// Room builds a room name from its kind and id.
func Room(kind, id string) string {
	return kind + ":" + id
}

// RoomDirectory maintains membership of connections in named broadcast
// groups. Rooms are created implicitly on first join and dropped when their
// last member leaves. Safe for concurrent use.
type RoomDirectory struct {
	mu sync.RWMutex
	// members maps room name -> set of connection ids.
	members map[string]map[string]struct{}
	// joined maps connection id -> set of room names, for disconnect cleanup.
	joined map[string]map[string]struct{}
}

// NewRoomDirectory creates an empty directory.
func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{
		members: make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the room. Idempotent.
func (d *RoomDirectory) Join(room, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.members[room] == nil {
		d.members[room] = make(map[string]struct{})
	}
	d.members[room][connID] = struct{}{}

	if d.joined[connID] == nil {
		d.joined[connID] = make(map[string]struct{})
	}
	d.joined[connID][room] = struct{}{}
}

// Leave removes the connection from the room. Leaving a room or membership
// that does not exist is a no-op.
func (d *RoomDirectory) Leave(room, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaveLocked(room, connID)
}

func (d *RoomDirectory) leaveLocked(room, connID string) {
	if set, ok := d.members[room]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(d.members, room)
		}
	}
	if set, ok := d.joined[connID]; ok {
		delete(set, room)
		if len(set) == 0 {
			delete(d.joined, connID)
		}
	}
}

// Members returns the connection ids currently in the room. Unknown rooms
// yield an empty slice.
func (d *RoomDirectory) Members(room string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set := d.members[room]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// RoomsFor returns the rooms the connection currently belongs to.
func (d *RoomDirectory) RoomsFor(connID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set := d.joined[connID]
	rooms := make([]string, 0, len(set))
	for room := range set {
		rooms = append(rooms, room)
	}
	return rooms
}

// DropAll removes the connection from every room it joined and returns the
// rooms it held, for disconnect logging.
func (d *RoomDirectory) DropAll(connID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.joined[connID]
	rooms := make([]string, 0, len(set))
	for room := range set {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		d.leaveLocked(room, connID)
	}
	return rooms
}
