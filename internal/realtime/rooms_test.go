package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomDirectory_JoinLeave(t *testing.T) {
	d := NewRoomDirectory()

	d.Join("bus:V1", "conn-1")
	d.Join("bus:V1", "conn-2")
	d.Join("bus:V1", "conn-1") // idempotent
	d.Join("trip:T1", "conn-1")

	assert.ElementsMatch(t, []string{"conn-1", "conn-2"}, d.Members("bus:V1"))
	assert.ElementsMatch(t, []string{"bus:V1", "trip:T1"}, d.RoomsFor("conn-1"))
	assert.ElementsMatch(t, []string{"bus:V1"}, d.RoomsFor("conn-2"))

	d.Leave("bus:V1", "conn-2")
	assert.ElementsMatch(t, []string{"conn-1"}, d.Members("bus:V1"))
	assert.Empty(t, d.RoomsFor("conn-2"))

	// Leaving an unknown room or membership is not an error.
	d.Leave("bus:V1", "conn-2")
	d.Leave("no-such-room", "conn-1")
}

func TestRoomDirectory_UnknownRoomIsEmpty(t *testing.T) {
	d := NewRoomDirectory()
	assert.Empty(t, d.Members("bus:nope"))
	assert.Empty(t, d.RoomsFor("conn-nope"))
}

func TestRoomDirectory_DropAll(t *testing.T) {
	d := NewRoomDirectory()

	d.Join("user:u1", "conn-1")
	d.Join("role:PARENT", "conn-1")
	d.Join("bus:V1", "conn-1")
	d.Join("bus:V1", "conn-2")

	dropped := d.DropAll("conn-1")
	assert.ElementsMatch(t, []string{"user:u1", "role:PARENT", "bus:V1"}, dropped)

	assert.Empty(t, d.RoomsFor("conn-1"))
	assert.Empty(t, d.Members("user:u1"))
	assert.ElementsMatch(t, []string{"conn-2"}, d.Members("bus:V1"))

	// Dropping again yields nothing.
	assert.Empty(t, d.DropAll("conn-1"))
}
