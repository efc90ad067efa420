package world

import (
	"machinecraft.ai/internal/protocol"
)

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func Vec3iFromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

// less orders positions by x, then y, then z.
func (v Vec3i) less(o Vec3i) bool {
	if v.X != o.X {
		return v.X < o.X
	}
	if v.Y != o.Y {
		return v.Y < o.Y
	}
	return v.Z < o.Z
}

var neighbourOffsets = [...]Vec3i{
	{X: 0, Y: -1, Z: 0},
	{X: 0, Y: 1, Z: 0},
	{X: 0, Y: 0, Z: -1},
	{X: 0, Y: 0, Z: 1},
	{X: -1, Y: 0, Z: 0},
	{X: 1, Y: 0, Z: 0},
}

// SyncLogEntry is one line of the sync event log.
type SyncLogEntry struct {
	Tick       uint64  `json:"tick"`
	MachineID  string  `json:"machine_id"`
	Kind       string  `json:"kind"`
	Pos        [3]int  `json:"pos"`
	Energy     float64 `json:"energy"`
	MaxStored  float64 `json:"max_stored"`
	Active     bool    `json:"active"`
	Progress   float64 `json:"progress"`
	GateMode   string  `json:"gate_mode"`
	GatePassed bool    `json:"gate_passed"`
	Removed    bool    `json:"removed,omitempty"`
}

// MachineRecord is the durable row written on every persistence trigger.
type MachineRecord struct {
	Tick     uint64
	ID       string
	Kind     string
	Pos      Vec3i
	Tier     int
	Energy   float64
	GateMode int
	Facing   int
	State    []byte
}

// SyncSink receives replica-facing sync traffic. Calls happen on the world
// loop goroutine and must not block.
type SyncSink interface {
	MachineSynced(msg protocol.MachineSyncMsg)
	MachineRemoved(msg protocol.MachineRemoveMsg)
}

type SyncLogger interface {
	WriteSync(entry SyncLogEntry) error
}

// Persister stores machine state durably. Calls must not block the loop.
type Persister interface {
	PersistMachine(rec MachineRecord)
	DeleteMachine(id string)
}
