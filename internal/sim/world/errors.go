package world

import "errors"

var (
	ErrOccupied       = errors.New("position already holds a machine")
	ErrNoMachine      = errors.New("no machine at position")
	ErrInvalidItem    = errors.New("item not valid for slot")
	ErrBadLevel       = errors.New("signal level out of range")
	ErrBadCommand     = errors.New("unknown command")
	ErrWorldStopped   = errors.New("world stopped")
	ErrNoSnapshotSink = errors.New("snapshot sink not configured")
	ErrSnapshotBusy   = errors.New("snapshot sink backpressure")
)
