package machine

import "math"

// Snapshot is what the sync decision looks at on a given tick.
type Snapshot struct {
	Energy      float64
	MaxStored   float64
	TaskChanged bool
}

// SyncScheduler decides once per authoritative tick whether state must be
// pushed to replicas and persisted. Discrete changes always sync; energy drift
// is batched until it exceeds MaxStored/divisor.
type SyncScheduler struct {
	divisor float64

	forcePending     bool
	lastSyncedEnergy float64
	ticksSinceSync   int
}

func NewSyncScheduler(divisor float64) *SyncScheduler {
	if divisor <= 0 {
		divisor = DefaultSyncEnergyDivisor
	}
	return &SyncScheduler{
		divisor:          divisor,
		forcePending:     true,
		lastSyncedEnergy: -1,
		ticksSinceSync:   -1,
	}
}

// Force makes the next ShouldSync return true.
func (s *SyncScheduler) Force() { s.forcePending = true }

func (s *SyncScheduler) Pending() bool             { return s.forcePending }
func (s *SyncScheduler) LastSyncedEnergy() float64 { return s.lastSyncedEnergy }

// TicksSinceSync is diagnostic only; it is -1 until the first sync.
func (s *SyncScheduler) TicksSinceSync() int { return s.ticksSinceSync }

// EnergyDrifted reports whether energy alone has moved far enough to sync.
func (s *SyncScheduler) EnergyDrifted(cur Snapshot) bool {
	return math.Abs(s.lastSyncedEnergy-cur.Energy) > cur.MaxStored/s.divisor
}

func (s *SyncScheduler) ShouldSync(cur Snapshot) bool {
	sync := s.forcePending || cur.TaskChanged || s.EnergyDrifted(cur)
	if !sync {
		if s.ticksSinceSync >= 0 {
			s.ticksSinceSync++
		}
		return false
	}
	s.lastSyncedEnergy = cur.Energy
	s.forcePending = false
	s.ticksSinceSync = 0
	return true
}
