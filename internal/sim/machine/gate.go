package machine

// GateMode decides how the external control signal conditions a machine's work.
// The ordinal is persisted.
type GateMode int

const (
	GateIgnore GateMode = iota
	GateRequireSignal
	GateRequireNoSignal
)

var gateModeNames = [...]string{"IGNORE", "ON", "OFF"}

func (m GateMode) String() string {
	if m < 0 || int(m) >= len(gateModeNames) {
		return "UNKNOWN"
	}
	return gateModeNames[m]
}

// Evaluate is pure; callers read the signal fresh every tick.
func (m GateMode) Evaluate(signal int) bool {
	switch m {
	case GateRequireSignal:
		return signal >= 1
	case GateRequireNoSignal:
		return signal <= 0
	default:
		return true
	}
}

// DecodeGateMode maps a persisted ordinal to a mode. Out-of-range values yield
// GateIgnore and ok=false.
func DecodeGateMode(v int) (GateMode, bool) {
	if v < 0 || v >= len(gateModeNames) {
		return GateIgnore, false
	}
	return GateMode(v), true
}

// ParseGateMode accepts the String form of a mode.
func ParseGateMode(s string) (GateMode, bool) {
	for i, n := range gateModeNames {
		if n == s {
			return GateMode(i), true
		}
	}
	return GateIgnore, false
}

// Facing is one of the six axis directions, persisted by ordinal.
type Facing int

const (
	FacingDown Facing = iota
	FacingUp
	FacingNorth
	FacingSouth
	FacingWest
	FacingEast
)

var facingNames = [...]string{"DOWN", "UP", "NORTH", "SOUTH", "WEST", "EAST"}

func (f Facing) String() string {
	if f < 0 || int(f) >= len(facingNames) {
		return "UNKNOWN"
	}
	return facingNames[f]
}

// ParseFacing accepts the String form of a facing.
func ParseFacing(s string) (Facing, bool) {
	for i, n := range facingNames {
		if n == s {
			return Facing(i), true
		}
	}
	return FacingSouth, false
}

func DecodeFacing(v int) (Facing, bool) {
	if v < 0 || v >= len(facingNames) {
		return FacingSouth, false
	}
	return Facing(v), true
}

// DecodeTier maps a tier id to its tier. Unknown ids yield the default tier and ok=false.
func DecodeTier(tiers []Tier, id int) (Tier, bool) {
	if id < 0 || id >= len(tiers) {
		return tiers[0], false
	}
	return tiers[id], true
}
