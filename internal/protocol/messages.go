package protocol

import "encoding/json"

// HELLO (replica -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReplicaName     string `json:"replica_name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> replica)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	WorldID         string     `json:"world_id"`
	Tick            uint64     `json:"tick"`
	TickRateHz      int        `json:"tick_rate_hz"`
	Tiers           []TierInfo `json:"tiers"`
}

type TierInfo struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	MaxStored         float64 `json:"max_stored"`
	MaxExtractPerTick float64 `json:"max_extract_per_tick"`
}

// MACHINE_SYNC (server -> replica). State is the machine's persisted state blob.
type MachineSyncMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Tick            uint64          `json:"tick"`
	MachineID       string          `json:"machine_id"`
	Kind            string          `json:"kind"`
	Pos             [3]int          `json:"pos"`
	Active          bool            `json:"active"`
	Progress        float64         `json:"progress"`
	State           json.RawMessage `json:"state"`
}

// MACHINE_REMOVE (server -> replica)
type MachineRemoveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	MachineID       string `json:"machine_id"`
}

// ERROR (server -> replica), sent right before the server closes a connection.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: NormalizeCode(code), Message: message}
}
