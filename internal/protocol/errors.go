package protocol

const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"
	ErrBusy            = "E_BUSY"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBusy:            {},
	ErrInternal:        {},
}

// NormalizeCode maps unknown codes to ErrInternal so replicas only ever see documented codes.
func NormalizeCode(code string) string {
	if _, ok := knownCodes[code]; ok {
		return code
	}
	return ErrInternal
}
