package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Level routing/state.
	ErrLevelNotFound = "E_LEVEL_NOT_FOUND"
	ErrLevelOff      = "E_LEVEL_OFF"

	// Request layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrUnknownMode    = "E_UNKNOWN_MODE"
	ErrUnknownBlock   = "E_UNKNOWN_BLOCK"
	ErrOutOfBounds    = "E_OUT_OF_BOUNDS"
	ErrNoPermission   = "E_NO_PERMISSION"
	ErrRejected       = "E_REJECTED"
	ErrMethodNotAllow = "E_METHOD_NOT_ALLOWED"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrLevelNotFound:   {},
	ErrLevelOff:        {},
	ErrBadRequest:      {},
	ErrUnknownMode:     {},
	ErrUnknownBlock:    {},
	ErrOutOfBounds:     {},
	ErrNoPermission:    {},
	ErrRejected:        {},
	ErrMethodNotAllow:  {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ErrorBody is the JSON body of every failed admin request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
