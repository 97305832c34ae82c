package observerproto

// Version is the observer protocol version.
const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeBlocks    = "BLOCKS"
	TypeNotice    = "NOTICE"
)

// Encoding of BootstrapResponse.Data: base64 of (block, run) uvarint pairs
// in grid index order, index = x + w*(z + y*l).
const EncodingRLE = "RLE_UVARINT_B64"

// Client -> Server. First message on the observer WS connection; re-sending
// it switches the watched level.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Level           string `json:"level,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap?level=NAME.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Level           string      `json:"level"`
	Tick            uint64      `json:"tick"`
	Params          LevelParams `json:"params"`
	BlockPalette    []string    `json:"block_palette"`
	Digest          string      `json:"digest"`
	Encoding        string      `json:"encoding"`
	Data            string      `json:"data"`
}

type LevelParams struct {
	Size       [3]int `json:"size"`
	Mode       string `json:"mode"`
	IntervalMs int64  `json:"interval_ms"`
	OverloadMs int64  `json:"overload_ms"`
	Seed       int64  `json:"seed"`
}

// Server -> Client. One flushed batch of committed block changes, in the
// order they were applied.
type BlocksMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Level           string      `json:"level"`
	Cells           []BlockCell `json:"cells"`
}

type BlockCell struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Z     int   `json:"z"`
	Block uint8 `json:"block"`
}

// Server -> Client. Overload warnings and shutdowns for the watched level.
type NoticeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Level           string `json:"level"`
	State           string `json:"state,omitempty"`
	Message         string `json:"message"`
}
