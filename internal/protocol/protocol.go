// Package protocol holds what every JSON surface of the server shares: error
// codes for admin and observer replies, and the envelope the observer socket
// reads first to route a frame.
package protocol

import "encoding/json"

// BaseMessage is the type/version envelope of an inbound observer frame.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

// DecodeBase reads only the envelope; the caller decodes the body once the
// type is known.
func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
