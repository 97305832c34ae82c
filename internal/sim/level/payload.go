package level

import (
	"fmt"
	"strconv"
	"strings"

	"voxelforge.dev/internal/sim/block"
)

type PayloadKind uint8

const (
	PayloadNone PayloadKind = iota
	// PayloadWait keeps a check without a physics handler alive.
	PayloadWait
	// PayloadRevert restores the cell to Block when the level is cleared.
	PayloadRevert
	// PayloadData is opaque to the engine and owned by the handler.
	PayloadData
)

// Payload is the auxiliary data carried by checks and updates. It is decoded
// once when the entry is created.
type Payload struct {
	Kind  PayloadKind
	Block block.Type
	Data  any
}

func NoPayload() Payload { return Payload{} }

func WaitPayload() Payload { return Payload{Kind: PayloadWait} }

func RevertTo(t block.Type) Payload { return Payload{Kind: PayloadRevert, Block: t} }

func DataPayload(v any) Payload { return Payload{Kind: PayloadData, Data: v} }

func (p Payload) IsZero() bool { return p.Kind == PayloadNone }

func (p Payload) IsWait() bool { return p.Kind == PayloadWait }

func (p Payload) RevertTarget() (block.Type, bool) {
	if p.Kind != PayloadRevert {
		return 0, false
	}
	return p.Block, true
}

func (p Payload) String() string {
	switch p.Kind {
	case PayloadWait:
		return "wait"
	case PayloadRevert:
		return "revert " + strconv.Itoa(int(p.Block))
	case PayloadData:
		return fmt.Sprint(p.Data)
	default:
		return ""
	}
}

// ParsePayload decodes the textual tags used by commands and drawing tools:
// "wait", "revert <code>", or anything else as handler data. A revert tag
// wins over a wait tag in the same string.
func ParsePayload(s string) (Payload, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoPayload(), nil
	}
	parts := strings.Fields(s)
	for i, part := range parts {
		if part != "revert" {
			continue
		}
		if i+1 >= len(parts) {
			return NoPayload(), fmt.Errorf("payload %q: revert without block", s)
		}
		n, err := strconv.ParseUint(parts[i+1], 10, 8)
		if err != nil {
			return NoPayload(), fmt.Errorf("payload %q: %w", s, err)
		}
		return RevertTo(block.Type(n)), nil
	}
	for _, part := range parts {
		if part == "wait" {
			return WaitPayload(), nil
		}
	}
	return DataPayload(s), nil
}
