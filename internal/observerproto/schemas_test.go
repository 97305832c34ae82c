package observerproto_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelforge.dev/internal/observerproto"
	"voxelforge.dev/internal/sim/block"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// validate round-trips v through JSON so the schema sees the wire form.
func validate(t *testing.T, s *jsonschema.Schema, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(doc); err != nil {
		t.Fatalf("validate %s: %v", raw, err)
	}
}

func TestSchemas_ValidateMessages(t *testing.T) {
	validate(t, compile(t, "observer_subscribe.schema.json"), observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Level:           "main",
	})
	validate(t, compile(t, "observer_blocks.schema.json"), observerproto.BlocksMsg{
		Type:            observerproto.TypeBlocks,
		ProtocolVersion: observerproto.Version,
		Level:           "main",
		Cells: []observerproto.BlockCell{
			{X: 1, Y: 2, Z: 3, Block: uint8(block.Sand)},
			{X: 1, Y: 1, Z: 3, Block: uint8(block.AirFloodLayer)},
		},
	})
	validate(t, compile(t, "observer_notice.schema.json"), observerproto.NoticeMsg{
		Type:            observerproto.TypeNotice,
		ProtocolVersion: observerproto.Version,
		Level:           "main",
		State:           "stopped",
		Message:         "Physics shutdown on main",
	})
	validate(t, compile(t, "observer_bootstrap.schema.json"), observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		Level:           "main",
		Tick:            12,
		Params: observerproto.LevelParams{
			Size:       [3]int{16, 16, 16},
			Mode:       "basic",
			IntervalMs: 250,
			OverloadMs: 1500,
			Seed:       1,
		},
		BlockPalette: block.Palette(),
		Digest:       "00000000deadbeef",
		Encoding:     observerproto.EncodingRLE,
		Data:         "AIAg",
	})
}

func TestSchemas_RejectBadMessages(t *testing.T) {
	s := compile(t, "observer_blocks.schema.json")
	var doc any
	_ = json.Unmarshal([]byte(`{"type":"BLOCKS","protocol_version":"1.0","level":"main","cells":[{"x":0,"y":0,"z":0,"block":300}]}`), &doc)
	if err := s.Validate(doc); err == nil {
		t.Fatalf("block code 300 accepted")
	}
}
