package protocol

import "testing"

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"SUBSCRIBE","protocol_version":"1.0","level":"main"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type != "SUBSCRIBE" || m.ProtocolVersion != "1.0" {
		t.Fatalf("envelope: got %+v", m)
	}
	if _, err := DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("bad frame: want error")
	}
}
