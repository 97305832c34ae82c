package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"voxelforge.dev/internal/sim/block"
)

// EncodeGrid encodes a block grid into base64(varint pairs). The pairs are
// (block code, run length) repeated, in grid index order.
func EncodeGrid(blocks []block.Type) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(blocks) {
		b := blocks[i]
		run := 1
		for j := i + 1; j < len(blocks) && blocks[j] == b; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeGrid decodes an EncodeGrid payload. The result must hold exactly
// volume cells.
func DecodeGrid(b64 string, volume int) ([]block.Type, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]block.Type, 0, volume)
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b >= block.Count {
			return nil, fmt.Errorf("block code too large: %d", b)
		}
		if run == 0 || run > uint64(volume-len(out)) {
			return nil, fmt.Errorf("run of %d overflows %d cells", run, volume)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, block.Type(b))
		}
	}
	if len(out) != volume {
		return nil, fmt.Errorf("decoded %d cells want %d", len(out), volume)
	}
	return out, nil
}
