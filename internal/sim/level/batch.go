package level

import (
	"github.com/elliotchance/orderedmap/v2"

	"voxelforge.dev/internal/sim/block"
)

// Batcher stages the changes applied during one tick and hands them to the
// level's Broadcaster. Entries keep first-staged order; restaging a cell
// keeps its slot and takes the newer type.
type Batcher struct {
	l         *Level
	threshold int
	pending   *orderedmap.OrderedMap[int, block.Type]
	flushes   int
}

func newBatcher(l *Level, threshold int) *Batcher {
	return &Batcher{
		l:         l,
		threshold: threshold,
		pending:   orderedmap.NewOrderedMap[int, block.Type](),
	}
}

func (b *Batcher) Add(idx int, t block.Type) {
	b.pending.Set(idx, t)
}

func (b *Batcher) Len() int { return b.pending.Len() }

// CheckIfSend flushes when forced or once the staged set reaches the
// threshold.
func (b *Batcher) CheckIfSend(force bool) {
	n := b.pending.Len()
	if n == 0 {
		return
	}
	if !force && n < b.threshold {
		return
	}
	batch := make([]BlockChange, 0, n)
	for el := b.pending.Front(); el != nil; el = el.Next() {
		batch = append(batch, BlockChange{Index: el.Key, Pos: b.l.PosOf(el.Key), Type: el.Value})
	}
	b.pending = orderedmap.NewOrderedMap[int, block.Type]()
	b.flushes++
	if b.l.sink != nil {
		b.l.sink.Flush(b.l, batch)
	}
}
