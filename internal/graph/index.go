package graph

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/contentgraph/internal/content"
)

// nodeIndex interns entry keys as dense uint32 ids so traversal state can
// live in roaring bitmaps instead of key-indexed maps.
type nodeIndex struct {
	ids  map[content.Key]uint32
	keys []content.Key
}

func newNodeIndex(capacity int) *nodeIndex {
	return &nodeIndex{
		ids:  make(map[content.Key]uint32, capacity),
		keys: make([]content.Key, 0, capacity),
	}
}

func (x *nodeIndex) add(k content.Key) uint32 {
	if id, ok := x.ids[k]; ok {
		return id
	}
	id := uint32(len(x.keys))
	x.ids[k] = id
	x.keys = append(x.keys, k)
	return id
}

func (x *nodeIndex) lookup(k content.Key) (uint32, bool) {
	id, ok := x.ids[k]
	return id, ok
}

func (x *nodeIndex) key(id uint32) content.Key {
	return x.keys[id]
}

func (x *nodeIndex) len() int {
	return len(x.keys)
}

// visitedSet is a traversal guard: Visit reports whether id was new.
type visitedSet struct {
	bm *roaring.Bitmap
}

func newVisitedSet(ids ...uint32) visitedSet {
	return visitedSet{bm: roaring.BitmapOf(ids...)}
}

func (v visitedSet) Visit(id uint32) bool {
	return v.bm.CheckedAdd(id)
}

func (v visitedSet) Has(id uint32) bool {
	return v.bm.Contains(id)
}
