package chunk

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/immix/region"
	"github.com/vkngwrapper/immix/rtti"
)

const (
	wordSize = rtti.WordSize

	sizeOffset = wordSize
	nextOffset = 2 * wordSize

	// HeaderSize is the size of the bookkeeping a free chunk keeps in its own first bytes: the
	// chunk tag where an object would keep its RTTI handle, the chunk size, and the next link
	HeaderSize = 3 * wordSize
	// MinChunkSize is the smallest span that can be threaded into a List. Smaller free spans are
	// written as fillers.
	MinChunkSize = HeaderSize
)

// Chunk is a view of a free span of heap memory. The span's first word holds rtti.ChunkHandle so
// that a linear heap walk can tell it apart from an object.
type Chunk struct {
	mem  region.Memory
	addr region.Address
}

// At returns a view of the chunk whose header is already written at addr
func At(mem region.Memory, addr region.Address) Chunk {
	return Chunk{mem: mem, addr: addr}
}

// Format writes a chunk header over size bytes at addr. The chunk is not linked to any list.
func Format(mem region.Memory, addr region.Address, size uint64) Chunk {
	if size < MinChunkSize || size%wordSize != 0 {
		panic(errors.AssertionFailedf("cannot format a %d byte chunk at %s", size, addr))
	}

	mem.StoreWord(addr, uint64(rtti.ChunkHandle))
	mem.StoreWord(addr.Add(sizeOffset), size)
	mem.StoreWord(addr.Add(nextOffset), uint64(region.Null))
	return Chunk{mem: mem, addr: addr}
}

func (c Chunk) Address() region.Address { return c.addr }

func (c Chunk) IsNull() bool {
	return c.addr == region.Null
}

// Size is the length of the chunk in bytes, header included
func (c Chunk) Size() uint64 {
	return c.mem.LoadWord(c.addr.Add(sizeOffset))
}

// End is the address of the first byte past the chunk
func (c Chunk) End() region.Address {
	return c.addr.Add(c.Size())
}

// Next is the address of the following chunk in the list that owns this chunk
func (c Chunk) Next() region.Address {
	return region.Address(c.mem.LoadWord(c.addr.Add(nextOffset)))
}

func (c Chunk) setNext(next region.Address) {
	c.mem.StoreWord(c.addr.Add(nextOffset), uint64(next))
}

func (c Chunk) tag() rtti.Handle {
	return rtti.Handle(c.mem.LoadWord(c.addr))
}

// WriteFiller marks size bytes at addr as unusable free space that a heap walk can step over.
// One-word spans hold rtti.FillerHandle; longer spans hold rtti.ChunkHandle and their size.
func WriteFiller(mem region.Memory, addr region.Address, size uint64) {
	if size%wordSize != 0 {
		panic(errors.AssertionFailedf("cannot write a %d byte filler at %s", size, addr))
	}

	switch {
	case size == 0:
	case size == wordSize:
		mem.StoreWord(addr, uint64(rtti.FillerHandle))
	default:
		mem.StoreWord(addr, uint64(rtti.ChunkHandle))
		mem.StoreWord(addr.Add(sizeOffset), size)
	}
}

// FreeSpan reports the length of the free span starting at addr. The second return value is false
// if addr holds an object header instead.
func FreeSpan(mem region.Memory, addr region.Address) (uint64, bool) {
	switch rtti.Handle(mem.LoadWord(addr)) {
	case rtti.FillerHandle:
		return wordSize, true
	case rtti.ChunkHandle:
		return mem.LoadWord(addr.Add(sizeOffset)), true
	}
	return 0, false
}
