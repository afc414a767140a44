package chunk

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	pkgerrors "github.com/pkg/errors"
	"github.com/vkngwrapper/immix/internal/locks"
	"github.com/vkngwrapper/immix/memutils"
	"github.com/vkngwrapper/immix/region"
	"github.com/vkngwrapper/immix/rtti"
)

// List is a singly linked LIFO list of free chunks, threaded through the chunks themselves. The
// list owns every chunk it holds; Pop hands ownership of a chunk to the caller. List does not
// search for a chunk of a particular size, that is left to the allocator.
type List struct {
	mutex sync.Locker
	mem   region.Memory

	head      region.Address
	count     int
	freeBytes uint64
}

var _ memutils.Validatable = &List{}

// NewList creates an empty list over mem. When synchronized is true, Push and Pop may be called
// from multiple goroutines at once.
func NewList(mem region.Memory, synchronized bool) *List {
	return &List{
		mutex: locks.New(synchronized),
		mem:   mem,
	}
}

// Push inserts c at the head of the list. c must be formatted and must not already be in a list.
func (l *List) Push(c Chunk) {
	size := c.Size()
	if c.tag() != rtti.ChunkHandle || size < MinChunkSize {
		panic(errors.AssertionFailedf("pushing a malformed chunk at %s (tag %d, size %d)", c.addr, c.tag(), size))
	}

	l.mutex.Lock()
	c.setNext(l.head)
	l.head = c.addr
	l.count++
	l.freeBytes += size
	l.mutex.Unlock()

	memutils.DebugValidate(l)
}

// Pop removes the head chunk and returns it. If the list is empty, the second return value is
// false and the list is not modified.
func (l *List) Pop() (Chunk, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.head == region.Null {
		return Chunk{}, false
	}

	c := At(l.mem, l.head)
	l.head = c.Next()
	l.count--
	l.freeBytes -= c.Size()
	c.setNext(region.Null)

	return c, true
}

func (l *List) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.count
}

// FreeBytes is the sum of the sizes of every chunk in the list
func (l *List) FreeBytes() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.freeBytes
}

func (l *List) IsEmpty() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.head == region.Null
}

// Reset forgets every chunk in the list. The chunk headers are left in place, so the spans stay
// walkable; the sweeper resets the list before rebuilding it from scratch.
func (l *List) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.head = region.Null
	l.count = 0
	l.freeBytes = 0
}

// Each calls visit for every chunk from head to tail, stopping early if visit returns false. The
// list must not be modified from visit.
func (l *List) Each(visit func(c Chunk) bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for addr := l.head; addr != region.Null; {
		c := At(l.mem, addr)
		if !visit(c) {
			return
		}
		addr = c.Next()
	}
}

// Validate walks the list and checks every chunk header, and that no chunk is reachable twice.
func (l *List) Validate() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	visited := swiss.NewMap[region.Address, struct{}](uint32(l.count + 1))
	var count int
	var freeBytes uint64

	for addr := l.head; addr != region.Null; {
		if visited.Has(addr) {
			return pkgerrors.Errorf("chunk at %s appears in the list twice", addr)
		}
		visited.Put(addr, struct{}{})

		if count >= l.count {
			return pkgerrors.Errorf("the list should hold %d chunks, but there are more", l.count)
		}

		c := At(l.mem, addr)
		if c.tag() != rtti.ChunkHandle {
			return pkgerrors.Errorf("chunk at %s has header word %d instead of the chunk tag", addr, c.tag())
		}

		size := c.Size()
		if size < MinChunkSize || size%wordSize != 0 {
			return pkgerrors.Errorf("chunk at %s has invalid size %d", addr, size)
		}

		count++
		freeBytes += size
		addr = c.Next()
	}

	if count != l.count {
		return pkgerrors.Errorf("the list should hold %d chunks, but only %d were found", l.count, count)
	}

	if freeBytes != l.freeBytes {
		return pkgerrors.Errorf("the list should hold %d free bytes, but the chunks only added up to %d", l.freeBytes, freeBytes)
	}

	return nil
}

// AddDetailedStatistics sums the list's chunks into stats
func (l *List) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	l.Each(func(c Chunk) bool {
		stats.AddFreeChunk(int(c.Size()))
		return true
	})
}

// PrintJson writes the list as an array of chunk objects
func (l *List) PrintJson(writer *jwriter.Writer) {
	arr := writer.Array()
	defer arr.End()

	l.Each(func(c Chunk) bool {
		obj := arr.Object()
		obj.Name("Address").String(c.Address().String())
		obj.Name("Size").Int(int(c.Size()))
		obj.End()
		return true
	})
}
