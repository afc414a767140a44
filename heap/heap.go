package heap

import (
	"context"
	"math"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/immix/chunk"
	"github.com/vkngwrapper/immix/internal/locks"
	"github.com/vkngwrapper/immix/memutils"
	"github.com/vkngwrapper/immix/object"
	"github.com/vkngwrapper/immix/region"
	"github.com/vkngwrapper/immix/rtti"
	"github.com/vkngwrapper/immix/trace"
	"golang.org/x/exp/slog"
)

// ErrOutOfMemory is returned by allocations that cannot be satisfied from the free list and for
// which the Source could not supply another region
var ErrOutOfMemory = errors.New("heap is out of memory")

// Heap is a region-based, non-moving garbage collected heap. Objects are bump allocated from the
// current region, or carved from free chunks reclaimed by earlier collections. Collect marks from
// an explicit root set, clears dead weak referents, and sweeps unmarked objects into the free list.
type Heap struct {
	logger      *slog.Logger
	mutex       locks.RWLocker
	createFlags CreateFlags

	registry *rtti.Registry
	oracle   *object.Oracle

	source     region.Source
	regionSize int
	space      region.Space
	current    *region.Region
	freeList   *chunk.List

	onWeakCleared trace.WeakClearFunc
	collections   int
	closed        bool
}

// Oracle returns the size and classification oracle the heap allocates with
func (h *Heap) Oracle() *object.Oracle { return h.oracle }

// Registry returns the descriptors this heap was created with
func (h *Heap) Registry() *rtti.Registry { return h.registry }

// Memory gives the mutator access to object fields. It must not be used while a collection is
// running or from more than one goroutine while the heap is acquiring regions.
func (h *Heap) Memory() region.Memory { return &h.space }

// Object returns a view of the object at addr
func (h *Heap) Object(addr region.Address) object.Object {
	return object.At(&h.space, addr)
}

// FreeList returns the list of chunks reclaimed by the last collection
func (h *Heap) FreeList() *chunk.List { return h.freeList }

// AllocObject allocates a zeroed instance of a non-array type and stamps its header
func (h *Heap) AllocObject(t *rtti.RTTI) (object.Object, error) {
	err := h.checkRegistered(t)
	if err != nil {
		return object.Object{}, err
	}

	if h.oracle.Ranges().IsArrayID(t.TypeID) {
		return object.Object{}, errors.Errorf("%s is an array type and must be allocated with AllocArray", t)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	addr, err := h.allocate(h.oracle.ScalarSize(t))
	if err != nil {
		return object.Object{}, err
	}

	obj := object.At(&h.space, addr)
	obj.SetHandle(t.Handle())
	return obj, nil
}

// AllocArray allocates a zeroed array of length elements of stride bytes each. Object arrays
// must have a stride of one word.
func (h *Heap) AllocArray(t *rtti.RTTI, length, stride int32) (object.ArrayHeader, error) {
	err := h.checkRegistered(t)
	if err != nil {
		return object.ArrayHeader{}, err
	}

	ranges := h.oracle.Ranges()
	if !ranges.IsArrayID(t.TypeID) {
		return object.ArrayHeader{}, errors.Errorf("%s is not an array type", t)
	}

	if ranges.IsObjectArrayID(t.TypeID) && stride != object.WordSize {
		return object.ArrayHeader{}, errors.Errorf("object arrays must have a stride of %d, but %d was requested", object.WordSize, stride)
	}

	size, err := h.oracle.ArraySize(length, stride)
	if err != nil {
		return object.ArrayHeader{}, cerrors.Wrapf(err, "cannot allocate %s[%d]", t.Name, length)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	addr, err := h.allocate(size)
	if err != nil {
		return object.ArrayHeader{}, err
	}

	array := object.ArrayHeader{Object: object.At(&h.space, addr)}
	array.SetHandle(t.Handle())
	array.SetDimensions(length, stride)
	return array, nil
}

func (h *Heap) checkRegistered(t *rtti.RTTI) error {
	if t == nil {
		return errors.New("cannot allocate an object without a descriptor")
	}

	registered, ok := h.registry.Lookup(t.Handle())
	if !ok || registered != t {
		return errors.Errorf("descriptor %s is not registered with this heap", t)
	}

	return nil
}

// allocate returns size zeroed bytes. The heap mutex must be held.
func (h *Heap) allocate(size uint64) (region.Address, error) {
	if h.closed {
		return region.Null, errors.New("the heap has been closed")
	}

	if h.current != nil {
		if addr, ok := h.current.Bump(size); ok {
			h.current.Zero(addr, size)
			return addr, nil
		}
	}

	if addr, ok := h.allocateFromFreeList(size); ok {
		h.space.Zero(addr, size)
		return addr, nil
	}

	r, err := h.acquireRegion(size)
	if err != nil {
		return region.Null, err
	}

	if h.current != nil {
		h.retire(h.current)
	}
	h.current = r

	addr, ok := r.Bump(size)
	if !ok {
		panic(cerrors.AssertionFailedf("a fresh %d byte region cannot hold a %d byte object", r.Size(), size))
	}
	return addr, nil
}

// allocateFromFreeList pops chunks until one is large enough to hold size bytes. Chunks that are
// too small are pushed back once the search is over.
func (h *Heap) allocateFromFreeList(size uint64) (region.Address, bool) {
	var skipped []chunk.Chunk
	defer func() {
		for i := len(skipped) - 1; i >= 0; i-- {
			h.freeList.Push(skipped[i])
		}
	}()

	for {
		c, ok := h.freeList.Pop()
		if !ok {
			return region.Null, false
		}

		chunkSize := c.Size()
		if chunkSize < size {
			skipped = append(skipped, c)
			continue
		}

		remainder := chunkSize - size
		rest := c.Address().Add(size)
		if remainder >= chunk.MinChunkSize {
			h.freeList.Push(chunk.Format(&h.space, rest, remainder))
		} else {
			chunk.WriteFiller(&h.space, rest, remainder)
		}

		return c.Address(), true
	}
}

func (h *Heap) acquireRegion(minSize uint64) (*region.Region, error) {
	size, err := memutils.CheckedRoundToNextMultiple(minSize, uint64(h.regionSize))
	if err != nil || size > math.MaxInt {
		err = cerrors.Wrapf(region.ErrSourceExhausted, "a %d byte object cannot fit in any region", minSize)
		return nil, cerrors.Mark(err, ErrOutOfMemory)
	}

	r, err := h.source.Acquire(int(size))
	if err != nil {
		err = cerrors.Wrapf(err, "acquiring a %d byte region", size)
		if cerrors.Is(err, region.ErrSourceExhausted) {
			err = cerrors.Mark(err, ErrOutOfMemory)
		}
		return nil, err
	}

	h.space.Add(r)
	h.logger.LogAttrs(context.Background(),
		slog.LevelDebug,
		"acquired heap region",
		slog.String("base", r.Base().String()),
		slog.Int("size", r.Size()),
		slog.Int("regions", h.space.Len()))

	return r, nil
}

// retire turns the uncarved tail of a region that is no longer the bump target into free space
func (h *Heap) retire(r *region.Region) {
	remaining := r.Remaining()
	if remaining == 0 {
		return
	}

	addr, _ := r.Bump(remaining)
	if remaining >= chunk.MinChunkSize {
		if memutils.DebugPoisoning && remaining > chunk.HeaderSize {
			memutils.WritePoison(r.Bytes(addr.Add(chunk.HeaderSize), remaining-chunk.HeaderSize))
		}
		h.freeList.Push(chunk.Format(r, addr, remaining))
	} else {
		chunk.WriteFiller(r, addr, remaining)
	}
}

// Close hands every region back to the Source. The heap must not be used afterward.
func (h *Heap) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return nil
	}

	h.closed = true
	h.freeList.Reset()
	h.current = nil

	var err error
	for len(h.space.Regions()) > 0 {
		r := h.space.Regions()[0]
		h.space.Remove(r)
		err = cerrors.CombineErrors(err, h.source.Release(r))
	}

	return err
}
