package heap

import (
	"fmt"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/immix/chunk"
	"github.com/vkngwrapper/immix/memutils"
	"github.com/vkngwrapper/immix/object"
	"github.com/vkngwrapper/immix/region"
	"github.com/vkngwrapper/immix/trace"
)

var _ memutils.Validatable = &Heap{}

// Validate walks every region and the free list, checking that every slot is well formed and
// that every listed chunk is a free span inside the heap. Integrity violations that would abort a
// collection are returned as errors instead. This is expensive and intended for diagnostics.
func (h *Heap) Validate() error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.validate()
}

func (h *Heap) validate() (err error) {
	defer func() {
		if r := recover(); r != nil {
			recovered, ok := r.(error)
			if !ok {
				recovered = errors.Errorf("%v", r)
			}
			err = cerrors.Wrap(recovered, "heap integrity violation")
		}
	}()

	freeSpans := swiss.NewMap[region.Address, uint64](64)
	for _, r := range h.space.Regions() {
		err = trace.Walk(r, h.oracle, func(slot trace.Slot) error {
			if slot.Free {
				freeSpans.Put(slot.Address, slot.Size)
			} else if slot.Size%h.oracle.Alignment() != 0 {
				return errors.Errorf("object at %s has size %d, which is not aligned", slot.Address, slot.Size)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	err = h.freeList.Validate()
	if err != nil {
		return err
	}

	h.freeList.Each(func(c chunk.Chunk) bool {
		size, ok := freeSpans.Get(c.Address())
		if !ok {
			err = errors.Errorf("listed chunk at %s is not a free span in any region", c.Address())
			return false
		}
		if size != c.Size() {
			err = errors.Errorf("listed chunk at %s has size %d but the region walk found %d", c.Address(), c.Size(), size)
			return false
		}
		if memutils.DebugPoisoning && size > chunk.HeaderSize {
			payload := h.space.Lookup(c.Address()).Bytes(c.Address().Add(chunk.HeaderSize), size-chunk.HeaderSize)
			if !memutils.ValidatePoison(payload) {
				err = errors.Errorf("listed chunk at %s was written to after it was freed", c.Address())
				return false
			}
		}
		return true
	})

	return err
}

// AddDetailedStatistics sums this heap's regions, live-or-not-yet-collected objects and listed
// free chunks into stats
func (h *Heap) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for _, r := range h.space.Regions() {
		stats.RegionCount++
		stats.RegionBytes += r.Size()

		_ = trace.Walk(r, h.oracle, func(slot trace.Slot) error {
			if !slot.Free {
				stats.AddObject(int(slot.Size))
			}
			return nil
		})
	}

	h.freeList.AddDetailedStatistics(stats)
}

// PrintDetailedMap writes every region, every slot within it, and the free list
func (h *Heap) PrintDetailedMap(writer *jwriter.Writer) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	objState := writer.Object()
	defer objState.End()

	objState.Name("Collections").Int(h.collections)
	objState.Name("Alignment").Int(int(h.oracle.Alignment()))

	regions := objState.Name("Regions").Array()
	for _, r := range h.space.Regions() {
		regionObj := regions.Object()
		regionObj.Name("Base").String(r.Base().String())
		regionObj.Name("Top").String(r.Top().String())
		regionObj.Name("Size").Int(r.Size())
		regionObj.Name("Current").Bool(r == h.current)

		h.printRegionSlots(r, regionObj)
		regionObj.End()
	}
	regions.End()

	h.freeList.PrintJson(objState.Name("FreeList"))
}

func (h *Heap) printRegionSlots(r *region.Region, json jwriter.ObjectState) {
	arrayState := json.Name("Slots").Array()
	defer arrayState.End()

	_ = trace.Walk(r, h.oracle, func(slot trace.Slot) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Address").String(slot.Address.String())
		obj.Name("Size").Int(int(slot.Size))
		if slot.Free {
			obj.Name("Kind").String("Free")
			return nil
		}

		view := object.At(r, slot.Address)
		t := h.oracle.RTTI(view)
		obj.Name("Kind").String(h.oracle.Kind(view).String())
		obj.Name("Type").String(t.Name)
		if array, isArray := h.oracle.AsArray(view); isArray {
			obj.Name("Length").Int(int(array.Length()))
			obj.Name("Stride").Int(int(array.Stride()))
		}
		return nil
	})
}

func (h *Heap) String() string {
	var stats memutils.DetailedStatistics
	stats.Clear()
	h.AddDetailedStatistics(&stats)
	return fmt.Sprintf("heap{regions=%d objects=%d objectBytes=%d freeChunks=%d}",
		stats.RegionCount, stats.ObjectCount, stats.ObjectBytes, stats.FreeChunkCount)
}
