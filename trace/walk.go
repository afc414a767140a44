package trace

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/immix/chunk"
	"github.com/vkngwrapper/immix/object"
	"github.com/vkngwrapper/immix/region"
)

// Slot is one entry of a linear region walk: either an object or a free span
type Slot struct {
	Address region.Address
	Size    uint64
	Free    bool
}

// Walk visits every slot in the carved part of r, from its base to its top, stepping over objects
// by their Size. It stops and returns the first error visit returns.
//
// A slot that runs past the region top means the heap is corrupt, and Walk panics.
func Walk(r *region.Region, oracle *object.Oracle, visit func(slot Slot) error) error {
	top := r.Top()
	for addr := r.Base(); addr < top; {
		size, free := chunk.FreeSpan(r, addr)
		if !free {
			size = oracle.Size(object.At(r, addr))
		}

		if size == 0 || size > uint64(top-addr) {
			panic(cerrors.AssertionFailedf("slot at %s with size %d runs past the region top %s", addr, size, top))
		}

		err := visit(Slot{Address: addr, Size: size, Free: free})
		if err != nil {
			return err
		}
		addr = addr.Add(size)
	}

	return nil
}
