package heap

import (
	"context"
	"time"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/immix/region"
	"github.com/vkngwrapper/immix/trace"
	"golang.org/x/exp/slog"
)

// CollectionResult summarizes one call to Collect
type CollectionResult struct {
	// Collection is the 1-based index of this collection
	Collection            int
	LiveObjects           int
	LiveBytes             uint64
	FreedObjects          int
	FreedBytes            uint64
	WeakReferencesCleared int
	RegionsReleased       int
	FreeChunks            int
	Duration              time.Duration
}

// Collect runs a full stop-the-world collection. Everything reachable from roots through strong
// references survives. Weak references whose referents did not survive are cleared, after all
// strong marking has finished and before Collect returns. Everything else is swept into the free
// list, and regions left empty are released to the Source.
//
// The caller is responsible for stopping every mutator goroutine for the duration of the call.
// A collection cannot be cancelled once it has started.
func (h *Heap) Collect(roots []region.Address) (CollectionResult, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return CollectionResult{}, errors.New("the heap has been closed")
	}

	start := time.Now()
	h.collections++
	result := CollectionResult{Collection: h.collections}

	cycle := trace.NewCycle(&h.space, h.oracle, h.logger)
	cycle.MarkRoots(roots)
	cycle.Drain()

	cleared, err := cycle.ClearWeakReferences(h.onWeakCleared)
	if err != nil {
		return result, err
	}
	result.WeakReferencesCleared = cleared

	sweep, err := trace.Sweep(&h.space, cycle, h.freeList, nil)
	if err != nil {
		return result, err
	}
	result.LiveObjects = sweep.LiveObjects
	result.LiveBytes = sweep.LiveBytes
	result.FreedObjects = sweep.FreedObjects
	result.FreedBytes = sweep.FreedBytes

	if cycle.LiveBytes() != sweep.LiveBytes {
		panic(cerrors.AssertionFailedf("marking measured %d live bytes but sweeping found %d", cycle.LiveBytes(), sweep.LiveBytes))
	}

	released, err := h.releaseEmptyRegions(sweep.EmptyRegions)
	result.RegionsReleased = released
	if err != nil {
		return result, err
	}

	for _, r := range h.space.Regions() {
		if r != h.current {
			h.retire(r)
		}
	}
	result.FreeChunks = h.freeList.Len()

	if h.createFlags&HeapCreateValidateCollections != 0 {
		err = h.validate()
		if err != nil {
			return result, cerrors.Wrapf(err, "heap is inconsistent after collection %d", h.collections)
		}
	}

	result.Duration = time.Since(start)
	h.logger.LogAttrs(context.Background(),
		slog.LevelInfo,
		"collection finished",
		slog.Int("collection", result.Collection),
		slog.Int("liveObjects", result.LiveObjects),
		slog.Uint64("liveBytes", result.LiveBytes),
		slog.Int("freedObjects", result.FreedObjects),
		slog.Uint64("freedBytes", result.FreedBytes),
		slog.Int("weakReferencesCleared", result.WeakReferencesCleared),
		slog.Int("regionsReleased", result.RegionsReleased),
		slog.Duration("duration", result.Duration))

	return result, nil
}

func (h *Heap) releaseEmptyRegions(empty []*region.Region) (int, error) {
	if h.createFlags&HeapCreateKeepEmptyRegions != 0 {
		return 0, nil
	}

	released := 0
	for _, r := range empty {
		if r == h.current {
			continue
		}

		h.space.Remove(r)
		err := h.source.Release(r)
		if err != nil {
			return released, cerrors.Wrapf(err, "releasing region at %s", r.Base())
		}
		released++
	}

	return released, nil
}
