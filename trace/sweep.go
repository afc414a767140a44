package trace

import (
	"github.com/pkg/errors"
	"github.com/vkngwrapper/immix/chunk"
	"github.com/vkngwrapper/immix/memutils"
	"github.com/vkngwrapper/immix/region"
)

// SweepResult summarizes one sweep
type SweepResult struct {
	LiveObjects  int
	LiveBytes    uint64
	FreedObjects int
	FreedBytes   uint64
	// EmptyRegions lists regions that hold no live objects after the sweep. Their tops have been
	// reset to their bases.
	EmptyRegions []*region.Region
}

// Sweep rebuilds list from scratch by walking every region in space. Unmarked objects and old free
// spans are coalesced into runs; runs of at least chunk.MinChunkSize are pushed as chunks and
// shorter runs become fillers. A run that ends at a region's top is handed back to bump
// allocation by lowering the top instead.
//
// The cycle must have finished clearing weak references. stats may be nil.
func Sweep(space *region.Space, cycle *Cycle, list *chunk.List, stats *memutils.DetailedStatistics) (SweepResult, error) {
	var result SweepResult
	if cycle.Phase() != PhaseWeakCleared {
		return result, errors.Errorf("cannot sweep in phase %s: weak references must be cleared first", cycle.Phase())
	}

	list.Reset()

	for _, r := range space.Regions() {
		if stats != nil {
			stats.RegionCount++
			stats.RegionBytes += r.Size()
		}

		s := regionSweep{region: r, list: list, stats: stats}
		err := Walk(r, cycle.oracle, func(slot Slot) error {
			if !slot.Free && cycle.IsMarked(slot.Address) {
				s.flush()
				result.LiveObjects++
				result.LiveBytes += slot.Size
				if stats != nil {
					stats.AddObject(int(slot.Size))
				}
				return nil
			}

			if !slot.Free {
				result.FreedObjects++
				result.FreedBytes += slot.Size
			}
			s.extend(slot)
			return nil
		})
		if err != nil {
			return result, err
		}

		if s.runStart != region.Null {
			s.poison()
			r.SetTop(s.runStart)
		}

		if r.Top() == r.Base() {
			result.EmptyRegions = append(result.EmptyRegions, r)
		}
	}

	return result, nil
}

type regionSweep struct {
	region *region.Region
	list   *chunk.List
	stats  *memutils.DetailedStatistics

	runStart region.Address
	runSize  uint64
}

func (s *regionSweep) extend(slot Slot) {
	if s.runStart == region.Null {
		s.runStart = slot.Address
	}
	s.runSize += slot.Size
}

func (s *regionSweep) flush() {
	if s.runStart == region.Null {
		return
	}

	s.poison()
	if s.runSize >= chunk.MinChunkSize {
		s.list.Push(chunk.Format(s.region, s.runStart, s.runSize))
		if s.stats != nil {
			s.stats.AddFreeChunk(int(s.runSize))
		}
	} else {
		chunk.WriteFiller(s.region, s.runStart, s.runSize)
	}

	s.runStart = region.Null
	s.runSize = 0
}

func (s *regionSweep) poison() {
	if memutils.DebugPoisoning && s.runSize > chunk.HeaderSize {
		memutils.WritePoison(s.region.Bytes(s.runStart.Add(chunk.HeaderSize), s.runSize-chunk.HeaderSize))
	}
}
