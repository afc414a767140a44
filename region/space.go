package region

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// Space is the ordered set of regions that make up a heap. It resolves an address to the region
// that contains it and forwards word accesses there.
type Space struct {
	regions []*Region
}

var _ Memory = &Space{}

// Add inserts a region, keeping regions ordered by base address
func (s *Space) Add(r *Region) {
	index := sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].Base() >= r.Base()
	})

	s.regions = append(s.regions, nil)
	copy(s.regions[index+1:], s.regions[index:])
	s.regions[index] = r
}

// Remove drops a region from the space. It returns false if the region was not present.
func (s *Space) Remove(r *Region) bool {
	for i, candidate := range s.regions {
		if candidate == r {
			s.regions = append(s.regions[:i], s.regions[i+1:]...)
			return true
		}
	}
	return false
}

// Regions returns the regions in address order. The slice must not be modified.
func (s *Space) Regions() []*Region {
	return s.regions
}

func (s *Space) Len() int {
	return len(s.regions)
}

// Lookup returns the region containing addr, or nil if addr is not in the heap
func (s *Space) Lookup(addr Address) *Region {
	index := sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].End() > addr
	})

	if index < len(s.regions) && s.regions[index].Contains(addr) {
		return s.regions[index]
	}
	return nil
}

// Contains returns true if addr lies inside the carved part of some region
func (s *Space) Contains(addr Address) bool {
	r := s.Lookup(addr)
	return r != nil && addr < r.Top()
}

func (s *Space) mustLookup(addr Address) *Region {
	r := s.Lookup(addr)
	if r == nil {
		panic(errors.AssertionFailedf("address %s is not inside the heap", addr))
	}
	return r
}

func (s *Space) LoadWord(addr Address) uint64 {
	return s.mustLookup(addr).LoadWord(addr)
}

func (s *Space) StoreWord(addr Address, value uint64) {
	s.mustLookup(addr).StoreWord(addr, value)
}

func (s *Space) LoadInt32(addr Address) int32 {
	return s.mustLookup(addr).LoadInt32(addr)
}

func (s *Space) StoreInt32(addr Address, value int32) {
	s.mustLookup(addr).StoreInt32(addr, value)
}

// Zero clears n bytes starting at addr. The span must lie inside a single region.
func (s *Space) Zero(addr Address, n uint64) {
	s.mustLookup(addr).Zero(addr, n)
}
