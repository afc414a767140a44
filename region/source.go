package region

//go:generate mockgen -package mocks -destination mocks/source.go github.com/vkngwrapper/immix/region Source

import (
	"math"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
)

// ErrSourceExhausted is returned by a Source that cannot supply any more memory
var ErrSourceExhausted = errors.New("memory source exhausted")

// Source supplies and reclaims the raw regions that back the heap. It stands in for the
// operating system's page mapping calls.
type Source interface {
	// Acquire returns a fresh, zeroed region of at least size bytes. It returns an error wrapping
	// ErrSourceExhausted when no more memory can be supplied.
	Acquire(size int) (*Region, error)
	// Release hands a region back to the source. The region must not be used afterward.
	Release(region *Region) error
}

const (
	// goSourceFirstBase is the address of the first region a GoSource hands out. Keeping low
	// addresses unmapped means a small integer stored in a reference field faults on access.
	goSourceFirstBase Address = 0x10000
	// goSourceGuard is the unmapped gap left between consecutive regions
	goSourceGuard uint64 = 0x1000
	// MaxRegionSize is the largest region a GoSource hands out, limit or not
	MaxRegionSize = math.MaxInt32
)

// GoSource is a Source backed by Go-allocated byte slices. Each region is assigned a virtual base
// address that never overlaps another region handed out by the same source.
type GoSource struct {
	mutex    sync.Mutex
	limit    int
	inUse    int
	nextBase Address
	live     map[Address]*Region
}

var _ Source = &GoSource{}

// NewGoSource creates a GoSource that will refuse to have more than limit bytes acquired at once.
// A limit of 0 means no limit.
func NewGoSource(limit int) *GoSource {
	return &GoSource{
		limit:    limit,
		nextBase: goSourceFirstBase,
		live:     make(map[Address]*Region),
	}
}

func (s *GoSource) Acquire(size int) (*Region, error) {
	if size <= 0 {
		return nil, cerrors.Newf("region size must be positive, but was %d", size)
	}

	if size > MaxRegionSize {
		return nil, cerrors.Wrapf(ErrSourceExhausted, "%d bytes requested, the largest region is %d", size, MaxRegionSize)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.limit > 0 && s.inUse+size > s.limit {
		return nil, cerrors.Wrapf(ErrSourceExhausted, "%d bytes in use, %d requested, limit %d", s.inUse, size, s.limit)
	}

	base := s.nextBase
	s.nextBase = base.Add(uint64(size) + goSourceGuard)
	s.inUse += size

	r := NewRegion(base, make([]byte, size))
	s.live[base] = r
	return r, nil
}

func (s *GoSource) Release(region *Region) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	live, ok := s.live[region.Base()]
	if !ok || live != region {
		return cerrors.Newf("region at %s was not acquired from this source", region.Base())
	}

	delete(s.live, region.Base())
	s.inUse -= region.Size()
	region.data = nil
	return nil
}

// InUse returns the number of bytes currently acquired from this source
func (s *GoSource) InUse() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.inUse
}
