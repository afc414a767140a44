package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/immix/chunk"
	"github.com/vkngwrapper/immix/internal/locks"
	"github.com/vkngwrapper/immix/object"
	"github.com/vkngwrapper/immix/region"
	"github.com/vkngwrapper/immix/rtti"
	"github.com/vkngwrapper/immix/trace"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific heap behaviors to activate or deactivate
type CreateFlags int32

var createFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	createFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return createFlagsMapping.FlagsToString(f)
}

const (
	// HeapCreateExternallySynchronized ensures that the heap and its free list will not be
	// synchronized internally. The consumer must guarantee the heap is used from only one goroutine
	// at a time or is synchronized by some other mechanism.
	HeapCreateExternallySynchronized CreateFlags = 1 << iota
	// HeapCreateValidateCollections runs Validate after every collection and fails the collection
	// if the heap is inconsistent. This is expensive and intended for tests and diagnostics.
	HeapCreateValidateCollections
	// HeapCreateKeepEmptyRegions stops collections from releasing regions that no longer hold any
	// live objects back to the Source
	HeapCreateKeepEmptyRegions
)

func init() {
	HeapCreateExternallySynchronized.Register("HeapCreateExternallySynchronized")
	HeapCreateValidateCollections.Register("HeapCreateValidateCollections")
	HeapCreateKeepEmptyRegions.Register("HeapCreateKeepEmptyRegions")
}

const (
	// defaultRegionSize is the value that is used as the RegionSize when none is provided via
	// CreateOptions. It is equal to 1Mb.
	defaultRegionSize int = 1024 * 1024
)

// CreateOptions contains optional settings when creating a heap
type CreateOptions struct {
	// Flags indicates specific heap behaviors to activate or deactivate
	Flags CreateFlags
	// Alignment is the allocation alignment in bytes. Every object size is rounded up to a multiple
	// of it. It must be a positive multiple of the word size and defaults to
	// object.DefaultAllocationAlignment.
	Alignment uint64
	// RegionSize is the size of the regions requested from Source. Objects larger than a region are
	// given a region of their own, rounded up to a multiple of RegionSize.
	RegionSize int
	// Source supplies the heap's memory. A GoSource without a limit is used when it is nil.
	Source region.Source
	// OnWeakReferenceCleared is called during a collection for every weak reference whose referent
	// is cleared. It runs while the heap is locked and must not call back into the heap.
	OnWeakReferenceCleared trace.WeakClearFunc
}

// New creates a new Heap that allocates objects described by registry
//
// logger - The logger to write collection and region diagnostics to. slog.Default() is used when nil.
//
// registry - The descriptors of every type that will be allocated, along with the classification ranges
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, registry *rtti.Registry, options CreateOptions) (*Heap, error) {
	if logger == nil {
		logger = slog.Default()
	}

	alignment := options.Alignment
	if alignment == 0 {
		alignment = object.DefaultAllocationAlignment
	}

	oracle, err := object.NewOracle(registry, alignment)
	if err != nil {
		return nil, errors.Wrap(err, "heap.CreateOptions.Alignment")
	}

	regionSize := options.RegionSize
	if regionSize == 0 {
		regionSize = defaultRegionSize
	}
	if regionSize < chunk.MinChunkSize || uint64(regionSize)%alignment != 0 {
		return nil, errors.Newf("heap.CreateOptions.RegionSize must be a multiple of the alignment %d, but was %d", alignment, regionSize)
	}

	source := options.Source
	if source == nil {
		source = region.NewGoSource(0)
	}

	useMutex := options.Flags&HeapCreateExternallySynchronized == 0

	h := &Heap{
		logger:        logger,
		mutex:         locks.NewRW(useMutex),
		createFlags:   options.Flags,
		registry:      registry,
		oracle:        oracle,
		source:        source,
		regionSize:    regionSize,
		onWeakCleared: options.OnWeakReferenceCleared,
	}
	h.freeList = chunk.NewList(&h.space, useMutex)

	return h, nil
}
