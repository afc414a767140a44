package trace

import (
	"context"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/immix/object"
	"github.com/vkngwrapper/immix/region"
	"golang.org/x/exp/slog"
)

// Phase is the stage a Cycle has reached
type Phase int

const (
	// PhaseMarking means strong references are still being traced
	PhaseMarking Phase = iota
	// PhaseWeakCleared means dead weak referents have been cleared and the marks are final
	PhaseWeakCleared
)

func (p Phase) String() string {
	switch p {
	case PhaseMarking:
		return "Marking"
	case PhaseWeakCleared:
		return "WeakCleared"
	}
	return "unknown"
}

// WeakClearFunc is called once for each weak reference whose referent was cleared
type WeakClearFunc func(weakReference, referent region.Address)

// Cycle is the marking half of one collection. Roots are marked, then everything reachable
// through strong references is marked, then weak references to unmarked objects are cleared.
// The referent field of a weak reference is never traced as a strong edge.
//
// A Cycle is not safe for concurrent use. The mutator must stay stopped from the first call
// to MarkRoots until ClearWeakReferences returns.
type Cycle struct {
	space  *region.Space
	oracle *object.Oracle
	logger *slog.Logger

	phase    Phase
	marks    *swiss.Map[region.Address, struct{}]
	worklist []region.Address
	weakRefs []region.Address

	liveObjects int
	liveBytes   uint64
}

// NewCycle prepares a marking pass over space
func NewCycle(space *region.Space, oracle *object.Oracle, logger *slog.Logger) *Cycle {
	if logger == nil {
		logger = slog.Default()
	}

	return &Cycle{
		space:  space,
		oracle: oracle,
		logger: logger,
		marks:  swiss.NewMap[region.Address, struct{}](256),
	}
}

func (c *Cycle) Phase() Phase { return c.phase }

// LiveObjects is the number of objects marked so far
func (c *Cycle) LiveObjects() int { return c.liveObjects }

// LiveBytes is the total Size of the objects marked so far
func (c *Cycle) LiveBytes() uint64 { return c.liveBytes }

// IsMarked returns true if the object at addr has been reached
func (c *Cycle) IsMarked(addr region.Address) bool {
	return c.marks.Has(addr)
}

// MarkRoots marks every non-null root and queues it for scanning. Roots must point at objects in
// the heap.
func (c *Cycle) MarkRoots(roots []region.Address) {
	if c.phase != PhaseMarking {
		panic(cerrors.AssertionFailedf("cannot mark roots in phase %s", c.phase))
	}

	for _, root := range roots {
		if root != region.Null {
			c.mark(root)
		}
	}
}

// Drain scans queued objects until nothing reachable is left unmarked
func (c *Cycle) Drain() {
	for len(c.worklist) > 0 {
		last := len(c.worklist) - 1
		addr := c.worklist[last]
		c.worklist = c.worklist[:last]

		c.scan(object.At(c.space, addr))
	}
}

func (c *Cycle) mark(addr region.Address) {
	if c.marks.Has(addr) {
		return
	}

	if !c.space.Contains(addr) {
		panic(cerrors.AssertionFailedf("reference to %s points outside the heap", addr))
	}

	c.marks.Put(addr, struct{}{})
	c.liveObjects++
	c.liveBytes += c.oracle.Size(object.At(c.space, addr))
	c.worklist = append(c.worklist, addr)
}

func (c *Cycle) scan(obj object.Object) {
	t := c.oracle.RTTI(obj)
	ranges := c.oracle.Ranges()

	if ranges.IsArrayID(t.TypeID) {
		if !ranges.IsObjectArrayID(t.TypeID) {
			return
		}

		array := object.ArrayHeader{Object: obj}
		if array.Stride() != object.WordSize {
			panic(cerrors.AssertionFailedf("object array at %s has stride %d", obj.Address(), array.Stride()))
		}

		length := int(array.Length())
		for i := 0; i < length; i++ {
			if ref := array.LoadElementReference(i); ref != region.Null {
				c.mark(ref)
			}
		}
		return
	}

	if t.ReferenceMap == nil && t.Size > object.ObjectHeaderSize {
		panic(cerrors.AssertionFailedf("object at %s has type %s with fields but no reference map", obj.Address(), t))
	}

	for _, offset := range t.ReferenceMap {
		if c.oracle.IsReferentField(obj, offset) {
			c.weakRefs = append(c.weakRefs, obj.Address())
			continue
		}

		if ref := obj.LoadReference(offset); ref != region.Null {
			c.mark(ref)
		}
	}
}

// ClearWeakReferences nulls the referent of every reached weak reference whose referent was not
// marked, calling onClear for each one. It returns the number of referents cleared. It is an
// error to call it while objects are still queued, since a referent that is only reachable
// through a queued object would be cleared while still live.
func (c *Cycle) ClearWeakReferences(onClear WeakClearFunc) (int, error) {
	if c.phase != PhaseMarking {
		return 0, errors.New("weak references have already been cleared")
	}

	if len(c.worklist) > 0 {
		return 0, errors.Errorf("strong marking has not finished: %d objects are still queued", len(c.worklist))
	}

	offset := c.oracle.Ranges().WeakReferenceFieldOffset
	cleared := 0
	for _, addr := range c.weakRefs {
		weak := object.At(c.space, addr)
		referent := weak.LoadReference(offset)
		if referent == region.Null || c.marks.Has(referent) {
			continue
		}

		weak.StoreReference(offset, region.Null)
		cleared++
		if onClear != nil {
			onClear(addr, referent)
		}
	}

	c.phase = PhaseWeakCleared
	c.logger.LogAttrs(context.Background(),
		slog.LevelDebug,
		"weak references processed",
		slog.Int("weakReferences", len(c.weakRefs)),
		slog.Int("cleared", cleared))

	return cleared, nil
}
