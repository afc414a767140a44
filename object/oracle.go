package object

import (
	"math"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/immix/memutils"
	"github.com/vkngwrapper/immix/rtti"
)

// Oracle answers the two questions every collector phase asks about an object: what kind of
// object is it, and how many bytes does it occupy. Its answers depend only on the object header,
// the registry, and the allocation alignment, so an Oracle may be shared freely.
//
// Every method assumes it is handed a live, well-formed object. A header that does not resolve
// to a registered RTTI, or array dimensions that are negative or overflow, are heap integrity
// violations and cause a panic.
type Oracle struct {
	registry  *rtti.Registry
	ranges    *rtti.Ranges
	alignment uint64
}

// NewOracle creates an oracle that classifies with registry's ranges and rounds sizes to
// alignment. alignment must be the same value the allocator carves with.
func NewOracle(registry *rtti.Registry, alignment uint64) (*Oracle, error) {
	if registry == nil {
		return nil, errors.New("an oracle requires a registry")
	}

	err := memutils.CheckAlignment(alignment, WordSize, "alignment")
	if err != nil {
		return nil, err
	}

	return &Oracle{
		registry:  registry,
		ranges:    registry.Ranges(),
		alignment: alignment,
	}, nil
}

func (o *Oracle) Registry() *rtti.Registry { return o.registry }
func (o *Oracle) Ranges() *rtti.Ranges     { return o.ranges }
func (o *Oracle) Alignment() uint64        { return o.alignment }

// RTTI resolves the object's header to its descriptor
func (o *Oracle) RTTI(obj Object) *rtti.RTTI {
	handle := obj.Handle()
	if !handle.IsObject() {
		panic(cerrors.AssertionFailedf("object at %s has no RTTI: header word is %d", obj.Address(), handle))
	}

	t, ok := o.registry.Lookup(handle)
	if !ok {
		panic(cerrors.AssertionFailedf("object at %s has unregistered RTTI handle %d", obj.Address(), handle))
	}

	return t
}

// IsArray returns true if the object's type id lies in the array id range
func (o *Oracle) IsArray(obj Object) bool {
	return o.ranges.IsArrayID(o.RTTI(obj).TypeID)
}

// IsWeakReference returns true if the object's type id lies in the weak reference id range
func (o *Oracle) IsWeakReference(obj Object) bool {
	return o.ranges.IsWeakReferenceID(o.RTTI(obj).TypeID)
}

// IsReferentField returns true if fieldOffset is the referent field of a weak reference. Such a
// field must not be traced as a strong edge.
func (o *Oracle) IsReferentField(obj Object, fieldOffset int64) bool {
	return o.IsWeakReference(obj) && fieldOffset == o.ranges.WeakReferenceFieldOffset
}

func (o *Oracle) Kind(obj Object) Kind {
	t := o.RTTI(obj)
	switch {
	case o.ranges.IsArrayID(t.TypeID):
		return KindArray
	case o.ranges.IsWeakReferenceID(t.TypeID):
		return KindWeakReference
	}
	return KindObject
}

// AsArray reinterprets obj as an array header. The second return value is false, and the header
// must not be used, if obj is not classified as an array.
func (o *Oracle) AsArray(obj Object) (ArrayHeader, bool) {
	if !o.IsArray(obj) {
		return ArrayHeader{}, false
	}
	return ArrayHeader{Object: obj}, true
}

// Size returns the number of bytes obj occupies in the heap, rounded up to the allocation
// alignment. Walking a region by repeatedly adding Size visits every object in it.
func (o *Oracle) Size(obj Object) uint64 {
	t := o.RTTI(obj)
	if !o.ranges.IsArrayID(t.TypeID) {
		return o.ScalarSize(t)
	}

	array := ArrayHeader{Object: obj}
	size, err := o.ArraySize(array.Length(), array.Stride())
	if err != nil {
		panic(cerrors.NewAssertionErrorWithWrappedErrf(err, "array at %s has corrupt dimensions", obj.Address()))
	}
	return size
}

// ScalarSize returns the aligned size of a non-array instance of t
func (o *Oracle) ScalarSize(t *rtti.RTTI) uint64 {
	if t.Size < ObjectHeaderSize {
		panic(cerrors.AssertionFailedf("descriptor %s has instance size %d", t, t.Size))
	}
	return memutils.RoundToNextMultiple(uint64(t.Size), o.alignment)
}

// ArraySize returns the aligned size of an array with the provided dimensions. It returns an
// error rather than a wrapped value if the dimensions are invalid or the size does not fit.
func (o *Oracle) ArraySize(length, stride int32) (uint64, error) {
	if length < 0 {
		return 0, errors.Errorf("array length %d is negative", length)
	}
	if stride <= 0 {
		return 0, errors.Errorf("array stride %d is not positive", stride)
	}

	raw, err := memutils.CheckedMulAdd(ArrayHeaderSize, uint64(length), uint64(stride))
	if err != nil {
		return 0, err
	}

	size, err := memutils.CheckedRoundToNextMultiple(raw, o.alignment)
	if err != nil {
		return 0, err
	}

	if size > math.MaxInt {
		return 0, cerrors.Wrapf(memutils.OverflowError, "array size %d does not fit in an int", size)
	}
	return size, nil
}
