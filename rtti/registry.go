package rtti

import (
	"sort"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
)

// WordSize is the size in bytes of a heap word, and of the header word every object begins with
const WordSize = 8

// Registry holds every RTTI known to a heap, along with the heap's classification Ranges.
// Descriptors are registered while the program starts up. After that the registry is only read,
// and lookups are safe from any goroutine.
type Registry struct {
	mutex  sync.RWMutex
	ranges Ranges

	nextHandle Handle
	byHandle   *swiss.Map[Handle, *RTTI]
	byTypeID   *swiss.Map[int32, *RTTI]
}

// NewRegistry validates ranges and creates an empty registry that classifies with them
func NewRegistry(ranges Ranges) (*Registry, error) {
	err := ranges.Validate()
	if err != nil {
		return nil, cerrors.Wrap(err, "invalid classification ranges")
	}

	return &Registry{
		ranges:     ranges,
		nextHandle: FirstHandle,
		byHandle:   swiss.NewMap[Handle, *RTTI](64),
		byTypeID:   swiss.NewMap[int32, *RTTI](64),
	}, nil
}

// Ranges returns the classification ranges. The returned value must not be modified.
func (r *Registry) Ranges() *Ranges {
	return &r.ranges
}

// Register validates t, assigns it a handle and makes it available to lookups. Once registered,
// t must not be modified.
func (r *Registry) Register(t *RTTI) (Handle, error) {
	if t == nil {
		return FillerHandle, errors.New("cannot register a nil descriptor")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if t.handle != FillerHandle {
		return FillerHandle, errors.Errorf("descriptor %s is already registered", t)
	}

	if existing, ok := r.byTypeID.Get(t.TypeID); ok {
		return FillerHandle, errors.Errorf("type id %d is already used by %s", t.TypeID, existing.Name)
	}

	err := r.validateDescriptor(t)
	if err != nil {
		return FillerHandle, cerrors.Wrapf(err, "invalid descriptor %s", t)
	}

	t.handle = r.nextHandle
	r.nextHandle++
	r.byHandle.Put(t.handle, t)
	r.byTypeID.Put(t.TypeID, t)

	return t.handle, nil
}

func (r *Registry) validateDescriptor(t *RTTI) error {
	if t.IDRangeUntil < t.TypeID {
		return errors.Errorf("id range end %d is below the type id", t.IDRangeUntil)
	}

	if r.ranges.IsArrayID(t.TypeID) {
		// Arrays carry their own length and stride, and object arrays are traced element by element
		return nil
	}

	if t.Size < WordSize {
		return errors.Errorf("instance size %d is smaller than the object header", t.Size)
	}

	if t.ReferenceMap == nil && t.Size > WordSize {
		return errors.Errorf("type has %d bytes of fields but no reference map", t.Size-WordSize)
	}

	for _, offset := range t.ReferenceMap {
		if offset < WordSize || offset%WordSize != 0 || offset+WordSize > int64(t.Size) {
			return errors.Errorf("reference field offset %d does not name a word inside the %d byte instance", offset, t.Size)
		}
	}

	if r.ranges.IsWeakReferenceID(t.TypeID) && !t.ReferenceMap.Contains(r.ranges.WeakReferenceFieldOffset) {
		return errors.Errorf("weak reference type does not have a reference field at the referent offset %d", r.ranges.WeakReferenceFieldOffset)
	}

	return nil
}

// Lookup resolves a header handle to its descriptor
func (r *Registry) Lookup(handle Handle) (*RTTI, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.byHandle.Get(handle)
}

// ByTypeID finds the descriptor registered with the provided type id
func (r *Registry) ByTypeID(id int32) (*RTTI, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.byTypeID.Get(id)
}

// Len returns the number of registered descriptors
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.byHandle.Count()
}

// Each calls visit for every registered descriptor in type id order
func (r *Registry) Each(visit func(t *RTTI)) {
	r.mutex.RLock()
	descriptors := make([]*RTTI, 0, r.byHandle.Count())
	r.byHandle.Iter(func(_ Handle, t *RTTI) bool {
		descriptors = append(descriptors, t)
		return false
	})
	r.mutex.RUnlock()

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].TypeID < descriptors[j].TypeID
	})

	for _, t := range descriptors {
		visit(t)
	}
}

// PrintJson writes the classification ranges and every registered descriptor
func (r *Registry) PrintJson(writer *jwriter.Writer) {
	obj := writer.Object()
	defer obj.End()

	rangesObj := obj.Name("Ranges").Object()
	rangesObj.Name("ObjectArrayTypeID").Int(int(r.ranges.ObjectArrayTypeID))
	rangesObj.Name("ArrayTypeIDMin").Int(int(r.ranges.ArrayTypeIDMin))
	rangesObj.Name("ArrayTypeIDMax").Int(int(r.ranges.ArrayTypeIDMax))
	rangesObj.Name("WeakReferenceTypeIDMin").Int(int(r.ranges.WeakReferenceTypeIDMin))
	rangesObj.Name("WeakReferenceTypeIDMax").Int(int(r.ranges.WeakReferenceTypeIDMax))
	rangesObj.Name("WeakReferenceFieldOffset").Int(int(r.ranges.WeakReferenceFieldOffset))
	rangesObj.End()

	types := obj.Name("Types").Array()
	r.Each(func(t *RTTI) {
		typeObj := types.Object()
		defer typeObj.End()

		typeObj.Name("Name").String(t.Name)
		typeObj.Name("TypeID").Int(int(t.TypeID))
		typeObj.Name("TraitID").Int(int(t.TraitID))
		typeObj.Name("Size").Int(int(t.Size))
		typeObj.Name("IDRangeUntil").Int(int(t.IDRangeUntil))
		if t.Class != nil {
			typeObj.Name("Class").String(t.Class.Name)
		}

		refs := typeObj.Name("ReferenceMap").Array()
		for _, offset := range t.ReferenceMap {
			refs.Int(int(offset))
		}
		refs.End()
	})
	types.End()
}
