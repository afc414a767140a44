package rtti

import "fmt"

// Handle is the value stored in the header word of every heap object. It identifies the RTTI
// registered for the object's class.
type Handle uint64

const (
	// FillerHandle marks a single unused heap word
	FillerHandle Handle = 0
	// ChunkHandle marks a free chunk or a multi-word hole. The size of the span follows in the
	// next word.
	ChunkHandle Handle = 1
	// FirstHandle is the handle given to the first registered descriptor
	FirstHandle Handle = 2
)

// IsObject returns true if the header word h can belong to an object rather than free space
func (h Handle) IsObject() bool {
	return h >= FirstHandle
}

// RTTI is the runtime type descriptor of a class. Exactly one exists per class, and it is never
// modified after it has been registered.
type RTTI struct {
	// Class is the descriptor of the class object describing this type. It is used for reflection
	// and may be nil.
	Class *RTTI
	// TypeID classifies the type against the heap's Ranges
	TypeID int32
	// TraitID is used by interface dispatch
	TraitID int32
	// Name is only used for diagnostics
	Name string
	// Size is the instance size in bytes, header included, before alignment. It is unused
	// for array types.
	Size int32
	// IDRangeUntil is the last type id belonging to a subtype of this type
	IDRangeUntil int32
	// ReferenceMap lists the byte offsets of the reference fields of an instance
	ReferenceMap ReferenceMap

	handle Handle
}

// Handle returns the value to stamp into the header of instances. It is only valid once the
// descriptor has been registered.
func (t *RTTI) Handle() Handle {
	return t.handle
}

// IsSubtypeOf returns true if t's id falls inside other's id range
func (t *RTTI) IsSubtypeOf(other *RTTI) bool {
	return other.TypeID <= t.TypeID && t.TypeID <= other.IDRangeUntil
}

func (t *RTTI) String() string {
	return fmt.Sprintf("%s(id=%d)", t.Name, t.TypeID)
}

// ReferenceMap holds the byte offsets, measured from the start of the object, of every field
// that holds a heap reference.
type ReferenceMap []int64

// lastFieldOffset terminates the compiler's encoding of a reference map
const lastFieldOffset int64 = -1

// DecodeReferenceMap reads a compiler-emitted reference map, which is a list of offsets
// terminated by -1. Anything past the terminator is ignored. An encoding without a terminator
// is read in full.
func DecodeReferenceMap(encoded []int64) ReferenceMap {
	refs := make(ReferenceMap, 0, len(encoded))
	for _, offset := range encoded {
		if offset == lastFieldOffset {
			break
		}
		refs = append(refs, offset)
	}
	return refs
}

// Contains returns true if offset is one of the map's reference fields
func (m ReferenceMap) Contains(offset int64) bool {
	for _, candidate := range m {
		if candidate == offset {
			return true
		}
	}
	return false
}
