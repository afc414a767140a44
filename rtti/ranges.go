package rtti

import (
	"github.com/pkg/errors"
)

// Ranges is the classification configuration emitted by the compiler. Every id range is
// inclusive on both ends. A Ranges value is built once, validated, and then only read.
type Ranges struct {
	// ObjectArrayTypeID is the id of the array type whose elements are all references
	ObjectArrayTypeID int32
	ArrayTypeIDMin    int32
	ArrayTypeIDMax    int32

	WeakReferenceTypeIDMin int32
	WeakReferenceTypeIDMax int32
	// WeakReferenceFieldOffset is the byte offset, from the start of a weak reference object, of
	// the field holding its referent
	WeakReferenceFieldOffset int64
}

// Validate checks that the ranges are well formed. Array and weak reference ranges must not
// overlap, so that no type is classified as both.
func (r *Ranges) Validate() error {
	if r.ArrayTypeIDMin > r.ArrayTypeIDMax {
		return errors.Errorf("array id range [%d, %d] is inverted", r.ArrayTypeIDMin, r.ArrayTypeIDMax)
	}

	if r.WeakReferenceTypeIDMin > r.WeakReferenceTypeIDMax {
		return errors.Errorf("weak reference id range [%d, %d] is inverted", r.WeakReferenceTypeIDMin, r.WeakReferenceTypeIDMax)
	}

	if r.ArrayTypeIDMin <= r.WeakReferenceTypeIDMax && r.WeakReferenceTypeIDMin <= r.ArrayTypeIDMax {
		return errors.Errorf("array id range [%d, %d] overlaps weak reference id range [%d, %d]",
			r.ArrayTypeIDMin, r.ArrayTypeIDMax, r.WeakReferenceTypeIDMin, r.WeakReferenceTypeIDMax)
	}

	if !r.IsArrayID(r.ObjectArrayTypeID) {
		return errors.Errorf("object array id %d is outside the array id range [%d, %d]",
			r.ObjectArrayTypeID, r.ArrayTypeIDMin, r.ArrayTypeIDMax)
	}

	if r.WeakReferenceFieldOffset < WordSize || r.WeakReferenceFieldOffset%WordSize != 0 {
		return errors.Errorf("weak reference field offset %d must be a word-aligned offset past the header", r.WeakReferenceFieldOffset)
	}

	return nil
}

func (r *Ranges) IsArrayID(id int32) bool {
	return r.ArrayTypeIDMin <= id && id <= r.ArrayTypeIDMax
}

func (r *Ranges) IsWeakReferenceID(id int32) bool {
	return r.WeakReferenceTypeIDMin <= id && id <= r.WeakReferenceTypeIDMax
}

func (r *Ranges) IsObjectArrayID(id int32) bool {
	return id == r.ObjectArrayTypeID
}
