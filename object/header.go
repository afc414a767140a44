package object

import (
	"github.com/vkngwrapper/immix/region"
	"github.com/vkngwrapper/immix/rtti"
)

const (
	// WordSize is the size of a heap word and of a reference field
	WordSize = rtti.WordSize
	// ObjectHeaderSize is the size of the header every object begins with: a single RTTI handle
	ObjectHeaderSize = WordSize
	// ArrayHeaderSize is the size of an array's header: the RTTI handle, then an int32 length and
	// an int32 stride
	ArrayHeaderSize = WordSize + 4 + 4
	// DefaultAllocationAlignment is the alignment allocations are rounded to unless the heap is
	// configured otherwise
	DefaultAllocationAlignment = 2 * WordSize

	arrayLengthOffset = WordSize
	arrayStrideOffset = WordSize + 4
)

// Object is a view of the object whose header starts at an address. It holds no state of
// its own.
type Object struct {
	mem  region.Memory
	addr region.Address
}

// At returns a view of the object at addr
func At(mem region.Memory, addr region.Address) Object {
	return Object{mem: mem, addr: addr}
}

func (o Object) Address() region.Address { return o.addr }
func (o Object) Memory() region.Memory   { return o.mem }

func (o Object) IsNull() bool {
	return o.addr == region.Null
}

// Handle reads the RTTI handle from the header
func (o Object) Handle() rtti.Handle {
	return rtti.Handle(o.mem.LoadWord(o.addr))
}

// SetHandle stamps the RTTI handle into the header. It must happen before the object is visible to
// the collector or to another goroutine.
func (o Object) SetHandle(handle rtti.Handle) {
	o.mem.StoreWord(o.addr, uint64(handle))
}

// FieldBase is the address of the first byte after the object header
func (o Object) FieldBase() region.Address {
	return o.addr.Add(ObjectHeaderSize)
}

// LoadField reads the word at offset bytes from the start of the object. Offsets are the ones
// used by reference maps, so they include the header.
func (o Object) LoadField(offset int64) uint64 {
	return o.mem.LoadWord(o.addr.Add(uint64(offset)))
}

func (o Object) StoreField(offset int64, value uint64) {
	o.mem.StoreWord(o.addr.Add(uint64(offset)), value)
}

// LoadReference reads a reference field
func (o Object) LoadReference(offset int64) region.Address {
	return region.Address(o.LoadField(offset))
}

func (o Object) StoreReference(offset int64, target region.Address) {
	o.StoreField(offset, uint64(target))
}

// ArrayHeader is a view of an object that has been classified as an array. Obtain one from
// Oracle.AsArray, which checks the classification first.
type ArrayHeader struct {
	Object
}

func (a ArrayHeader) Length() int32 {
	return a.mem.LoadInt32(a.addr.Add(arrayLengthOffset))
}

func (a ArrayHeader) Stride() int32 {
	return a.mem.LoadInt32(a.addr.Add(arrayStrideOffset))
}

// SetDimensions writes length and stride. It is only used by the allocator while stamping a
// fresh array.
func (a ArrayHeader) SetDimensions(length, stride int32) {
	a.mem.StoreInt32(a.addr.Add(arrayLengthOffset), length)
	a.mem.StoreInt32(a.addr.Add(arrayStrideOffset), stride)
}

// ElementBase is the address of the first element
func (a ArrayHeader) ElementBase() region.Address {
	return a.addr.Add(ArrayHeaderSize)
}

// ElementAddress is the address of element index. No bounds check is performed.
func (a ArrayHeader) ElementAddress(index int) region.Address {
	return a.ElementBase().Add(uint64(index) * uint64(a.Stride()))
}

// LoadElementReference reads element index of an object array
func (a ArrayHeader) LoadElementReference(index int) region.Address {
	return region.Address(a.mem.LoadWord(a.ElementAddress(index)))
}

func (a ArrayHeader) StoreElementReference(index int, target region.Address) {
	a.mem.StoreWord(a.ElementAddress(index), uint64(target))
}
