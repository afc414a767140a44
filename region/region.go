package region

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Address is a virtual heap address. Null is never backed by any region.
type Address uint64

const Null Address = 0

func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// Add returns the address offset bytes past a
func (a Address) Add(offset uint64) Address {
	return a + Address(offset)
}

// Memory is the word-level view of the heap used by headers, chunks and tracers. All values
// are little endian. Out-of-range accesses panic: they can only come from a corrupt header.
type Memory interface {
	LoadWord(addr Address) uint64
	StoreWord(addr Address, value uint64)
	LoadInt32(addr Address) int32
	StoreInt32(addr Address, value int32)
}

// Region is a contiguous span of heap memory handed out by a Source. Objects are carved from the
// bottom of the region with a bump pointer; [Base, Top) has been carved and [Top, End) has not.
type Region struct {
	base Address
	top  Address
	data []byte
}

var _ Memory = &Region{}

// NewRegion wraps data as the region starting at base
func NewRegion(base Address, data []byte) *Region {
	return &Region{
		base: base,
		top:  base,
		data: data,
	}
}

func (r *Region) Base() Address { return r.base }
func (r *Region) End() Address  { return r.base.Add(uint64(len(r.data))) }
func (r *Region) Size() int     { return len(r.data) }
func (r *Region) Top() Address  { return r.top }

// Remaining returns the number of uncarved bytes between Top and End
func (r *Region) Remaining() uint64 {
	return uint64(r.End() - r.top)
}

func (r *Region) Contains(addr Address) bool {
	return addr >= r.base && addr < r.End()
}

// Bump carves size bytes at Top. It returns false, leaving the region untouched, if the
// region does not have room.
func (r *Region) Bump(size uint64) (Address, bool) {
	if size > r.Remaining() {
		return Null, false
	}

	addr := r.top
	r.top = r.top.Add(size)
	return addr, true
}

// SetTop moves the bump pointer. It is used by the sweeper to hand a trailing free run back to
// bump allocation.
func (r *Region) SetTop(addr Address) {
	if addr < r.base || addr > r.End() {
		panic(errors.AssertionFailedf("top %s is outside region [%s, %s)", addr, r.base, r.End()))
	}
	r.top = addr
}

// Bytes returns the n bytes of backing storage starting at addr
func (r *Region) Bytes(addr Address, n uint64) []byte {
	start := r.offset(addr, n)
	return r.data[start : start+n]
}

// Zero clears n bytes starting at addr
func (r *Region) Zero(addr Address, n uint64) {
	clear(r.Bytes(addr, n))
}

func (r *Region) offset(addr Address, n uint64) uint64 {
	if addr < r.base || uint64(addr-r.base)+n > uint64(len(r.data)) || uint64(addr-r.base)+n < n {
		panic(errors.AssertionFailedf("access of %d bytes at %s is outside region [%s, %s)", n, addr, r.base, r.End()))
	}
	return uint64(addr - r.base)
}

func (r *Region) LoadWord(addr Address) uint64 {
	off := r.offset(addr, 8)
	return binary.LittleEndian.Uint64(r.data[off:])
}

func (r *Region) StoreWord(addr Address, value uint64) {
	off := r.offset(addr, 8)
	binary.LittleEndian.PutUint64(r.data[off:], value)
}

func (r *Region) LoadInt32(addr Address) int32 {
	off := r.offset(addr, 4)
	return int32(binary.LittleEndian.Uint32(r.data[off:]))
}

func (r *Region) StoreInt32(addr Address, value int32) {
	off := r.offset(addr, 4)
	binary.LittleEndian.PutUint32(r.data[off:], uint32(value))
}
