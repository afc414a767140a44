package memutils

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// CheckAlignment verifies that alignment is a positive multiple of wordSize. Alignments do not need
// to be powers of two.
func CheckAlignment(alignment, wordSize uint64, name string) error {
	if alignment == 0 || alignment%wordSize != 0 {
		return cerrors.Wrapf(AlignmentError, "%s is %d", name, alignment)
	}
	return nil
}

// RoundToNextMultiple rounds value up to the next multiple of alignment. Alignment may be any positive
// value, not only a power of two. The caller is responsible for making sure value+alignment-1 does not
// overflow T; see CheckedRoundToNextMultiple.
func RoundToNextMultiple[T constraints.Unsigned](value, alignment T) T {
	return ((value + alignment - 1) / alignment) * alignment
}

// CheckedRoundToNextMultiple behaves like RoundToNextMultiple but reports OverflowError instead of
// wrapping.
func CheckedRoundToNextMultiple(value, alignment uint64) (uint64, error) {
	bumped, carry := bits.Add64(value, alignment-1, 0)
	if carry != 0 {
		return 0, cerrors.Wrapf(OverflowError, "rounding %d to a multiple of %d", value, alignment)
	}
	return (bumped / alignment) * alignment, nil
}

// CheckedMulAdd returns base + count*each, or OverflowError if any step exceeds 64 bits.
func CheckedMulAdd(base, count, each uint64) (uint64, error) {
	hi, product := bits.Mul64(count, each)
	if hi != 0 {
		return 0, cerrors.Wrapf(OverflowError, "%d * %d", count, each)
	}

	sum, carry := bits.Add64(base, product, 0)
	if carry != 0 {
		return 0, cerrors.Wrapf(OverflowError, "%d + %d", base, product)
	}

	return sum, nil
}
