package memutils

import "github.com/pkg/errors"

// AlignmentError is the error returned when an allocation alignment is not a positive multiple of the word size
var AlignmentError error = errors.New("alignment must be a positive multiple of the word size")

// OverflowError is the error returned from the checked arithmetic helpers when a result does not fit in 64 bits
var OverflowError error = errors.New("size computation overflowed")

// Validatable is anything that can check its own consistency, such as a free chunk list or a
// whole heap. DebugValidate calls Validate on it in debug builds.
type Validatable interface {
	Validate() error
}
