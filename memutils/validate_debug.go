//go:build debug_gc_heap

package memutils

import "encoding/binary"

const (
	// DebugPoisoning is true when the debug_gc_heap build tag is present. Reclaimed payloads are
	// overwritten with a marker so that reads through stale references are easy to spot.
	DebugPoisoning = true
	// poisonMagicValue is a 4-byte pattern that is copied across reclaimed heap memory
	poisonMagicValue uint32 = 0x7F84E666
)

// WritePoison writes an easy-to-identify marker across data. A trailing partial word is left alone.
// This method no-ops unless the debug_gc_heap build tag is present.
func WritePoison(data []byte) {
	for len(data) >= 4 {
		binary.LittleEndian.PutUint32(data, poisonMagicValue)
		data = data[4:]
	}
}

// ValidatePoison verifies that the marker written by WritePoison is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_gc_heap build tag is present.
func ValidatePoison(data []byte) bool {
	for len(data) >= 4 {
		if binary.LittleEndian.Uint32(data) != poisonMagicValue {
			return false
		}
		data = data[4:]
	}

	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_gc_heap build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}
