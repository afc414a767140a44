//go:build !debug_gc_heap

package memutils

const (
	// DebugPoisoning is true when the debug_gc_heap build tag is present. Reclaimed payloads are
	// overwritten with a marker so that reads through stale references are easy to spot.
	DebugPoisoning = false
)

// WritePoison writes an easy-to-identify marker across data. A trailing partial word is left alone.
// This method no-ops unless the debug_gc_heap build tag is present.
func WritePoison(data []byte) {
}

// ValidatePoison verifies that the marker written by WritePoison is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_gc_heap build tag is present.
func ValidatePoison(data []byte) bool {
	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_gc_heap build tag is present
func DebugValidate(validatable Validatable) {
}
