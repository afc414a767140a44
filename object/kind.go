package object

// Kind is the classification of a heap object
type Kind int

const (
	KindObject Kind = iota
	KindArray
	KindWeakReference
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "Object"
	case KindArray:
		return "Array"
	case KindWeakReference:
		return "WeakReference"
	}

	return "unknown"
}
