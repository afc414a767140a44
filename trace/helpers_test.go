package trace_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/immix/object"
	"github.com/vkngwrapper/immix/region"
	"github.com/vkngwrapper/immix/rtti"
)

var errTestStop = errors.New("stop")

type testHeap struct {
	t        *testing.T
	registry *rtti.Registry
	oracle   *object.Oracle
	space    *region.Space
	region   *region.Region

	leaf     *rtti.RTTI
	node     *rtti.RTTI
	objArray *rtti.RTTI
	intArray *rtti.RTTI
	weak     *rtti.RTTI
}

func newTestHeap(t *testing.T) *testHeap {
	registry, err := rtti.NewRegistry(rtti.Ranges{
		ObjectArrayTypeID:        10,
		ArrayTypeIDMin:           10,
		ArrayTypeIDMax:           20,
		WeakReferenceTypeIDMin:   30,
		WeakReferenceTypeIDMax:   31,
		WeakReferenceFieldOffset: 8,
	})
	require.NoError(t, err)

	h := &testHeap{
		t:        t,
		registry: registry,
		space:    &region.Space{},
		leaf:     &rtti.RTTI{TypeID: 5, Name: "Leaf", Size: 16, IDRangeUntil: 5, ReferenceMap: rtti.ReferenceMap{}},
		node:     &rtti.RTTI{TypeID: 6, Name: "Node", Size: 24, IDRangeUntil: 6, ReferenceMap: rtti.ReferenceMap{8, 16}},
		objArray: &rtti.RTTI{TypeID: 10, Name: "ObjectArray", IDRangeUntil: 10},
		intArray: &rtti.RTTI{TypeID: 12, Name: "IntArray", IDRangeUntil: 12},
		weak:     &rtti.RTTI{TypeID: 30, Name: "WeakReference", Size: 24, IDRangeUntil: 30, ReferenceMap: rtti.ReferenceMap{8, 16}},
	}

	for _, descriptor := range []*rtti.RTTI{h.leaf, h.node, h.objArray, h.intArray, h.weak} {
		_, err = registry.Register(descriptor)
		require.NoError(t, err)
	}

	h.oracle, err = object.NewOracle(registry, object.DefaultAllocationAlignment)
	require.NoError(t, err)

	h.region, err = region.NewGoSource(0).Acquire(4096)
	require.NoError(t, err)
	h.space.Add(h.region)

	return h
}

func (h *testHeap) alloc(descriptor *rtti.RTTI) object.Object {
	addr, ok := h.region.Bump(h.oracle.ScalarSize(descriptor))
	require.True(h.t, ok)

	obj := object.At(h.space, addr)
	obj.SetHandle(descriptor.Handle())
	return obj
}

func (h *testHeap) allocArray(descriptor *rtti.RTTI, length, stride int32) object.ArrayHeader {
	size, err := h.oracle.ArraySize(length, stride)
	require.NoError(h.t, err)

	addr, ok := h.region.Bump(size)
	require.True(h.t, ok)

	array := object.ArrayHeader{Object: object.At(h.space, addr)}
	array.SetHandle(descriptor.Handle())
	array.SetDimensions(length, stride)
	return array
}
