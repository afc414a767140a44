package rtti_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/immix/rtti"
)

func testRanges() rtti.Ranges {
	return rtti.Ranges{
		ObjectArrayTypeID:        10,
		ArrayTypeIDMin:           10,
		ArrayTypeIDMax:           20,
		WeakReferenceTypeIDMin:   30,
		WeakReferenceTypeIDMax:   31,
		WeakReferenceFieldOffset: 8,
	}
}

func TestRangesClassification(t *testing.T) {
	ranges := testRanges()
	require.NoError(t, ranges.Validate())

	require.False(t, ranges.IsArrayID(5))
	require.False(t, ranges.IsArrayID(9))
	require.True(t, ranges.IsArrayID(10))
	require.True(t, ranges.IsArrayID(15))
	require.True(t, ranges.IsArrayID(20))
	require.False(t, ranges.IsArrayID(21))

	require.False(t, ranges.IsWeakReferenceID(29))
	require.True(t, ranges.IsWeakReferenceID(30))
	require.True(t, ranges.IsWeakReferenceID(31))
	require.False(t, ranges.IsWeakReferenceID(32))

	require.True(t, ranges.IsObjectArrayID(10))
	require.False(t, ranges.IsObjectArrayID(11))
}

func TestRangesValidate(t *testing.T) {
	inverted := testRanges()
	inverted.ArrayTypeIDMin = 21
	require.ErrorContains(t, inverted.Validate(), "array id range [21, 20] is inverted")

	invertedWeak := testRanges()
	invertedWeak.WeakReferenceTypeIDMax = 29
	require.ErrorContains(t, invertedWeak.Validate(), "weak reference id range [30, 29] is inverted")

	overlapping := testRanges()
	overlapping.WeakReferenceTypeIDMin = 20
	require.ErrorContains(t, overlapping.Validate(), "overlaps")

	strayObjectArray := testRanges()
	strayObjectArray.ObjectArrayTypeID = 5
	require.ErrorContains(t, strayObjectArray.Validate(), "object array id 5 is outside the array id range")

	badOffset := testRanges()
	badOffset.WeakReferenceFieldOffset = 12
	require.ErrorContains(t, badOffset.Validate(), "weak reference field offset 12")

	headerOffset := testRanges()
	headerOffset.WeakReferenceFieldOffset = 0
	require.Error(t, headerOffset.Validate())

	_, err := rtti.NewRegistry(overlapping)
	require.ErrorContains(t, err, "invalid classification ranges")
}

func TestRegisterAssignsHandles(t *testing.T) {
	registry, err := rtti.NewRegistry(testRanges())
	require.NoError(t, err)

	object := &rtti.RTTI{TypeID: 1, Name: "Object", Size: 8, IDRangeUntil: 40, ReferenceMap: rtti.ReferenceMap{}}
	point := &rtti.RTTI{TypeID: 5, Name: "Point", Size: 24, IDRangeUntil: 5, ReferenceMap: rtti.ReferenceMap{}}
	objArray := &rtti.RTTI{TypeID: 10, Name: "ObjectArray", IDRangeUntil: 10}

	handle, err := registry.Register(object)
	require.NoError(t, err)
	require.Equal(t, rtti.FirstHandle, handle)
	require.Equal(t, handle, object.Handle())
	require.True(t, handle.IsObject())
	require.False(t, rtti.ChunkHandle.IsObject())
	require.False(t, rtti.FillerHandle.IsObject())

	handle, err = registry.Register(point)
	require.NoError(t, err)
	require.Equal(t, rtti.FirstHandle+1, handle)

	_, err = registry.Register(objArray)
	require.NoError(t, err)
	require.Equal(t, 3, registry.Len())

	found, ok := registry.Lookup(point.Handle())
	require.True(t, ok)
	require.Same(t, point, found)

	found, ok = registry.ByTypeID(10)
	require.True(t, ok)
	require.Same(t, objArray, found)

	_, ok = registry.Lookup(rtti.ChunkHandle)
	require.False(t, ok)

	require.True(t, point.IsSubtypeOf(object))
	require.False(t, object.IsSubtypeOf(point))

	var names []string
	registry.Each(func(t *rtti.RTTI) {
		names = append(names, t.Name)
	})
	require.Equal(t, []string{"Object", "Point", "ObjectArray"}, names)
}

func TestRegisterRejectsMalformedDescriptors(t *testing.T) {
	registry, err := rtti.NewRegistry(testRanges())
	require.NoError(t, err)

	_, err = registry.Register(nil)
	require.Error(t, err)

	_, err = registry.Register(&rtti.RTTI{TypeID: 1, Name: "Tiny", Size: 4, IDRangeUntil: 1})
	require.ErrorContains(t, err, "smaller than the object header")

	_, err = registry.Register(&rtti.RTTI{TypeID: 2, Name: "NoMap", Size: 24, IDRangeUntil: 2})
	require.ErrorContains(t, err, "no reference map")

	_, err = registry.Register(&rtti.RTTI{TypeID: 3, Name: "Misaligned", Size: 24, IDRangeUntil: 3, ReferenceMap: rtti.ReferenceMap{12}})
	require.ErrorContains(t, err, "reference field offset 12")

	_, err = registry.Register(&rtti.RTTI{TypeID: 4, Name: "Outside", Size: 24, IDRangeUntil: 4, ReferenceMap: rtti.ReferenceMap{24}})
	require.ErrorContains(t, err, "reference field offset 24")

	_, err = registry.Register(&rtti.RTTI{TypeID: 5, Name: "Header", Size: 24, IDRangeUntil: 5, ReferenceMap: rtti.ReferenceMap{0}})
	require.ErrorContains(t, err, "reference field offset 0")

	_, err = registry.Register(&rtti.RTTI{TypeID: 6, Name: "BackwardRange", Size: 8, IDRangeUntil: 2})
	require.ErrorContains(t, err, "id range end 2")

	_, err = registry.Register(&rtti.RTTI{TypeID: 30, Name: "BadWeak", Size: 24, IDRangeUntil: 30, ReferenceMap: rtti.ReferenceMap{16}})
	require.ErrorContains(t, err, "referent offset 8")

	require.Zero(t, registry.Len())

	weak := &rtti.RTTI{TypeID: 30, Name: "WeakReference", Size: 24, IDRangeUntil: 31, ReferenceMap: rtti.ReferenceMap{8, 16}}
	_, err = registry.Register(weak)
	require.NoError(t, err)

	_, err = registry.Register(weak)
	require.ErrorContains(t, err, "already registered")

	_, err = registry.Register(&rtti.RTTI{TypeID: 30, Name: "Duplicate", Size: 16, IDRangeUntil: 30, ReferenceMap: rtti.ReferenceMap{8}})
	require.ErrorContains(t, err, "type id 30 is already used by WeakReference")
}

func TestDecodeReferenceMap(t *testing.T) {
	require.Equal(t, rtti.ReferenceMap{8, 16}, rtti.DecodeReferenceMap([]int64{8, 16, -1, 24}))
	require.Equal(t, rtti.ReferenceMap{8}, rtti.DecodeReferenceMap([]int64{8}))
	require.Empty(t, rtti.DecodeReferenceMap([]int64{-1}))
	require.NotNil(t, rtti.DecodeReferenceMap([]int64{-1}))
}

func TestRegistryPrintJson(t *testing.T) {
	registry, err := rtti.NewRegistry(testRanges())
	require.NoError(t, err)

	class := &rtti.RTTI{TypeID: 1, Name: "Class", Size: 16, IDRangeUntil: 1, ReferenceMap: rtti.ReferenceMap{8}}
	_, err = registry.Register(class)
	require.NoError(t, err)
	_, err = registry.Register(&rtti.RTTI{Class: class, TypeID: 5, Name: "Point", Size: 24, IDRangeUntil: 5, ReferenceMap: rtti.ReferenceMap{}})
	require.NoError(t, err)

	writer := jwriter.NewWriter()
	registry.PrintJson(&writer)
	require.NoError(t, writer.Error())

	var decoded struct {
		Ranges struct {
			ArrayTypeIDMax int
		}
		Types []struct {
			Name         string
			Class        string
			ReferenceMap []int
		}
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(writer.Bytes())).Decode(&decoded))
	require.Equal(t, 20, decoded.Ranges.ArrayTypeIDMax)
	require.Len(t, decoded.Types, 2)
	require.Equal(t, "Point", decoded.Types[1].Name)
	require.Equal(t, "Class", decoded.Types[1].Class)
	require.Equal(t, []int{8}, decoded.Types[0].ReferenceMap)
	require.Empty(t, decoded.Types[1].ReferenceMap)
}
