package region_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/immix/region"
)

func TestRegionBump(t *testing.T) {
	r := region.NewRegion(0x1000, make([]byte, 64))
	require.Equal(t, region.Address(0x1040), r.End())
	require.Equal(t, uint64(64), r.Remaining())

	addr, ok := r.Bump(48)
	require.True(t, ok)
	require.Equal(t, region.Address(0x1000), addr)
	require.Equal(t, region.Address(0x1030), r.Top())

	_, ok = r.Bump(32)
	require.False(t, ok)
	require.Equal(t, region.Address(0x1030), r.Top())

	addr, ok = r.Bump(16)
	require.True(t, ok)
	require.Equal(t, region.Address(0x1030), addr)
	require.Zero(t, r.Remaining())
}

func TestRegionWords(t *testing.T) {
	r := region.NewRegion(0x1000, make([]byte, 32))
	r.StoreWord(0x1008, 0xDEADBEEFCAFEF00D)
	r.StoreInt32(0x1010, -5)
	r.StoreInt32(0x1014, 7)

	require.Equal(t, uint64(0xDEADBEEFCAFEF00D), r.LoadWord(0x1008))
	require.Equal(t, int32(-5), r.LoadInt32(0x1010))
	require.Equal(t, int32(7), r.LoadInt32(0x1014))

	r.Zero(0x1008, 8)
	require.Zero(t, r.LoadWord(0x1008))
}

func TestRegionOutOfRangePanics(t *testing.T) {
	r := region.NewRegion(0x1000, make([]byte, 32))
	require.Panics(t, func() { r.LoadWord(0x1020) })
	require.Panics(t, func() { r.LoadWord(0x101C) })
	require.Panics(t, func() { r.StoreWord(0x0FF8, 1) })
	require.Panics(t, func() { r.SetTop(0x1028) })
}

func TestGoSourceLimit(t *testing.T) {
	source := region.NewGoSource(256)

	first, err := source.Acquire(128)
	require.NoError(t, err)
	second, err := source.Acquire(128)
	require.NoError(t, err)
	require.Greater(t, second.Base(), first.End())
	require.Equal(t, 256, source.InUse())

	_, err = source.Acquire(1)
	require.True(t, errors.Is(err, region.ErrSourceExhausted))

	_, err = region.NewGoSource(0).Acquire(region.MaxRegionSize + 1)
	require.True(t, errors.Is(err, region.ErrSourceExhausted))

	require.NoError(t, source.Release(first))
	require.Equal(t, 128, source.InUse())
	require.Error(t, source.Release(first))

	_, err = source.Acquire(64)
	require.NoError(t, err)
}

func TestSpaceLookup(t *testing.T) {
	source := region.NewGoSource(0)
	var space region.Space

	regions := make([]*region.Region, 3)
	for i := range regions {
		r, err := source.Acquire(256)
		require.NoError(t, err)
		regions[i] = r
	}

	// Insert out of order
	space.Add(regions[2])
	space.Add(regions[0])
	space.Add(regions[1])
	require.Equal(t, regions, space.Regions())

	for _, r := range regions {
		require.Same(t, r, space.Lookup(r.Base()))
		require.Same(t, r, space.Lookup(r.End()-1))
	}
	require.Nil(t, space.Lookup(regions[0].End()))
	require.Nil(t, space.Lookup(region.Null))

	space.StoreWord(regions[1].Base().Add(8), 42)
	require.Equal(t, uint64(42), regions[1].LoadWord(regions[1].Base().Add(8)))
	require.Panics(t, func() { space.LoadWord(region.Null) })

	_, ok := regions[1].Bump(16)
	require.True(t, ok)
	require.True(t, space.Contains(regions[1].Base().Add(8)))
	require.False(t, space.Contains(regions[1].Base().Add(16)))

	require.True(t, space.Remove(regions[1]))
	require.False(t, space.Remove(regions[1]))
	require.Nil(t, space.Lookup(regions[1].Base()))
}
