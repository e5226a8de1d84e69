package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressNormalizer_AbbreviationConverges(t *testing.T) {
	an := NewAddressNormalizer(nil, nil)
	snap := defaultSnapshot(t)

	full := an.Normalize(snap, "서울특별시 강서구 화곡동", "", "서울")
	short := an.Normalize(snap, "서울 강서구 화곡동", "", "서울특별시")

	assert.Equal(t, "서울특별시 강서구 화곡동", full.Road)
	assert.Equal(t, full.Road, short.Road)
	assert.Equal(t, "11", full.RegionCode)
	require.NotNil(t, full.AddressHash)
	require.NotNil(t, short.AddressHash)
	assert.Equal(t, *full.AddressHash, *short.AddressHash)
}

func TestAddressNormalizer_HashSensitivity(t *testing.T) {
	an := NewAddressNormalizer(nil, nil)
	snap := defaultSnapshot(t)

	base := an.Normalize(snap, "서울 강서구 화곡로 302", "화곡동 1043-5번지", "11")
	again := an.Normalize(snap, "서울 강서구 화곡로 302", "화곡동 1043-5번지", "11")
	require.NotNil(t, base.AddressHash)
	assert.Equal(t, base.Hash(), again.Hash())
	assert.Len(t, base.Hash(), 64)

	variants := map[string]NormalizedAddress{
		"road":   an.Normalize(snap, "서울 강서구 화곡로 303", "화곡동 1043-5번지", "11"),
		"lot":    an.Normalize(snap, "서울 강서구 화곡로 302", "화곡동 1043-6번지", "11"),
		"region": an.Normalize(snap, "서울 강서구 화곡로 302", "화곡동 1043-5번지", "26"),
		"no lot": an.Normalize(snap, "서울 강서구 화곡로 302", "", "11"),
	}
	for name, v := range variants {
		assert.NotEqual(t, base.Hash(), v.Hash(), name)
	}
}

func TestAddressNormalizer_EmptyComponentsArePositional(t *testing.T) {
	assert.NotEqual(t, HashAddress("화곡동", "", ""), HashAddress("", "화곡동", ""))
	assert.NotEqual(t, HashAddress("", "화곡동", ""), HashAddress("", "", "화곡동"))
	assert.Equal(t, HashAddress(" Hwagok-ro ", "", "11"), HashAddress("hwagok-ro", "", "11"))
}

func TestAddressNormalizer_AllEmpty(t *testing.T) {
	an := NewAddressNormalizer(nil, nil)
	got := an.Normalize(defaultSnapshot(t), "  ", "", "")

	assert.True(t, got.HashEmpty)
	assert.Nil(t, got.AddressHash)
	assert.Equal(t, "", got.Hash())
}

func TestAddressNormalizer_LotMarkerAndNoise(t *testing.T) {
	an := NewAddressNormalizer(nil, nil)
	snap := defaultSnapshot(t)

	got := an.Normalize(snap, "서울, 강서구  화곡로#302", "화곡동 1043-5 번지", "")
	assert.Equal(t, "서울특별시 강서구 화곡로 302", got.Road)
	assert.Equal(t, "화곡동 1043-5", got.Lot)
	assert.Equal(t, "", got.RegionCode)
	assert.NotNil(t, got.AddressHash)
}

func TestAddressNormalizer_RoadExpanderRunsFirst(t *testing.T) {
	var seen []string
	an := NewAddressNormalizer(nil, func(s string) string {
		seen = append(seen, s)
		return "서울 강서구 화곡로 302"
	})

	got := an.Normalize(defaultSnapshot(t), "서울 강서구 화곡로302", "화곡동 1043", "")
	assert.Equal(t, []string{"서울 강서구 화곡로302"}, seen, "expander only sees road addresses")
	assert.Equal(t, "서울특별시 강서구 화곡로 302", got.Road)
}

func TestSimilarity(t *testing.T) {
	testCases := []struct {
		a, b     string
		expected int
	}{
		{"abc", "abc", 100},
		{"", "", 100},
		{"", "abc", 0},
		{"abc", "", 0},
		{"kitten", "sitting", 57},
		{"서울특별시 강서구 화곡동", "서울 강서구 화곡동", 77},
		{"강남구", "강남구", 100},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, Similarity(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
		assert.Equal(t, Similarity(tc.a, tc.b), Similarity(tc.b, tc.a))
	}
}

func TestSimilarity_Bounds(t *testing.T) {
	pairs := [][2]string{
		{"a", "bcdefgh"},
		{"서울", "Seoul"},
		{"강남구보건소", "강남구"},
	}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 100)
	}
}
