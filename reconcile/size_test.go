package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Size
	}{
		{in: "1024", expected: Size{Bytes: 1024}},
		{in: "100M", expected: Size{Bytes: 100 * 1024 * 1024}},
		{in: "100m", expected: Size{Bytes: 100 * 1024 * 1024}},
		{in: "1.5K", expected: Size{Bytes: 1536}},
		{in: "20G", expected: Size{Bytes: 20 * 1024 * 1024 * 1024}},
		{in: "unlimited", expected: Size{Unlimited: true}},
		{in: "UNLIMITED", expected: Size{Unlimited: true}},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSize(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}

	for _, bad := range []string{"", "10X", "M", "-5", "ten"} {
		_, err := ParseSize(bad)
		require.Error(t, err, "size %q must be rejected", bad)
	}
}

func TestSizeString(t *testing.T) {
	for _, tc := range []struct {
		size     Size
		expected string
	}{
		{size: Size{Bytes: 100 * 1024 * 1024}, expected: "100M"},
		{size: Size{Bytes: 1536}, expected: "1536"},
		{size: Size{Bytes: 1024}, expected: "1K"},
		{size: Size{Bytes: 0}, expected: "0"},
		{size: Size{Unlimited: true}, expected: "unlimited"},
	} {
		require.Equal(t, tc.expected, tc.size.String())
	}
}

func TestSizeRoundTrip(t *testing.T) {
	for _, in := range []string{"100M", "1K", "20G", "unlimited", "1536"} {
		parsed, err := ParseSize(in)
		require.NoError(t, err)
		again, err := ParseSize(parsed.String())
		require.NoError(t, err)
		require.True(t, parsed.Equal(again), "%s did not round-trip", in)
	}
}

func TestSizeCompare(t *testing.T) {
	small, _ := ParseSize("100M")
	big, _ := ParseSize("1G")
	unlimited, _ := ParseSize("unlimited")

	require.True(t, small.Less(big))
	require.False(t, big.Less(small))
	require.True(t, big.Less(unlimited))
	require.False(t, unlimited.Less(big))
	require.False(t, unlimited.Less(unlimited))
	require.True(t, unlimited.Equal(unlimited))
	require.False(t, small.Equal(big))
}
