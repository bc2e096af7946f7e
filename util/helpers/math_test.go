package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMinMax(t *testing.T) {
	require.Equal(t, 1, Min(3, 1, 2))
	require.Equal(t, 3, Max(3, 1, 2))
	require.Equal(t, -7, Min(-7, 0))
	require.Equal(t, 0, Max(-7, 0))
	require.Equal(t, uint64(4), Min(uint64(4), uint64(9)))
}

func TestPrevPowerOfTwo(t *testing.T) {
	require.Equal(t, 0, PrevPowerOfTwo(0))
	require.Equal(t, 1, PrevPowerOfTwo(1))
	require.Equal(t, 2, PrevPowerOfTwo(2))
	require.Equal(t, 2, PrevPowerOfTwo(3))
	require.Equal(t, 4, PrevPowerOfTwo(4))
	require.Equal(t, 4, PrevPowerOfTwo(7))
	require.Equal(t, 8, PrevPowerOfTwo(8))
	require.Equal(t, 512, PrevPowerOfTwo(1021))
	require.Equal(t, 1<<30, PrevPowerOfTwo(1<<30+5))
}

func TestNextPowerOfTwo(t *testing.T) {
	require.Equal(t, 0, NextPowerOfTwo(0))
	require.Equal(t, 1, NextPowerOfTwo(1))
	require.Equal(t, 2, NextPowerOfTwo(2))
	require.Equal(t, 4, NextPowerOfTwo(3))
	require.Equal(t, 4, NextPowerOfTwo(4))
	require.Equal(t, 8, NextPowerOfTwo(5))
	require.Equal(t, 1024, NextPowerOfTwo(1021))
}

func TestRoundUpToMultipleOf(t *testing.T) {
	require.Equal(t, 0, RoundUpToMultipleOf(4, 0))
	require.Equal(t, 4, RoundUpToMultipleOf(4, 1))
	require.Equal(t, 4, RoundUpToMultipleOf(4, 4))
	require.Equal(t, 8, RoundUpToMultipleOf(4, 5))
	require.Equal(t, 2042, RoundUpToMultipleOf(1021, 1022))
}
