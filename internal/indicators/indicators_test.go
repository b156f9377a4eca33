package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingMax_TracksTrailingWindow(t *testing.T) {
	closes := []float64{1, 5, 3, 2, 8, 4}
	got := RollingMax(closes, 3)
	require.Len(t, got, len(closes))

	// window [i-2, i]: index 2 -> max(1,5,3)=5; index 4 -> max(3,2,8)=8
	assert.Equal(t, 5.0, got[2])
	assert.Equal(t, 8.0, got[4])
}

func TestRollingMin_TracksTrailingWindow(t *testing.T) {
	closes := []float64{9, 5, 7, 2, 8, 4}
	got := RollingMin(closes, 3)
	require.Len(t, got, len(closes))

	assert.Equal(t, 5.0, got[2])
	assert.Equal(t, 2.0, got[4])
}

func TestRollingMax_PeriodOneOrLessReturnsInputCopy(t *testing.T) {
	closes := []float64{1, 2, 3}
	got := RollingMax(closes, 1)
	assert.Equal(t, closes, got)

	got[0] = 999
	assert.Equal(t, 1.0, closes[0], "must return a copy, not alias the input")
}

func TestRollingMax_EmptyInput(t *testing.T) {
	assert.Empty(t, RollingMax(nil, 5))
}

func TestClampScaleFactor(t *testing.T) {
	assert.Equal(t, 0.0, ClampScaleFactor(-1))
	assert.Equal(t, 10.0, ClampScaleFactor(15))
	assert.Equal(t, 3.5, ClampScaleFactor(3.5))
}
