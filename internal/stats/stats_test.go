package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsensusMedian(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"single", []float64{42}, 42},
		{"two", []float64{10, 20}, 15},
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"scenario", []float64{100, 102, 98, 500}, 101},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Consensus(tc.values, MethodMedian))
		})
	}
}

func TestConsensusMean(t *testing.T) {
	assert.Equal(t, 2.0, Consensus([]float64{1, 2, 3}, MethodMean))
	assert.Equal(t, 42.0, Consensus([]float64{42}, MethodMean))
}

func TestConsensusModeTieBreaksOnInputOrder(t *testing.T) {
	// 2 and 1 both appear twice; 2 is seen first.
	assert.Equal(t, 2.0, Consensus([]float64{2, 1, 2, 1, 3}, MethodMode))
	assert.Equal(t, 5.0, Consensus([]float64{5, 5, 9}, MethodMode))
	assert.Equal(t, 7.0, Consensus([]float64{7}, MethodMode))
}

func TestConsensusUnknownMethodFallsBackToMedian(t *testing.T) {
	assert.Equal(t, 2.0, Consensus([]float64{1, 2, 3}, ConsensusMethod("bogus")))
}

func TestDetectOutliersMADZeroSpread(t *testing.T) {
	assert.Empty(t, DetectOutliersMAD([]float64{10, 10, 10}, DefaultMADThreshold))
}

func TestDetectOutliersMADFlagsExtreme(t *testing.T) {
	got := DetectOutliersMAD([]float64{10, 10, 10, 10, 1000}, DefaultMADThreshold)
	assert.Equal(t, []int{4}, got, "zero MAD with one divergent value flags that value only")

	got = DetectOutliersMAD([]float64{10, 11, 9, 12, 1000}, DefaultMADThreshold)
	assert.Equal(t, []int{4}, got)
}

func TestDetectOutliersMADTooFewValues(t *testing.T) {
	assert.Empty(t, DetectOutliersMAD([]float64{1, 1000}, DefaultMADThreshold))
}

func TestDetectOutliersIQRTooFewValues(t *testing.T) {
	assert.Empty(t, DetectOutliersIQR(nil))
	assert.Empty(t, DetectOutliersIQR([]float64{1}))
	assert.Empty(t, DetectOutliersIQR([]float64{1, 2, 3}))
}

func TestDetectOutliersIQRFlagsExtreme(t *testing.T) {
	got := DetectOutliersIQR([]float64{10, 11, 9, 12, 10, 11, 1000})
	assert.Equal(t, []int{6}, got)
}

func TestDetectOutliersIQRCleanSample(t *testing.T) {
	assert.Empty(t, DetectOutliersIQR([]float64{10, 11, 9, 12, 10}))
}

func TestRelativeDeviation(t *testing.T) {
	assert.Equal(t, 0.0, RelativeDeviation(123, 0))
	assert.Equal(t, 0.0, RelativeDeviation(100, 100))
	assert.InDelta(t, 2.0, RelativeDeviation(102, 100), 1e-9)
	assert.InDelta(t, 300.0, RelativeDeviation(500, 125), 1e-9)
	assert.InDelta(t, 2.0, RelativeDeviation(98, 100), 1e-9)
}
