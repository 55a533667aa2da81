package sampler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDurations(t *testing.T) {
	e := NewEmpirical(1, NoiseConfig{})
	e.Add(1, 2, 10, 15, 0.3, 0.4)

	got, err := e.ScanDurations(1, 2, 5, 10, 15)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	for _, d := range got {
		assert.Contains(t, []float64{0.3, 0.4}, d)
	}

	_, err = e.ScanDurations(1, 2, 1, 5, 15)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeededSamplerIsDeterministic(t *testing.T) {
	a := NewEmpirical(7, NoiseConfig{IntensitySigma: map[int]float64{2: 0.5}, PeaksPerScan: 3, MaxIntensity: 10, MinMZ: 50, MaxMZ: 60})
	b := NewEmpirical(7, NoiseConfig{IntensitySigma: map[int]float64{2: 0.5}, PeaksPerScan: 3, MaxIntensity: 10, MinMZ: 50, MaxMZ: 60})

	assert.Equal(t, a.NoisyIntensity(100, 2), b.NoisyIntensity(100, 2))
	pa, pb := a.NoiseSample(), b.NoiseSample()
	assert.Equal(t, pa, pb)
	require.Len(t, pa, 3)
	for _, p := range pa {
		assert.GreaterOrEqual(t, p.MZ, 50.0)
		assert.Less(t, p.MZ, 60.0)
	}

	assert.Equal(t, 100.0, a.NoisyIntensity(100, 1), "no sigma configured for ms1")
}

func TestLoad(t *testing.T) {
	src := `
seed: 3
durations:
  - {from: 1, to: 1, n: 0, dew: 0, samples: [0.5]}
  - {from: 1, to: 2, n: 10, dew: 15, samples: [0.2, 0.25]}
noise:
  peaks_per_scan: 2
  max_intensity: 100
  min_mz: 10
  max_mz: 20
`
	e, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 2, e.Transitions())
	assert.Len(t, e.NoiseSample(), 2)

	_, err = Load(strings.NewReader("durations:\n  - {from: 0, to: 1, samples: [1]}\n"))
	assert.Error(t, err)
	_, err = Load(strings.NewReader("durations:\n  - {from: 1, to: 1, samples: [-1]}\n"))
	assert.Error(t, err)
}

func TestFixed(t *testing.T) {
	f := Fixed(0.5, 0.1)
	d, err := f.ScanDurations(2, 1, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1}, d)
	assert.Nil(t, f.NoiseSample())
}

func TestConstantIgnoresSchedule(t *testing.T) {
	var s Sampler = Constant{MS1: 0.6, MSN: 0.2}
	d, err := s.ScanDurations(1, 2, 2, 10, 15)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.6, 0.6}, d)

	d, err = s.ScanDurations(2, 1, 1, 20, 60)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2}, d)
	assert.Equal(t, 5.0, s.NoisyIntensity(5, 1))

	_, err = Constant{MS1: 1}.ScanDurations(2, 2, 1, 0, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
