package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScanCoSortsArrays(t *testing.T) {
	params := DefaultMS1Parameters(Positive)
	s := NewScan(3, []float64{300, 100, 200, 100}, []float64{3, 1, 2, 4}, 1, 12.5, params)

	assert.Equal(t, []float64{100, 100, 200, 300}, s.MZs)
	// equal m/z keep their input order
	assert.Equal(t, []float64{1, 4, 2, 3}, s.Intensities)
	assert.Equal(t, 4, s.NumPeaks())
	assert.NoError(t, s.Validate())
	assert.Nil(t, s.Duration)
	assert.Equal(t, 12.5, s.EndRT())
}

func TestNewScanPanicsOnLengthMismatch(t *testing.T) {
	assert.Panics(t, func() {
		NewScan(0, []float64{1, 2}, []float64{1}, 1, 0, nil)
	})
}

func TestScanValidate(t *testing.T) {
	tests := []struct {
		name    string
		scan    *Scan
		wantErr bool
	}{
		{"empty", &Scan{}, false},
		{"sorted", &Scan{MZs: []float64{1, 2}, Intensities: []float64{1, 1}}, false},
		{"unsorted", &Scan{MZs: []float64{2, 1}, Intensities: []float64{1, 1}}, true},
		{"unequal", &Scan{MZs: []float64{1, 2}, Intensities: []float64{1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scan.Validate()
			if tt.wantErr {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestScanDurationAndParent(t *testing.T) {
	p := &ScanParameters{MSLevel: 2, Precursor: &Precursor{MZ: 100, Charge: 1}, IsolationWidth: 1}
	s := NewScan(1, nil, nil, 2, 10, p)
	require.NotNil(t, s.Parent)
	assert.Equal(t, 100.0, s.Parent.MZ)

	s.SetDuration(0.25)
	assert.Equal(t, 10.25, s.EndRT())
	assert.Empty(t, s.Peaks())
}
