package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

func peaks() []core.Peak {
	return []core.Peak{
		{MZ: 300, Intensity: 50},
		{MZ: 100, Intensity: 1000},
		{MZ: 200, Intensity: 0},
		{MZ: 400, Intensity: 5},
		{MZ: 500, Intensity: 400},
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []float64
	}{
		{"zero intensities only", Config{}, []float64{100, 300, 400, 500}},
		{"top n", Config{TopN: 2}, []float64{100, 500}},
		{"cutoff", Config{IntensityCutoff: 5}, []float64{100, 300, 500}},
		{"range", Config{MinMZ: 250, MaxMZ: 450}, []float64{300, 400}},
		{"range then cutoff", Config{MinMZ: 250, MaxMZ: 450, IntensityCutoff: 50}, []float64{300}},
		{"cutoff then top n", Config{IntensityCutoff: 1, TopN: 10}, []float64{100, 300, 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := peaks()
			out := tt.cfg.Apply(in)
			var mzs []float64
			for _, p := range out {
				mzs = append(mzs, p.MZ)
			}
			assert.Equal(t, tt.want, mzs)
			assert.Equal(t, peaks(), in, "input is not modified")
		})
	}
}

func TestScanCopy(t *testing.T) {
	params := core.DefaultMS1Parameters(core.Positive)
	s := core.NewScan(3, []float64{100, 200, 300}, []float64{10, 1000, 100}, 1, 5, params)
	s.SetDuration(0.4)

	cfg := Config{TopN: 2}
	out := cfg.Scan(s)
	require.NotSame(t, s, out)
	assert.Equal(t, []float64{200, 300}, out.MZs)
	assert.Equal(t, []float64{1000, 100}, out.Intensities)
	assert.Equal(t, 0.4, *out.Duration)
	assert.Equal(t, 3, out.ID)
	assert.Len(t, s.MZs, 3)

	var none Config
	assert.Same(t, s, none.Scan(s))
}

func TestLibrary(t *testing.T) {
	spec := &core.LibrarySpectrum{Peaks: peaks()}
	cfg := Config{TopN: 1}
	cfg.Library(spec)
	assert.Equal(t, []core.Peak{{MZ: 100, Intensity: 1000}}, spec.Peaks)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, false},
		{"negative top n", Config{TopN: -1}, true},
		{"cutoff over 100", Config{IntensityCutoff: 101}, true},
		{"inverted range", Config{MinMZ: 500, MaxMZ: 100}, true},
		{"open upper bound", Config{MinMZ: 500}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				var verr *core.ValidationError
				assert.ErrorAs(t, err, &verr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
