package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanParametersWindows(t *testing.T) {
	tests := []struct {
		name   string
		params *ScanParameters
		want   WindowSet
	}{
		{
			name:   "ms1 covers mass range",
			params: NewMS1Parameters(Positive, 50, 900),
			want:   WindowSet{{{Lower: 50, Upper: 900}}},
		},
		{
			name: "dda window centred on precursor",
			params: &ScanParameters{
				MSLevel:        2,
				Precursor:      &Precursor{MZ: 200},
				IsolationWidth: 1,
			},
			want: WindowSet{{{Lower: 199.5, Upper: 200.5}}},
		},
		{
			name: "explicit windows win",
			params: &ScanParameters{
				MSLevel:          2,
				Precursor:        &Precursor{MZ: 200},
				IsolationWidth:   1,
				IsolationWindows: WindowSet{{{Lower: 10, Upper: 20}, {Lower: 30, Upper: 40}}},
			},
			want: WindowSet{{{Lower: 10, Upper: 20}, {Lower: 30, Upper: 40}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.params.Windows())
		})
	}
}

func TestScanParametersWindowsPanicsWithoutPrecursor(t *testing.T) {
	p := &ScanParameters{MSLevel: 2}
	assert.Panics(t, func() { p.Windows() })
}

func TestScanParametersEqual(t *testing.T) {
	a := &ScanParameters{MSLevel: 2, Precursor: &Precursor{MZ: 100, Charge: 1}, IsolationWidth: 1, DEWMZTol: 10, DEWRTTol: 15}
	b := &ScanParameters{MSLevel: 2, Precursor: &Precursor{MZ: 100, Charge: 1}, IsolationWidth: 1, DEWMZTol: 10, DEWRTTol: 15}
	assert.True(t, a.Equal(b))

	b.Precursor.MZ = 101
	assert.False(t, a.Equal(b))

	c := &ScanParameters{MSLevel: 2, IsolationWindows: WindowSet{{{Lower: 1, Upper: 2}}}}
	d := &ScanParameters{MSLevel: 2, IsolationWindows: WindowSet{{{Lower: 1, Upper: 2}}}}
	assert.True(t, c.Equal(d))
	d.IsolationWindows[0][0].Upper = 3
	assert.False(t, c.Equal(d))

	e := &ScanParameters{MSLevel: 1}
	f := &ScanParameters{MSLevel: 1, ScheduleSet: true}
	assert.False(t, e.Equal(f), "a zero schedule differs from no schedule")

	var nilParams *ScanParameters
	assert.True(t, nilParams.Equal(nil))
	assert.False(t, a.Equal(nil))
}

func TestWindowContains(t *testing.T) {
	w := Window{Lower: 100, Upper: 101}
	assert.False(t, w.Contains(100))
	assert.True(t, w.Contains(100.5))
	assert.True(t, w.Contains(101))
	assert.Equal(t, 100.5, w.Center())
}

func TestParsePolarity(t *testing.T) {
	p, err := ParsePolarity("Positive")
	require.NoError(t, err)
	assert.Equal(t, Positive, p)
	assert.Equal(t, 1, p.PrecursorCharge())

	p, err = ParsePolarity("-")
	require.NoError(t, err)
	assert.Equal(t, -1, p.PrecursorCharge())

	_, err = ParsePolarity("neutral")
	assert.Error(t, err)
}
