package sptxt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MSSim/pkg/chem"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/filter"
)

const library = `### SpectraST library
### ===
Name: n[145]AC[160]K/2
LibID: 0
MW: 626.31
PrecursorMZ: 314.1600
Status: Normal
Comment: AvePrecursorMZ=314.16 Mods=2/-1,A,iTRAQ4plex/1,C,Carbamidomethyl Parent=314.160 RetentionTime=1834.2,1830.0,1840.5
NumPeaks: 2
147.1128	1000	y1/0.00	1/1 0.0
250.1220	400	y2/0.01	1/1 0.0

Name: PEPK/1
PrecursorMZ: 472.2609
Comment: Parent=472.261
NumPeaks: 1
147.11	10	y1
`

func readAll(t *testing.T, input string) []*core.LibrarySpectrum {
	t.Helper()
	r := NewReader(strings.NewReader(input), nil)
	var specs []*core.LibrarySpectrum
	for r.Next() {
		specs = append(specs, r.Spectrum())
	}
	require.NoError(t, r.Err())
	return specs
}

func TestReader(t *testing.T) {
	specs := readAll(t, library)
	require.Len(t, specs, 2)

	spec := specs[0]
	assert.Equal(t, "ACK", spec.Sequence)
	assert.Equal(t, 2, spec.Charge)
	assert.Equal(t, 314.16, spec.PrecursorMZ)
	require.NotNil(t, spec.RetentionTime)
	assert.Equal(t, 1834.2, *spec.RetentionTime)
	require.Len(t, spec.Peaks, 2)
	assert.Equal(t, core.Peak{MZ: 147.1128, Intensity: 1000}, spec.Peaks[0])

	// Mods names the inline shifts and supplies exact masses
	require.Len(t, spec.Modifications, 2)
	assert.Equal(t, core.Modification{Mass: 144.102063, Position: -1, Name: "iTRAQ4plex"}, spec.Modifications[0])
	assert.Equal(t, core.Modification{Mass: 57.021464, Position: 1, Name: "Carbamidomethyl"}, spec.Modifications[1])

	assert.Equal(t, "PEPK", specs[1].Sequence)
	assert.Nil(t, specs[1].RetentionTime)
}

func TestParseInlineModifications(t *testing.T) {
	seq, mods, err := parseInlineModifications("PEPTM[147]IDEK")
	require.NoError(t, err)
	assert.Equal(t, "PEPTMIDEK", seq)
	require.Len(t, mods, 1)
	assert.Equal(t, 4, mods[0].Position)
	assert.InDelta(t, 15.995, mods[0].Mass, 0.01)

	seq, mods, err = parseInlineModifications("PEPK")
	require.NoError(t, err)
	assert.Equal(t, "PEPK", seq)
	assert.Empty(t, mods)

	_, _, err = parseInlineModifications("AB[100]K")
	assert.Error(t, err)
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no charge", "Name: PEPK\nNumPeaks: 0\n"},
		{"bad charge", "Name: PEPK/x\nNumPeaks: 0\n"},
		{"truncated peaks", "Name: AK/1\nNumPeaks: 3\n100 1\n"},
		{"bad peak", "Name: AK/1\nNumPeaks: 1\n100\n"},
		{"no num peaks", "Name: AK/1\nPrecursorMZ: 100\n"},
		{"bad precursor", "Name: AK/1\nPrecursorMZ: abc\nNumPeaks: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input), nil)
			for r.Next() {
			}
			assert.Error(t, r.Err())
		})
	}
}

func TestChemicals(t *testing.T) {
	opts := chem.DefaultLibraryOptions()
	chems, err := Chemicals(strings.NewReader(library), nil, filter.Config{}, opts)
	require.NoError(t, err)
	require.Len(t, chems, 2)

	c := chems[0]
	assert.Equal(t, "ACK/2", c.Name)
	assert.Equal(t, 1834.2-opts.Span/2, c.RT)
	require.Len(t, c.Children, 2)
	assert.InDelta(t, 1000.0/1400, c.Children[0].ParentMassProp, 1e-9)

	want := core.CalculateNeutralMass("ACK", []core.Modification{{Mass: 144.102063}, {Mass: 57.021464}})
	assert.InDelta(t, want, c.Isotopes[0].MZ, 1e-9)
}
