package chem

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

const testDataset = `
chemicals:
  - name: glucose
    rt: 100
    max_intensity: 1000000
    isotopes:
      - {mz: 180.0634, prop: 0.9}
      - {mz: 181.0668, prop: 0.1}
    adducts:
      - {name: M+H, prop: 0.8}
      - {name: M+Na, prop: 0.2}
    chromatogram: {type: gaussian, sigma: 2, span: 20}
    children:
      - name: glucose_f1
        isotopes: [{mz: 84.0, prop: 1}]
        parent_mass_prop: 0.6
        children:
          - name: glucose_f1_f1
            isotopes: [{mz: 42.0, prop: 1}]
            parent_mass_prop: 1
  - name: trace
    rt: 5
    max_intensity: 500
    isotopes: [{mz: 300, prop: 1}]
    adducts: [{name: M+H, prop: 1}]
    chromatogram:
      type: empirical
      rts: [0, 1, 2]
      intensities: [0, 10, 5]
`

func TestLoadDataset(t *testing.T) {
	chems, err := LoadDataset(strings.NewReader(testDataset), core.DefaultAdductDatabase())
	require.NoError(t, err)
	require.Len(t, chems, 2)

	glucose := chems[0]
	assert.Equal(t, 1, glucose.MSLevel)
	assert.Len(t, glucose.Adducts, 2)
	assert.Equal(t, "M+Na", glucose.Adducts[1].Adduct.Name)
	require.Len(t, glucose.Children, 1)

	frag := glucose.Children[0]
	assert.Equal(t, 2, frag.MSLevel)
	assert.Same(t, glucose, frag.Parent)
	assert.Equal(t, 1.0, frag.PropMSNMass, "defaults to 1 for fragments")
	require.Len(t, frag.Children, 1)

	deep := frag.Children[0]
	assert.Equal(t, 3, deep.MSLevel)
	assert.Same(t, glucose, deep.MS1Ancestor())
	assert.Len(t, deep.AdductList(), 2)

	count := 0
	glucose.Walk(func(*Chemical) { count++ })
	assert.Equal(t, 3, count)

	trace := chems[1]
	emp, ok := trace.Chromatogram.(*Empirical)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 0.5}, emp.Intensities)
}

func TestLoadDatasetErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown adduct", `
chemicals:
  - name: x
    max_intensity: 1
    isotopes: [{mz: 1, prop: 1}]
    adducts: [{name: M+Xe, prop: 1}]
    chromatogram: {type: gaussian, sigma: 1, span: 1}
`},
		{"missing chromatogram", `
chemicals:
  - name: x
    max_intensity: 1
    isotopes: [{mz: 1, prop: 1}]
    adducts: [{name: M+H, prop: 1}]
`},
		{"no isotopes", `
chemicals:
  - name: x
    max_intensity: 1
    adducts: [{name: M+H, prop: 1}]
    chromatogram: {type: gaussian, sigma: 1, span: 1}
`},
		{"unknown field", `
chemicals:
  - name: x
    colour: blue
`},
		{"bad chromatogram", `
chemicals:
  - name: x
    max_intensity: 1
    isotopes: [{mz: 1, prop: 1}]
    adducts: [{name: M+H, prop: 1}]
    chromatogram: {type: triangle}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDataset(strings.NewReader(tt.yaml), core.DefaultAdductDatabase())
			assert.Error(t, err)
		})
	}
}

func TestWriteDatasetRoundTrip(t *testing.T) {
	db := core.DefaultAdductDatabase()
	chems, err := LoadDataset(strings.NewReader(testDataset), db)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDataset(&buf, chems))

	again, err := LoadDataset(&buf, db)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, chems[0].Children[0].Children[0].Isotopes, again[0].Children[0].Children[0].Isotopes)
	assert.Equal(t, chems[1].Chromatogram, again[1].Chromatogram)
}

func TestGaussianChromatogram(t *testing.T) {
	g, err := NewGaussian(2, 20)
	require.NoError(t, err)

	assert.Equal(t, 1.0, g.RelativeIntensity(10))
	assert.InDelta(t, g.RelativeIntensity(8), g.RelativeIntensity(12), 1e-12)
	assert.Less(t, g.RelativeIntensity(2), g.RelativeIntensity(8))
	assert.Equal(t, 0.0, g.RelativeIntensity(-1))
	assert.False(t, g.RTMatch(20.5))

	_, err = NewGaussian(0, 1)
	assert.Error(t, err)
}

func TestEmpiricalChromatogram(t *testing.T) {
	e, err := NewEmpirical([]float64{0, 2, 4}, []float64{0, 4, 2}, []float64{0, 0.002, 0})
	require.NoError(t, err)

	assert.Equal(t, 0.5, e.RelativeIntensity(1))
	assert.Equal(t, 1.0, e.RelativeIntensity(2))
	assert.Equal(t, 0.75, e.RelativeIntensity(3))
	assert.InDelta(t, 0.001, e.RelativeMZ(1), 1e-12)
	assert.Equal(t, 0.0, e.RelativeIntensity(5))

	_, err = NewEmpirical([]float64{2, 1}, []float64{1, 1}, nil)
	assert.Error(t, err)
}

func TestFromLibrary(t *testing.T) {
	rt := 60.0
	spec := &core.LibrarySpectrum{
		Name:          "caffeine",
		Charge:        1,
		PrecursorMZ:   195.0877,
		RetentionTime: &rt,
		Peaks: []core.Peak{
			{MZ: 138.0662, Intensity: 75},
			{MZ: 110.0713, Intensity: 25},
			{MZ: 83.0604, Intensity: 0},
		},
	}

	c, err := FromLibrary(spec, DefaultLibraryOptions())
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 45.0, c.RT)
	assert.InDelta(t, 195.0877, c.Adducts[0].Adduct.Transform(c.Isotopes[0].MZ), 1e-9)
	require.Len(t, c.Children, 2, "zero intensity peaks are dropped")
	assert.Equal(t, 0.75, c.Children[0].ParentMassProp)
	assert.InDelta(t, 138.0662, c.Adducts[0].Adduct.Transform(c.Children[0].Isotopes[0].MZ), 1e-9)
	assert.Equal(t, 2, c.Children[1].MSLevel)
}

func TestSummarize(t *testing.T) {
	adducts := core.DefaultAdductDatabase()
	chems, err := LoadDataset(strings.NewReader(testDataset), adducts)
	require.NoError(t, err)

	s := Summarize(chems)
	assert.Equal(t, 2, s.Chemicals)
	assert.Equal(t, 2, s.Fragments)
	assert.Equal(t, 3, s.MaxMSLevel)
	assert.Equal(t, 5.0, s.MinRT)
	assert.Equal(t, 120.0, s.MaxRT)

	mh, _ := adducts.Get("M+H")
	assert.InDelta(t, mh.Transform(180.0634), s.MinMZ, 1e-9)
	assert.InDelta(t, mh.Transform(300), s.MaxMZ, 1e-9)

	mzs := MS1MZs(chems)
	assert.Len(t, mzs, 3)
	assert.IsIncreasing(t, mzs)

	assert.Equal(t, Summary{}, Summarize(nil))
}
