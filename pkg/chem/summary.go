package chem

import (
	"math"
	"sort"
)

// Summary describes a dataset.
type Summary struct {
	Chemicals  int
	Fragments  int
	MaxMSLevel int
	MinRT      float64
	MaxRT      float64
	MinMZ      float64
	MaxMZ      float64
}

// Summarize counts the chemicals and reports their elution and MS1 m/z
// ranges. RTs cover the whole chromatogram of each chemical.
func Summarize(chemicals []*Chemical) Summary {
	s := Summary{
		MinRT: math.Inf(1),
		MaxRT: math.Inf(-1),
		MinMZ: math.Inf(1),
		MaxMZ: math.Inf(-1),
	}
	for _, c := range chemicals {
		s.Chemicals++
		c.Walk(func(n *Chemical) {
			if n != c {
				s.Fragments++
			}
			s.MaxMSLevel = max(s.MaxMSLevel, n.MSLevel)
		})
		if c.Chromatogram != nil {
			s.MinRT = math.Min(s.MinRT, c.RT+c.Chromatogram.MinRT())
			s.MaxRT = math.Max(s.MaxRT, c.RT+c.Chromatogram.MaxRT())
		}
	}
	for _, mz := range MS1MZs(chemicals) {
		s.MinMZ = math.Min(s.MinMZ, mz)
		s.MaxMZ = math.Max(s.MaxMZ, mz)
	}
	if s.Chemicals == 0 {
		s.MinRT, s.MaxRT, s.MinMZ, s.MaxMZ = 0, 0, 0, 0
	}
	return s
}

// MS1MZs returns the sorted monoisotopic m/z of every adduct of every
// level-1 chemical.
func MS1MZs(chemicals []*Chemical) []float64 {
	var mzs []float64
	for _, c := range chemicals {
		if c.MSLevel != 1 || len(c.Isotopes) == 0 {
			continue
		}
		for _, a := range c.Adducts {
			mzs = append(mzs, a.Adduct.Transform(c.Isotopes[0].MZ))
		}
	}
	sort.Float64s(mzs)
	return mzs
}
