package chem

import (
	"fmt"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

// LibraryOptions controls how library spectra become chemicals.
type LibraryOptions struct {
	// DefaultRT is the onset used when a spectrum carries no retention time.
	DefaultRT    float64
	MaxIntensity float64
	Sigma        float64
	Span         float64
}

// DefaultLibraryOptions returns a 30 s wide Gaussian elution at 1e6 counts.
func DefaultLibraryOptions() LibraryOptions {
	return LibraryOptions{
		DefaultRT:    0,
		MaxIntensity: 1e6,
		Sigma:        5,
		Span:         30,
	}
}

// FromLibrary turns a library MS2 spectrum into a level-1 chemical whose
// fragments are the library peaks. The precursor is ionised as [M+zH]z+ and
// each fragment's share of the parent signal is its share of the total
// fragment intensity. The chromatogram is centred on the library RT.
func FromLibrary(spec *core.LibrarySpectrum, opts LibraryOptions) (*Chemical, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	chrom, err := NewGaussian(opts.Sigma, opts.Span)
	if err != nil {
		return nil, err
	}

	apex := opts.DefaultRT
	if spec.RetentionTime != nil {
		apex = *spec.RetentionTime
	}
	onset := apex - opts.Span/2
	if onset < 0 {
		onset = 0
	}

	adduct := core.ProtonatedAdduct(spec.Charge)
	c := &Chemical{
		Name:         spec.Title(),
		MSLevel:      1,
		RT:           onset,
		MaxIntensity: opts.MaxIntensity,
		Isotopes:     []Isotope{{MZ: spec.NeutralMass(), Prop: 1}},
		Adducts:      []AdductAbundance{{Adduct: adduct, Prop: 1}},
		Chromatogram: chrom,
	}

	total := 0.0
	for _, p := range spec.Peaks {
		total += p.Intensity
	}
	if total <= 0 {
		return c, nil
	}

	for i, p := range spec.Peaks {
		if p.Intensity <= 0 {
			continue
		}
		c.AddChild(&Chemical{
			Name:           fmt.Sprintf("%s_frag%d", c.Name, i),
			Isotopes:       []Isotope{{MZ: adduct.Inverse(p.MZ), Prop: 1}},
			ParentMassProp: p.Intensity / total,
			PropMSNMass:    1,
		})
	}
	return c, nil
}
