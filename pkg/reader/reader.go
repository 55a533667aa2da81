// Package reader converts spectral library entries into chemicals. The
// format readers live in its subpackages.
package reader

import (
	"fmt"

	"github.com/ChrisMcGann/MSSim/pkg/chem"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/filter"
)

// SpectrumReader streams library spectra.
type SpectrumReader interface {
	Next() bool
	Spectrum() *core.LibrarySpectrum
	Err() error
}

// Chemicals drains r, filters each spectrum's peaks and converts it into a
// chemical. Invalid spectra fail the read.
func Chemicals(r SpectrumReader, peaks filter.Config, opts chem.LibraryOptions) ([]*chem.Chemical, error) {
	var chemicals []*chem.Chemical
	for r.Next() {
		spec := r.Spectrum()
		peaks.Library(spec)
		c, err := chem.FromLibrary(spec, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to convert spectrum %s: %w", spec.Title(), err)
		}
		chemicals = append(chemicals, c)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return chemicals, nil
}
