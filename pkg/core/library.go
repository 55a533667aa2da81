package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Peak represents a single m/z, intensity pair.
type Peak struct {
	MZ        float64
	Intensity float64
}

// ValidationError represents a malformed record or configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// LibrarySpectrum is a reference MS2 spectrum read from a spectral library.
// It is the intermediate form used to seed known chemicals.
type LibrarySpectrum struct {
	Sequence      string
	Name          string
	Charge        int
	PrecursorMZ   float64
	Peaks         []Peak
	RetentionTime *float64
	Modifications []Modification
}

// Validate checks that a library spectrum can be turned into a chemical.
func (s *LibrarySpectrum) Validate() error {
	var errs []string

	if s.Sequence == "" && s.Name == "" {
		errs = append(errs, "name or sequence is required")
	}
	if s.Charge == 0 {
		errs = append(errs, "charge must be non-zero")
	}
	if s.PrecursorMZ <= 0 && s.Sequence == "" {
		errs = append(errs, "precursor m/z must be positive")
	}
	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) || peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) || peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Field: "LibrarySpectrum", Message: strings.Join(errs, "; ")}
	}
	return nil
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *LibrarySpectrum) SortPeaks() {
	sort.SliceStable(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// Title returns the library name, falling back to "Sequence/Charge".
func (s *LibrarySpectrum) Title() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%s/%d", s.Sequence, s.Charge)
}

// NeutralMass returns the precursor neutral mass, computed from the peptide
// sequence when one is known and from the precursor m/z otherwise.
func (s *LibrarySpectrum) NeutralMass() float64 {
	if s.Sequence != "" {
		return CalculateNeutralMass(s.Sequence, s.Modifications)
	}
	return ProtonatedAdduct(s.Charge).Inverse(s.PrecursorMZ)
}
