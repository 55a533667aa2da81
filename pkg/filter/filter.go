// Package filter provides peak filtering applied to scans and library spectra
package filter

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     `yaml:"top_n" mapstructure:"top_n"`                       // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 `yaml:"intensity_cutoff" mapstructure:"intensity_cutoff"` // Keep only peaks above this % of base peak (0 = no cutoff)
	MinMZ           float64 `yaml:"min_mz" mapstructure:"min_mz"`                     // Drop peaks below this m/z (0 = no bound)
	MaxMZ           float64 `yaml:"max_mz" mapstructure:"max_mz"`                     // Drop peaks above this m/z (0 = no bound)
}

// Validate checks the filter bounds.
func (c *Config) Validate() error {
	if c.TopN < 0 {
		return &core.ValidationError{Field: "TopN", Message: fmt.Sprintf("must be non-negative, got %d", c.TopN)}
	}
	if c.IntensityCutoff < 0 || c.IntensityCutoff > 100 {
		return &core.ValidationError{Field: "IntensityCutoff", Message: fmt.Sprintf("must be a percentage, got %f", c.IntensityCutoff)}
	}
	if c.MaxMZ > 0 && c.MaxMZ < c.MinMZ {
		return &core.ValidationError{Field: "MaxMZ", Message: fmt.Sprintf("must not be below min m/z %f, got %f", c.MinMZ, c.MaxMZ)}
	}
	return nil
}

// IsZero reports whether the config leaves peaks untouched.
func (c *Config) IsZero() bool {
	return c.TopN == 0 && c.IntensityCutoff == 0 && c.MinMZ == 0 && c.MaxMZ == 0
}

// Apply applies all configured filters and returns the surviving peaks in
// m/z order. The input slice is not modified.
func (c *Config) Apply(peaks []core.Peak) []core.Peak {
	out := RemoveZeroIntensityPeaks(peaks)

	// Range first so the cutoff is relative to the kept base peak
	if c.MinMZ > 0 || c.MaxMZ > 0 {
		out = c.filterByRange(out)
	}

	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		out = c.filterByIntensity(out)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		out = c.filterTopN(out)
	}

	// Ensure peaks are sorted after all filtering
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MZ < out[j].MZ
	})
	return out
}

// Scan returns a filtered copy of s. Metadata is shared with the original.
func (c *Config) Scan(s *core.Scan) *core.Scan {
	if c.IsZero() {
		return s
	}
	peaks := c.Apply(s.Peaks())
	mzs := make([]float64, len(peaks))
	intensities := make([]float64, len(peaks))
	for i, p := range peaks {
		mzs[i] = p.MZ
		intensities[i] = p.Intensity
	}
	filtered := core.NewScan(s.ID, mzs, intensities, s.MSLevel, s.RT, s.Params)
	filtered.Duration = s.Duration
	filtered.Parent = s.Parent
	return filtered
}

// Library filters the peaks of a library spectrum in place.
func (c *Config) Library(spec *core.LibrarySpectrum) {
	spec.Peaks = c.Apply(spec.Peaks)
}

// filterByRange keeps peaks inside [MinMZ, MaxMZ]
func (c *Config) filterByRange(peaks []core.Peak) []core.Peak {
	var filtered []core.Peak
	for _, peak := range peaks {
		if c.MinMZ > 0 && peak.MZ < c.MinMZ {
			continue
		}
		if c.MaxMZ > 0 && peak.MZ > c.MaxMZ {
			continue
		}
		filtered = append(filtered, peak)
	}
	return filtered
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(peaks []core.Peak) []core.Peak {
	if len(peaks) == 0 {
		return peaks
	}

	// Find maximum intensity
	maxIntensity := 0.0
	for _, peak := range peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}

	// Calculate threshold
	threshold := (c.IntensityCutoff / 100.0) * maxIntensity

	var filtered []core.Peak
	for _, peak := range peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(peaks []core.Peak) []core.Peak {
	if len(peaks) <= c.TopN {
		return peaks
	}

	sorted := make([]core.Peak, len(peaks))
	copy(sorted, peaks)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Intensity > sorted[j].Intensity
	})

	return sorted[:c.TopN]
}

// RemoveZeroIntensityPeaks returns the peaks with positive intensity
func RemoveZeroIntensityPeaks(peaks []core.Peak) []core.Peak {
	filtered := make([]core.Peak, 0, len(peaks))
	for _, peak := range peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}
