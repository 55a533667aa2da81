// Package sampler provides the scan-duration and noise models the scan engine
// draws from.
package sampler

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

// ErrNotFound is returned when no duration samples exist for a transition.
var ErrNotFound = errors.New("no scan duration samples")

// DurationSampler draws scan durations for a transition between ms levels.
// n and dew are the top-N and dynamic exclusion window in effect.
type DurationSampler interface {
	ScanDurations(from, to, replicate, n int, dew float64) ([]float64, error)
}

// NoiseSampler perturbs intensities and produces background noise peaks.
type NoiseSampler interface {
	NoisyIntensity(intensity float64, msLevel int) float64
	NoiseSample() []core.Peak
}

// Sampler is the full sampler contract consumed by the scan engine.
type Sampler interface {
	DurationSampler
	NoiseSampler
}

type durationKey struct {
	from, to, n int
	dew         float64
}

// NoiseConfig configures the empirical noise model.
type NoiseConfig struct {
	// IntensitySigma is the log-normal sigma applied per ms level.
	IntensitySigma map[int]float64 `yaml:"intensity_sigma,omitempty"`
	PeaksPerScan   int             `yaml:"peaks_per_scan,omitempty"`
	MaxIntensity   float64         `yaml:"max_intensity,omitempty"`
	MinMZ          float64         `yaml:"min_mz,omitempty"`
	MaxMZ          float64         `yaml:"max_mz,omitempty"`
}

// Empirical samples durations from measured tables and noise from a
// parametric model. It is seeded and not safe for concurrent use.
type Empirical struct {
	durations map[durationKey][]float64
	noise     NoiseConfig
	rng       *rand.Rand
}

// NewEmpirical returns an empty sampler seeded with seed.
func NewEmpirical(seed uint64, noise NoiseConfig) *Empirical {
	return &Empirical{
		durations: make(map[durationKey][]float64),
		noise:     noise,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Add registers duration samples for a transition.
func (e *Empirical) Add(from, to, n int, dew float64, samples ...float64) {
	k := durationKey{from: from, to: to, n: n, dew: dew}
	e.durations[k] = append(e.durations[k], samples...)
}

// ScanDurations draws replicate samples (with replacement) for the transition.
func (e *Empirical) ScanDurations(from, to, replicate, n int, dew float64) ([]float64, error) {
	samples := e.durations[durationKey{from: from, to: to, n: n, dew: dew}]
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w for transition (%d, %d) N=%d DEW=%g", ErrNotFound, from, to, n, dew)
	}
	if replicate < 1 {
		replicate = 1
	}
	out := make([]float64, replicate)
	for i := range out {
		out[i] = samples[e.rng.IntN(len(samples))]
	}
	return out, nil
}

// NoisyIntensity applies log-normal multiplicative noise for msLevel. Levels
// without a configured sigma pass through unchanged.
func (e *Empirical) NoisyIntensity(intensity float64, msLevel int) float64 {
	sigma := e.noise.IntensitySigma[msLevel]
	if sigma <= 0 {
		return intensity
	}
	return intensity * math.Exp(e.rng.NormFloat64()*sigma)
}

// NoiseSample draws uniformly placed background peaks.
func (e *Empirical) NoiseSample() []core.Peak {
	if e.noise.PeaksPerScan <= 0 || e.noise.MaxMZ <= e.noise.MinMZ {
		return nil
	}
	peaks := make([]core.Peak, e.noise.PeaksPerScan)
	for i := range peaks {
		peaks[i] = core.Peak{
			MZ:        e.noise.MinMZ + e.rng.Float64()*(e.noise.MaxMZ-e.noise.MinMZ),
			Intensity: e.rng.Float64() * e.noise.MaxIntensity,
		}
	}
	return peaks
}

// Transitions returns the number of distinct duration keys.
func (e *Empirical) Transitions() int {
	return len(e.durations)
}

// File is the YAML layout of a sampler file.
type File struct {
	Seed      uint64           `yaml:"seed"`
	Durations []DurationRecord `yaml:"durations"`
	Noise     NoiseConfig      `yaml:"noise,omitempty"`
}

type DurationRecord struct {
	From    int       `yaml:"from"`
	To      int       `yaml:"to"`
	N       int       `yaml:"n"`
	DEW     float64   `yaml:"dew"`
	Samples []float64 `yaml:"samples"`
}

// Load parses a YAML sampler file.
func Load(r io.Reader) (*Empirical, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode sampler: %w", err)
	}

	e := NewEmpirical(f.Seed, f.Noise)
	for i, d := range f.Durations {
		if d.From < 1 || d.To < 1 {
			return nil, &core.ValidationError{Field: "durations", Message: fmt.Sprintf("entry %d has invalid ms levels (%d, %d)", i, d.From, d.To)}
		}
		for _, s := range d.Samples {
			if s <= 0 {
				return nil, &core.ValidationError{Field: "durations", Message: fmt.Sprintf("entry %d has non-positive duration %f", i, s)}
			}
		}
		e.Add(d.From, d.To, d.N, d.DEW, d.Samples...)
	}
	return e, nil
}

// LoadFile opens and parses a YAML sampler file.
func LoadFile(path string) (*Empirical, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sampler: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Fixed returns a sampler with one duration per transition between levels 1
// and 2 at N=0, DEW=0 and no noise.
func Fixed(ms1, ms2 float64) *Empirical {
	e := NewEmpirical(0, NoiseConfig{})
	e.Add(1, 1, 0, 0, ms1)
	e.Add(1, 2, 0, 0, ms1)
	e.Add(2, 1, 0, 0, ms2)
	e.Add(2, 2, 0, 0, ms2)
	return e
}

// Constant returns the same duration for every scan of a level whatever the
// schedule in effect. It adds no noise.
type Constant struct {
	MS1 float64
	MSN float64
}

func (c Constant) ScanDurations(from, _, replicate, _ int, _ float64) ([]float64, error) {
	d := c.MSN
	if from == 1 {
		d = c.MS1
	}
	if d <= 0 {
		return nil, fmt.Errorf("%w for ms level %d", ErrNotFound, from)
	}
	if replicate < 1 {
		replicate = 1
	}
	out := make([]float64, replicate)
	for i := range out {
		out[i] = d
	}
	return out, nil
}

func (Constant) NoisyIntensity(intensity float64, _ int) float64 { return intensity }

func (Constant) NoiseSample() []core.Peak { return nil }
