package chem

import (
	"fmt"
	"math"
	"sort"
)

// Chromatogram describes how a chemical elutes. All times are relative to the
// chemical's onset RT.
type Chromatogram interface {
	MinRT() float64
	MaxRT() float64
	RelativeIntensity(dt float64) float64
	RelativeMZ(dt float64) float64
	RTMatch(dt float64) bool
}

// Gaussian is a symmetric elution profile centred in [0, Span], normalised to
// 1 at the apex.
type Gaussian struct {
	Sigma float64
	Span  float64
}

// NewGaussian validates and builds a Gaussian chromatogram.
func NewGaussian(sigma, span float64) (*Gaussian, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("gaussian sigma must be positive, got %f", sigma)
	}
	if span <= 0 {
		return nil, fmt.Errorf("gaussian span must be positive, got %f", span)
	}
	return &Gaussian{Sigma: sigma, Span: span}, nil
}

func (g *Gaussian) MinRT() float64 { return 0 }
func (g *Gaussian) MaxRT() float64 { return g.Span }

func (g *Gaussian) RelativeIntensity(dt float64) float64 {
	if !g.RTMatch(dt) {
		return 0
	}
	x := dt - g.Span/2
	return math.Exp(-x * x / (2 * g.Sigma * g.Sigma))
}

func (g *Gaussian) RelativeMZ(float64) float64 { return 0 }

func (g *Gaussian) RTMatch(dt float64) bool {
	return dt >= 0 && dt <= g.Span
}

// Empirical is a measured elution profile, linearly interpolated between
// points. MZs, when present, are m/z offsets from the chemical's nominal m/z.
type Empirical struct {
	RTs         []float64
	Intensities []float64
	MZs         []float64
}

// NewEmpirical builds an empirical chromatogram from points sorted by rt.
// Intensities are rescaled so the maximum is 1.
func NewEmpirical(rts, intensities, mzs []float64) (*Empirical, error) {
	if len(rts) < 2 {
		return nil, fmt.Errorf("empirical chromatogram needs at least 2 points, got %d", len(rts))
	}
	if len(intensities) != len(rts) {
		return nil, fmt.Errorf("empirical chromatogram has %d rts and %d intensities", len(rts), len(intensities))
	}
	if len(mzs) != 0 && len(mzs) != len(rts) {
		return nil, fmt.Errorf("empirical chromatogram has %d rts and %d mzs", len(rts), len(mzs))
	}
	if !sort.Float64sAreSorted(rts) {
		return nil, fmt.Errorf("empirical chromatogram rts must be sorted")
	}

	maxIntensity := 0.0
	for _, v := range intensities {
		maxIntensity = math.Max(maxIntensity, v)
	}
	if maxIntensity <= 0 {
		return nil, fmt.Errorf("empirical chromatogram has no positive intensity")
	}

	e := &Empirical{
		RTs:         append([]float64(nil), rts...),
		Intensities: make([]float64, len(intensities)),
		MZs:         append([]float64(nil), mzs...),
	}
	for i, v := range intensities {
		e.Intensities[i] = v / maxIntensity
	}
	return e, nil
}

func (e *Empirical) MinRT() float64 { return e.RTs[0] }
func (e *Empirical) MaxRT() float64 { return e.RTs[len(e.RTs)-1] }

func (e *Empirical) RelativeIntensity(dt float64) float64 {
	if !e.RTMatch(dt) {
		return 0
	}
	return interpolate(e.RTs, e.Intensities, dt)
}

func (e *Empirical) RelativeMZ(dt float64) float64 {
	if len(e.MZs) == 0 || !e.RTMatch(dt) {
		return 0
	}
	return interpolate(e.RTs, e.MZs, dt)
}

func (e *Empirical) RTMatch(dt float64) bool {
	return dt >= e.MinRT() && dt <= e.MaxRT()
}

// interpolate assumes xs is sorted and x lies within [xs[0], xs[n-1]].
func interpolate(xs, ys []float64, x float64) float64 {
	i := sort.SearchFloat64s(xs, x)
	if i < len(xs) && xs[i] == x {
		return ys[i]
	}
	if i == 0 {
		return ys[0]
	}
	if i >= len(xs) {
		return ys[len(ys)-1]
	}
	frac := (x - xs[i-1]) / (xs[i] - xs[i-1])
	return ys[i-1] + frac*(ys[i]-ys[i-1])
}
