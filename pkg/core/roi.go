package core

import "fmt"

// Roi is a region of interest: the trace of one mass feature across
// consecutive MS1 scans.
type Roi struct {
	MZs         []float64
	RTs         []float64
	Intensities []float64

	// Fragmented is set once the ROI has been selected; LastFragRT is the MS1
	// time at which that happened.
	Fragmented bool
	LastFragRT float64

	mzSum float64
}

// NewRoi starts a trace from a single point.
func NewRoi(mz, rt, intensity float64) *Roi {
	r := &Roi{}
	r.Add(mz, rt, intensity)
	return r
}

// Add extends the trace.
func (r *Roi) Add(mz, rt, intensity float64) {
	r.MZs = append(r.MZs, mz)
	r.RTs = append(r.RTs, rt)
	r.Intensities = append(r.Intensities, intensity)
	r.mzSum += mz
}

// Len returns the number of points in the trace.
func (r *Roi) Len() int {
	return len(r.MZs)
}

// MeanMZ returns the mean m/z of the trace.
func (r *Roi) MeanMZ() float64 {
	if len(r.MZs) == 0 {
		return 0
	}
	return r.mzSum / float64(len(r.MZs))
}

// MaxIntensity returns the most intense point of the trace.
func (r *Roi) MaxIntensity() float64 {
	best := 0.0
	for _, v := range r.Intensities {
		if v > best {
			best = v
		}
	}
	return best
}

// LastRT returns the time of the most recent point.
func (r *Roi) LastRT() float64 {
	if len(r.RTs) == 0 {
		return 0
	}
	return r.RTs[len(r.RTs)-1]
}

// MarkFragmented stamps the ROI as selected at rt.
func (r *Roi) MarkFragmented(rt float64) {
	r.Fragmented = true
	r.LastFragRT = rt
}

func (r *Roi) String() string {
	return fmt.Sprintf("ROI with data points=%d mz (%.4f) rt (%.2f-%.2f)", r.Len(), r.MeanMZ(), r.RTs[0], r.LastRT())
}
