package controller

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

// HybridConfig configures a Top-N controller whose parameters change over
// time. Changepoints are the times at which the next set of parameters takes
// over; the first set applies from time 0, so every parameter slice holds
// len(Changepoints)+1 values.
type HybridConfig struct {
	Changepoints    []float64
	N               []int
	IsolationWidth  []float64
	MZTol           []float64
	RTTol           []float64
	MinMS1Intensity float64

	// Precursors whose purity is at or below PurityThreshold are replaced by
	// NPurityScans requests spaced PurityShift Da apart. Zero disables.
	PurityThreshold float64
	NPurityScans    int
	PurityShift     float64
	PurityRandomize bool
	// PurityAddMS1 places an MS1 scan between consecutive purity scans. These
	// scans never start a selection cycle.
	PurityAddMS1 bool
	Seed         uint64
}

// Validate checks that the schedule is consistent.
func (c HybridConfig) Validate() error {
	k := len(c.Changepoints) + 1
	for field, n := range map[string]int{
		"N":              len(c.N),
		"IsolationWidth": len(c.IsolationWidth),
		"MZTol":          len(c.MZTol),
		"RTTol":          len(c.RTTol),
	} {
		if n != k {
			return &core.ValidationError{Field: field, Message: fmt.Sprintf("has %d values, expected %d for %d changepoints", n, k, len(c.Changepoints))}
		}
	}
	if !sort.Float64sAreSorted(c.Changepoints) {
		return &core.ValidationError{Field: "Changepoints", Message: "must be ascending"}
	}
	for i, n := range c.N {
		if n <= 0 {
			return &core.ValidationError{Field: "N", Message: fmt.Sprintf("value %d must be positive, got %d", i, n)}
		}
		if c.IsolationWidth[i] <= 0 {
			return &core.ValidationError{Field: "IsolationWidth", Message: fmt.Sprintf("value %d must be positive", i)}
		}
		if c.MZTol[i] < 0 {
			return &core.ValidationError{Field: "MZTol", Message: fmt.Sprintf("value %d must not be negative", i)}
		}
		if c.RTTol[i] < 0 {
			return &core.ValidationError{Field: "RTTol", Message: fmt.Sprintf("value %d must not be negative", i)}
		}
		if c.PurityThreshold != 0 && c.NPurityScans >= n {
			return &core.ValidationError{Field: "NPurityScans", Message: fmt.Sprintf("must be below N (%d) in every period", n)}
		}
	}
	if c.PurityThreshold != 0 && c.NPurityScans < 1 {
		return &core.ValidationError{Field: "NPurityScans", Message: "must be at least 1 when purity filtering is enabled"}
	}
	return nil
}

// Hybrid is a Top-N controller with a changepoint schedule and purity-driven
// precursor shifting.
type Hybrid struct {
	TopN
	schedule HybridConfig
	starts   []float64
	rng      *rand.Rand
	// interleaved holds the pending MS1 requests placed between purity scans.
	interleaved map[*core.ScanParameters]bool
}

// NewHybrid builds a hybrid controller. Schedule mismatches fail here, before
// any scan is acquired.
func NewHybrid(polarity core.Polarity, cfg HybridConfig, opts ...Option) (*Hybrid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Hybrid{
		TopN: TopN{
			base: newBase("hybrid", polarity, opts),
			cfg: TopNConfig{
				N:               cfg.N[0],
				IsolationWidth:  cfg.IsolationWidth[0],
				MZTol:           cfg.MZTol[0],
				RTTol:           cfg.RTTol[0],
				MinMS1Intensity: cfg.MinMS1Intensity,
			},
		},
		schedule:    cfg,
		starts:      append([]float64{0}, cfg.Changepoints...),
		interleaved: make(map[*core.ScanParameters]bool),
	}
	h.rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	return h, nil
}

// period returns the index of the parameter set in effect at t: the last
// changepoint at or before t.
func (h *Hybrid) period(t float64) int {
	i := sort.Search(len(h.starts), func(i int) bool { return h.starts[i] > t }) - 1
	if i < 0 {
		return 0
	}
	return i
}

func (h *Hybrid) CurrentSchedule(t float64) (int, float64) {
	i := h.period(t)
	return h.schedule.N[i], h.schedule.RTTol[i]
}

func (h *Hybrid) HandleScan(scan *core.Scan) []*core.ScanParameters {
	h.receive(scan)
	if h.interleaved[scan.Params] {
		delete(h.interleaved, scan.Params)
		h.takeMS1()
		return nil
	}
	ms1 := h.takeMS1()
	if ms1 == nil {
		return nil
	}

	rt := ms1.RT
	p := h.period(rt)
	n := h.schedule.N[p]
	width := h.schedule.IsolationWidth[p]
	mzTol := h.schedule.MZTol[p]
	rtTol := h.schedule.RTTol[p]

	var purities []float64
	if h.schedule.PurityThreshold != 0 {
		purities = purity(ms1.MZs, ms1.Intensities, width)
	}

	var tasks []*core.ScanParameters
	count := 0
	for _, i := range rank(ms1.Intensities) {
		mz, intensity := ms1.MZs[i], ms1.Intensities[i]

		if count >= n {
			h.logger.Debug("top-N ions selected", "time", rt, "n", n)
			break
		}
		if intensity < h.schedule.MinMS1Intensity {
			h.logger.Debug("minimum intensity reached", "time", rt, "intensity", intensity, "selected", count)
			break
		}
		if h.excluded(mz, rt) {
			continue
		}

		if purities != nil && purities[i] <= h.schedule.PurityThreshold {
			shifts := h.purityShifts()
			for k, shift := range shifts {
				if count >= n {
					break
				}
				tasks = append(tasks, h.ms2Request(ms1, mz+shift, intensity, width, mzTol, rtTol, n))
				count++
				if h.schedule.PurityAddMS1 && k < len(shifts)-1 {
					tasks = append(tasks, h.interleavedMS1())
				}
			}
			continue
		}

		tasks = append(tasks, h.ms2Request(ms1, mz, intensity, width, mzTol, rtTol, n))
		count++
	}
	return tasks
}

func (h *Hybrid) Reset() {
	h.TopN.Reset()
	clear(h.interleaved)
	h.rng = rand.New(rand.NewPCG(h.schedule.Seed, h.schedule.Seed))
}

// interleavedMS1 returns a fresh copy of the default scan and remembers it so
// the resulting scan is logged without triggering selection.
func (h *Hybrid) interleavedMS1() *core.ScanParameters {
	p := *h.defaultScan
	h.interleaved[&p] = true
	return &p
}

// purityShifts returns NPurityScans offsets centred on zero.
func (h *Hybrid) purityShifts() []float64 {
	n := h.schedule.NPurityScans
	shifts := make([]float64, n)
	for i := range shifts {
		shifts[i] = h.schedule.PurityShift * (float64(i) - float64(n-1)/2)
	}
	if h.schedule.PurityRandomize {
		h.rng.Shuffle(n, func(i, j int) { shifts[i], shifts[j] = shifts[j], shifts[i] })
	}
	return shifts
}

// purity returns, per peak, its share of the total intensity of all peaks
// within half an isolation width of it.
func purity(mzs, intensities []float64, width float64) []float64 {
	out := make([]float64, len(mzs))
	half := width / 2
	for i := range mzs {
		total := 0.0
		for j := range mzs {
			if math.Abs(mzs[j]-mzs[i]) <= half {
				total += intensities[j]
			}
		}
		if total > 0 {
			out[i] = intensities[i] / total
		} else {
			out[i] = 1
		}
	}
	return out
}
