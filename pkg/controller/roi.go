package controller

import (
	"fmt"
	"math"
	"sort"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

// RoiConfig configures a region-of-interest controller.
type RoiConfig struct {
	N              int
	IsolationWidth float64
	// MZTol matches MS1 points to live ROIs.
	MZTol core.Tolerance
	// ExclusionTime is how long a fragmented ROI stays ineligible. Zero or
	// less excludes it for good.
	ExclusionTime   float64
	MinMS1Intensity float64
	MinRoiIntensity float64
	MinRoiLength    int
}

// Validate checks the ROI parameters.
func (c RoiConfig) Validate() error {
	if c.N <= 0 {
		return &core.ValidationError{Field: "N", Message: fmt.Sprintf("must be positive, got %d", c.N)}
	}
	if c.IsolationWidth <= 0 {
		return &core.ValidationError{Field: "IsolationWidth", Message: "must be positive"}
	}
	if c.MZTol.Value <= 0 {
		return &core.ValidationError{Field: "MZTol", Message: "must be positive"}
	}
	if c.MZTol.Unit != core.PPM && c.MZTol.Unit != core.Dalton {
		return &core.ValidationError{Field: "MZTol", Message: fmt.Sprintf("unknown unit '%s'", c.MZTol.Unit)}
	}
	if c.MinRoiLength < 0 {
		return &core.ValidationError{Field: "MinRoiLength", Message: "must not be negative"}
	}
	return nil
}

// Roi tracks mass features across MS1 scans and fragments the most intense
// live regions. It keeps no exclusion list; fragmented regions are gated by
// their own last fragmentation time.
type Roi struct {
	TopN
	roiCfg RoiConfig

	// live is sorted by mean m/z at the start of every MS1 cycle.
	live []*core.Roi
	dead []*core.Roi
	junk []*core.Roi
}

// NewRoi builds a ROI controller.
func NewRoi(polarity core.Polarity, cfg RoiConfig, opts ...Option) (*Roi, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Roi{
		TopN: TopN{
			base: newBase("roi", polarity, opts),
			cfg: TopNConfig{
				N:               cfg.N,
				IsolationWidth:  cfg.IsolationWidth,
				MinMS1Intensity: cfg.MinMS1Intensity,
			},
		},
		roiCfg: cfg,
	}, nil
}

func (c *Roi) HandleScan(scan *core.Scan) []*core.ScanParameters {
	c.receive(scan)
	if scan.MSLevel == 1 {
		c.updateRois(scan)
	}

	ms1 := c.takeMS1()
	if ms1 == nil {
		return nil
	}

	rt := ms1.RT
	scores := c.scores(rt)
	var tasks []*core.ScanParameters
	for _, i := range rank(scores) {
		if scores[i] <= 0 {
			break
		}
		r := c.live[i]
		r.MarkFragmented(rt)
		tasks = append(tasks, c.ms2Request(ms1, r.MeanMZ(), r.MaxIntensity(), c.roiCfg.IsolationWidth, 0, 0, c.roiCfg.N))
	}
	c.logger.Debug("roi cycle", "time", rt, "live", len(c.live), "dead", len(c.dead), "junk", len(c.junk), "selected", len(tasks))
	return tasks
}

// UpdateStateAfterScan only records precursor links.
func (c *Roi) UpdateStateAfterScan(scan *core.Scan) {
	c.precursors.add(scan)
}

func (c *Roi) Reset() {
	c.TopN.Reset()
	c.live, c.dead, c.junk = nil, nil, nil
}

func (c *Roi) CurrentSchedule(float64) (int, float64) {
	return c.roiCfg.N, 0
}

// Live returns the ROIs still being extended.
func (c *Roi) Live() []*core.Roi { return c.live }

// Dead returns retired ROIs that reached the minimum length.
func (c *Roi) Dead() []*core.Roi { return c.dead }

// Junk returns retired ROIs that were too short.
func (c *Roi) Junk() []*core.Roi { return c.junk }

// updateRois extends live ROIs with the points of an MS1 scan, starts new
// ones for unmatched points and retires every live ROI that did not grow.
// Each ROI takes at most one point per scan.
func (c *Roi) updateRois(scan *core.Scan) {
	sort.SliceStable(c.live, func(i, j int) bool {
		return c.live[i].MeanMZ() < c.live[j].MeanMZ()
	})

	grew := make(map[*core.Roi]bool, len(c.live))
	for i, mz := range scan.MZs {
		intensity := scan.Intensities[i]
		if intensity < c.roiCfg.MinRoiIntensity {
			continue
		}
		if r := c.match(mz, grew); r != nil {
			r.Add(mz, scan.RT, intensity)
			grew[r] = true
			continue
		}
		r := core.NewRoi(mz, scan.RT, intensity)
		c.insert(r)
		grew[r] = true
	}

	kept := c.live[:0]
	for _, r := range c.live {
		switch {
		case grew[r]:
			kept = append(kept, r)
		case r.Len() >= c.roiCfg.MinRoiLength:
			c.dead = append(c.dead, r)
		default:
			c.junk = append(c.junk, r)
		}
	}
	for i := len(kept); i < len(c.live); i++ {
		c.live[i] = nil
	}
	c.live = kept
}

// match returns the closest live ROI within tolerance of mz that has not
// grown in this scan.
func (c *Roi) match(mz float64, grew map[*core.Roi]bool) *core.Roi {
	var best *core.Roi
	bestDist := math.Inf(1)
	for _, r := range c.live {
		if grew[r] {
			continue
		}
		mean := r.MeanMZ()
		if !c.roiCfg.MZTol.Within(mz, mean) {
			continue
		}
		if d := math.Abs(mz - mean); d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}

func (c *Roi) insert(r *core.Roi) {
	mz := r.MeanMZ()
	i := sort.Search(len(c.live), func(i int) bool { return c.live[i].MeanMZ() > mz })
	c.live = append(c.live, nil)
	copy(c.live[i+1:], c.live[i:])
	c.live[i] = r
}

// scores returns the log max intensity of each live ROI, zeroed when the ROI
// is too weak, too short or still excluded after an earlier fragmentation.
// Only the N best scores survive.
func (c *Roi) scores(rt float64) []float64 {
	scores := make([]float64, len(c.live))
	for i, r := range c.live {
		intensity := r.MaxIntensity()
		if intensity <= 0 || intensity < c.roiCfg.MinMS1Intensity {
			continue
		}
		if r.Len() < c.roiCfg.MinRoiLength {
			continue
		}
		if r.Fragmented && (c.roiCfg.ExclusionTime <= 0 || rt-r.LastFragRT <= c.roiCfg.ExclusionTime) {
			continue
		}
		scores[i] = math.Log(intensity)
	}

	for pos, i := range rank(scores) {
		if pos >= c.roiCfg.N {
			scores[i] = 0
		}
	}
	return scores
}
