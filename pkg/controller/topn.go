package controller

import (
	"fmt"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

// TopNConfig configures a Top-N controller.
type TopNConfig struct {
	N int
	// IsolationWidth is the full width of the isolation window in Da.
	IsolationWidth float64
	// MZTol (ppm) and RTTol (s) define the dynamic exclusion window.
	MZTol           float64
	RTTol           float64
	MinMS1Intensity float64
}

// Validate checks the Top-N parameters.
func (c TopNConfig) Validate() error {
	if c.N <= 0 {
		return &core.ValidationError{Field: "N", Message: fmt.Sprintf("must be positive, got %d", c.N)}
	}
	if c.IsolationWidth <= 0 {
		return &core.ValidationError{Field: "IsolationWidth", Message: "must be positive"}
	}
	if c.MZTol < 0 || c.RTTol < 0 {
		return &core.ValidationError{Field: "DEW", Message: "tolerances must not be negative"}
	}
	return nil
}

// TopN follows every MS1 scan with fragmentation scans of its N most intense
// peaks that are not dynamically excluded.
type TopN struct {
	base
	cfg       TopNConfig
	exclusion core.ExclusionList
}

// NewTopN builds a Top-N controller.
func NewTopN(polarity core.Polarity, cfg TopNConfig, opts ...Option) (*TopN, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TopN{base: newBase("topn", polarity, opts), cfg: cfg}, nil
}

func (c *TopN) HandleScan(scan *core.Scan) []*core.ScanParameters {
	c.receive(scan)
	ms1 := c.takeMS1()
	if ms1 == nil {
		return nil
	}

	rt := ms1.RT
	var tasks []*core.ScanParameters
	for _, i := range rank(ms1.Intensities) {
		mz, intensity := ms1.MZs[i], ms1.Intensities[i]

		if len(tasks) >= c.cfg.N {
			c.logger.Debug("top-N ions selected", "time", rt, "n", c.cfg.N)
			break
		}
		if intensity < c.cfg.MinMS1Intensity {
			c.logger.Debug("minimum intensity reached", "time", rt, "intensity", intensity, "selected", len(tasks))
			break
		}
		if c.excluded(mz, rt) {
			continue
		}
		tasks = append(tasks, c.ms2Request(ms1, mz, intensity, c.cfg.IsolationWidth, c.cfg.MZTol, c.cfg.RTTol, c.cfg.N))
	}
	return tasks
}

// UpdateStateAfterScan links the scan to its precursor and, for fragmentation
// scans, excludes the precursor from the end of the acquisition for the
// request's DEW. Expired items are dropped.
func (c *TopN) UpdateStateAfterScan(scan *core.Scan) {
	c.precursors.add(scan)

	now := scan.EndRT()
	if scan.MSLevel >= 2 && scan.Parent != nil && scan.Params != nil {
		x := core.NewExclusionItem(scan.Parent.MZ, scan.Params.DEWMZTol, now, scan.Params.DEWRTTol)
		c.logger.Debug("created dynamic exclusion window", "time", now, "item", x.String())
		c.exclusion.Add(x)
	}
	c.exclusion.Prune(now)
}

func (c *TopN) Reset() {
	c.base.Reset()
	c.exclusion.Reset()
}

func (c *TopN) CurrentSchedule(float64) (int, float64) {
	return c.cfg.N, c.cfg.RTTol
}

// Exclusions returns the live dynamic exclusion items.
func (c *TopN) Exclusions() []core.ExclusionItem {
	return c.exclusion.Items()
}

func (c *TopN) excluded(mz, rt float64) bool {
	x, ok := c.exclusion.Excluding(mz, rt)
	if ok {
		c.logger.Debug("excluded precursor", "mz", mz, "rt", rt, "item", x.String())
	}
	return ok
}

// ms2Request builds a fragmentation request for a precursor seen in ms1. All
// ions are assumed singly charged.
func (c *TopN) ms2Request(ms1 *core.Scan, mz, intensity, width, mzTol, rtTol float64, n int) *core.ScanParameters {
	return &core.ScanParameters{
		MSLevel: 2,
		Precursor: &core.Precursor{
			MZ:        mz,
			Intensity: intensity,
			Charge:    c.polarity.PrecursorCharge(),
			ScanID:    ms1.ID,
		},
		IsolationWidth:  width,
		DEWMZTol:        mzTol,
		DEWRTTol:        rtTol,
		CollisionEnergy: core.DefaultCollisionEnergy,
		Polarity:        c.polarity,
		FirstMass:       c.defaultScan.FirstMass,
		LastMass:        c.defaultScan.LastMass,
		CurrentTopN:     n,
		ScheduleSet:     true,
	}
}
