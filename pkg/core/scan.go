package core

import (
	"fmt"
	"sort"
)

// Scan is one acquisition produced by the scan engine.
type Scan struct {
	ID          int
	MZs         []float64
	Intensities []float64
	MSLevel     int
	RT          float64

	// Duration is unknown until the engine has seen the next request.
	Duration *float64

	Params *ScanParameters
	Parent *Precursor
}

// NewScan builds a scan whose arrays are co-sorted by ascending m/z. Equal m/z
// values keep their input order. Arrays of different length panic.
func NewScan(id int, mzs, intensities []float64, msLevel int, rt float64, params *ScanParameters) *Scan {
	if len(mzs) != len(intensities) {
		panic(fmt.Sprintf("core: scan %d has %d m/z values and %d intensities", id, len(mzs), len(intensities)))
	}

	order := make([]int, len(mzs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return mzs[order[a]] < mzs[order[b]]
	})

	s := &Scan{
		ID:          id,
		MZs:         make([]float64, len(mzs)),
		Intensities: make([]float64, len(mzs)),
		MSLevel:     msLevel,
		RT:          rt,
		Params:      params,
	}
	for i, j := range order {
		s.MZs[i] = mzs[j]
		s.Intensities[i] = intensities[j]
	}
	if params != nil {
		s.Parent = params.Precursor
	}
	return s
}

// NumPeaks returns the number of peaks in the scan.
func (s *Scan) NumPeaks() int {
	return len(s.MZs)
}

// Peaks returns the scan as (mz, intensity) pairs in m/z order.
func (s *Scan) Peaks() []Peak {
	peaks := make([]Peak, len(s.MZs))
	for i := range s.MZs {
		peaks[i] = Peak{MZ: s.MZs[i], Intensity: s.Intensities[i]}
	}
	return peaks
}

// SetDuration records the sampled acquisition time of the scan.
func (s *Scan) SetDuration(d float64) {
	s.Duration = &d
}

// EndRT returns the time at which the acquisition finished. Before the
// duration is known this is the start time.
func (s *Scan) EndRT() float64 {
	if s.Duration == nil {
		return s.RT
	}
	return s.RT + *s.Duration
}

// Validate checks the co-sorting invariant.
func (s *Scan) Validate() error {
	if len(s.MZs) != len(s.Intensities) {
		return &ValidationError{Field: "Scan", Message: fmt.Sprintf("scan %d has unequal array lengths", s.ID)}
	}
	for i := 1; i < len(s.MZs); i++ {
		if s.MZs[i] < s.MZs[i-1] {
			return &ValidationError{Field: "Scan", Message: fmt.Sprintf("scan %d m/z values are not sorted", s.ID)}
		}
	}
	return nil
}

func (s *Scan) String() string {
	return fmt.Sprintf("Scan %d num_peaks=%d rt=%.2f ms_level=%d", s.ID, s.NumPeaks(), s.RT, s.MSLevel)
}

// FragmentationEvent records which chemical produced which peaks in which
// scan. It is kept for offline scoring only.
type FragmentationEvent struct {
	Chemical string
	RT       float64
	MSLevel  int
	Peaks    []Peak
	ScanID   int
}
