// Package massspec implements the simulated mass spectrometer: it renders scans
// from the chemicals eluting at the current time, samples scan durations and
// advances simulated time.
package massspec

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ChrisMcGann/MSSim/pkg/chem"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/logging"
	"github.com/ChrisMcGann/MSSim/pkg/metrics"
	"github.com/ChrisMcGann/MSSim/pkg/sampler"
)

// ErrDurationLookup aborts a run when no duration sample exists for a scan.
var ErrDurationLookup = errors.New("scan duration lookup failed")

// Transition is the isolation transition window applied to fragment
// intensities.
type Transition string

const (
	Rectangular        Transition = "rectangular"
	GaussianTransition Transition = "gaussian"
)

// Config holds engine options.
type Config struct {
	AddNoise      bool
	Transition    Transition
	GaussianSigma float64

	// DefaultScan is acquired whenever the task queue is empty.
	DefaultScan *core.ScanParameters
	Logger      *slog.Logger
}

// Handlers are the controller callbacks fired by the engine.
type Handlers struct {
	// ScanArrived returns the tasks the controller wants queued next.
	ScanArrived        func(*core.Scan) []*core.ScanParameters
	AcquisitionOpen    func()
	AcquisitionClosing func()
}

// Engine is an independent-ion mass spectrometer: each peak's intensity
// depends only on its own chemical.
type Engine struct {
	polarity  core.Polarity
	chemicals []*chem.Chemical
	minRTs    []float64
	maxRTs    []float64
	sampler   sampler.Sampler
	cfg       Config
	logger    *slog.Logger
	handlers  Handlers

	queue      []*core.ScanParameters
	time       float64
	idx        int
	currentN   int
	currentDEW float64
	events     []core.FragmentationEvent
}

// New builds an engine over chemicals. Each chemical's elution window is
// computed once so that lookups only visit active chemicals.
func New(polarity core.Polarity, chemicals []*chem.Chemical, s sampler.Sampler, cfg Config) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("a sampler is required")
	}
	switch cfg.Transition {
	case "":
		cfg.Transition = Rectangular
	case Rectangular:
	case GaussianTransition:
		if cfg.GaussianSigma <= 0 {
			return nil, &core.ValidationError{Field: "GaussianSigma", Message: "must be positive for the gaussian transition"}
		}
	default:
		return nil, &core.ValidationError{Field: "Transition", Message: fmt.Sprintf("unknown isolation transition '%s'", cfg.Transition)}
	}
	if cfg.DefaultScan == nil {
		cfg.DefaultScan = core.DefaultMS1Parameters(polarity)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	e := &Engine{
		polarity:  polarity,
		chemicals: chemicals,
		minRTs:    make([]float64, len(chemicals)),
		maxRTs:    make([]float64, len(chemicals)),
		sampler:   s,
		cfg:       cfg,
		logger:    cfg.Logger,
	}
	for i, c := range chemicals {
		if c.MSLevel != 1 || c.Chromatogram == nil {
			return nil, &core.ValidationError{Field: "chemicals", Message: fmt.Sprintf("chemical %d (%s) is not an eluting ms1 chemical", i, c.Name)}
		}
		e.minRTs[i] = c.RT + c.Chromatogram.MinRT()
		e.maxRTs[i] = c.RT + c.Chromatogram.MaxRT()
	}
	return e, nil
}

// SetHandlers installs the controller callbacks.
func (e *Engine) SetHandlers(h Handlers) {
	e.handlers = h
}

// Open fires the acquisition-open hook.
func (e *Engine) Open() {
	if e.handlers.AcquisitionOpen != nil {
		e.handlers.AcquisitionOpen()
	}
}

// Close fires the acquisition-closing hook and unregisters all handlers.
func (e *Engine) Close() {
	e.logger.Debug("acquisition stream is closing")
	if e.handlers.AcquisitionClosing != nil {
		e.handlers.AcquisitionClosing()
	}
	e.handlers = Handlers{}
}

// Reset clears all run state and handlers and sets the clock to start.
func (e *Engine) Reset(start float64) {
	e.handlers = Handlers{}
	e.queue = nil
	e.time = start
	e.idx = 0
	e.currentN = 0
	e.currentDEW = 0
	e.events = nil
}

// Time returns the simulated clock.
func (e *Engine) Time() float64 { return e.time }

// QueueLen returns the number of pending tasks.
func (e *Engine) QueueLen() int { return len(e.queue) }

// Enqueue appends tasks to the back of the queue. A nil task is a
// programming error and panics.
func (e *Engine) Enqueue(tasks ...*core.ScanParameters) {
	for i, p := range tasks {
		if p == nil {
			panic(fmt.Sprintf("massspec: nil scan request at position %d", i))
		}
	}
	e.queue = append(e.queue, tasks...)
	metrics.ObserveTasks(len(tasks))
}

// PollTasks moves every task currently buffered in ch onto the queue without
// blocking and returns how many were moved. Nil tasks are dropped. ch must
// have a single writer.
func (e *Engine) PollTasks(ch <-chan *core.ScanParameters) int {
	n := 0
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return n
			}
			if p == nil {
				e.logger.Warn("dropped nil scan request from task channel")
				continue
			}
			e.Enqueue(p)
			n++
		default:
			return n
		}
	}
}

// SetSchedule sets the top-N and DEW used to key duration samples.
func (e *Engine) SetSchedule(n int, dew float64) {
	e.currentN = n
	e.currentDEW = dew
}

// Schedule returns the top-N and DEW currently in effect.
func (e *Engine) Schedule() (int, float64) {
	return e.currentN, e.currentDEW
}

// DefaultScan returns the request used when the queue is empty.
func (e *Engine) DefaultScan() *core.ScanParameters {
	return e.cfg.DefaultScan
}

// FragmentationEvents returns which chemicals produced which peaks so far.
func (e *Engine) FragmentationEvents() []core.FragmentationEvent {
	return e.events
}

// Step acquires one scan. The controller's ScanArrived handler runs before
// Step returns and its tasks are already queued when the duration is sampled,
// so the next Step consumes them.
func (e *Engine) Step() (*core.Scan, error) {
	params := e.cfg.DefaultScan
	if len(e.queue) > 0 {
		params = e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
	}

	scan := e.render(e.time, params)

	if e.handlers.ScanArrived != nil {
		tasks := e.handlers.ScanArrived(scan)
		e.Enqueue(tasks...)
	}

	var next *core.ScanParameters
	nextLevel := 1
	if len(e.queue) > 0 {
		next = e.queue[0]
		nextLevel = next.MSLevel
	}

	duration, err := e.sampleDuration(scan.MSLevel, nextLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to sample duration of scan %d at %.3f: %w", scan.ID, scan.RT, err)
	}
	scan.SetDuration(duration)
	e.idx++
	e.time += duration
	metrics.ObserveScan(scan.MSLevel, duration)
	e.logger.Debug("scan acquired", "scan_id", scan.ID, "ms_level", scan.MSLevel, "num_peaks", scan.NumPeaks(), "time", e.time, "queue", len(e.queue))

	if next != nil && next.ScheduleSet {
		e.currentN = next.CurrentTopN
		e.currentDEW = next.DEWRTTol
	}
	return scan, nil
}

func (e *Engine) sampleDuration(from, to int) (float64, error) {
	samples, err := e.sampler.ScanDurations(from, to, 1, e.currentN, e.currentDEW)
	if errors.Is(err, sampler.ErrNotFound) && from == 1 && to == 1 {
		samples, err = e.sampler.ScanDurations(from, to, 1, 0, 0)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDurationLookup, err)
	}
	if len(samples) == 0 {
		return 0, fmt.Errorf("%w: sampler returned no durations", ErrDurationLookup)
	}
	return samples[0], nil
}

func (e *Engine) render(rt float64, params *core.ScanParameters) *core.Scan {
	windows := params.Windows()
	level := params.MSLevel

	var mzs, intensities []float64
	for i, c := range e.chemicals {
		if rt < e.minRTs[i] || rt > e.maxRTs[i] {
			continue
		}
		var kept []core.Peak
		for _, p := range e.chemicalPeaks(c, rt, level, windows) {
			if e.cfg.AddNoise {
				p.Intensity = e.sampler.NoisyIntensity(p.Intensity, level)
			}
			if p.Intensity > 0 {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			continue
		}
		for _, p := range kept {
			mzs = append(mzs, p.MZ)
			intensities = append(intensities, p.Intensity)
		}
		e.events = append(e.events, core.FragmentationEvent{
			Chemical: c.Name,
			RT:       rt,
			MSLevel:  level,
			Peaks:    kept,
			ScanID:   e.idx,
		})
	}

	if e.cfg.AddNoise {
		for _, p := range e.sampler.NoiseSample() {
			if p.Intensity > 0 {
				mzs = append(mzs, p.MZ)
				intensities = append(intensities, p.Intensity)
			}
		}
	}
	return core.NewScan(e.idx, mzs, intensities, level, rt, params)
}

func (e *Engine) chemicalPeaks(c *chem.Chemical, rt float64, level int, windows core.WindowSet) []core.Peak {
	if !c.Chromatogram.RTMatch(rt - c.RT) {
		return nil
	}
	var peaks []core.Peak
	for iso := range c.Isotopes {
		for ad := range c.Adducts {
			peaks = append(peaks, e.mzPeaks(c, rt, level, windows, iso, ad)...)
		}
	}
	return peaks
}

func (e *Engine) mzPeaks(c *chem.Chemical, rt float64, level int, windows core.WindowSet, iso, ad int) []core.Peak {
	switch {
	case level == 1 && c.MSLevel == 1:
		// isotopes of non-primary adducts are not rendered
		if iso > 0 && ad > 0 {
			return nil
		}
		if !isolated(windows, 0, mz(c, rt, iso, ad)) {
			return nil
		}
		return []core.Peak{{MZ: mz(c, rt, iso, ad), Intensity: intensity(c, rt, iso, ad)}}

	case level == c.MSLevel:
		in := intensity(c, rt, iso, ad)
		if e.cfg.Transition == GaussianTransition && len(windows) >= level-1 && len(windows[level-2]) > 0 {
			d := mz(c.Parent, rt, iso, ad) - windows[level-2][0].Center()
			in *= math.Exp(-d * d / (2 * e.cfg.GaussianSigma * e.cfg.GaussianSigma))
		}
		return []core.Peak{{MZ: mz(c, rt, iso, ad), Intensity: in}}

	case level > c.MSLevel:
		if !isolated(windows, c.MSLevel-1, mz(c, rt, iso, ad)) {
			return nil
		}
		var peaks []core.Peak
		for _, child := range c.Children {
			peaks = append(peaks, e.mzPeaks(child, rt, level, windows, iso, ad)...)
		}
		return peaks
	}
	return nil
}

func isolated(windows core.WindowSet, depth int, mz float64) bool {
	if depth >= len(windows) {
		return false
	}
	for _, w := range windows[depth] {
		if w.Contains(mz) {
			return true
		}
	}
	return false
}

func mz(c *chem.Chemical, rt float64, iso, ad int) float64 {
	if c.MSLevel == 1 {
		return c.Adducts[ad].Adduct.Transform(c.Isotopes[iso].MZ) + c.Chromatogram.RelativeMZ(rt-c.RT)
	}
	ms1 := c.MS1Ancestor()
	shift := ms1.Isotopes[iso].MZ - ms1.Isotopes[0].MZ
	return ms1.Adducts[ad].Adduct.Transform(c.Isotopes[0].MZ) + shift
}

func intensity(c *chem.Chemical, rt float64, iso, ad int) float64 {
	if c.MSLevel == 1 {
		return c.Isotopes[iso].Prop * c.Adducts[ad].Prop * c.MaxIntensity * c.Chromatogram.RelativeIntensity(rt-c.RT)
	}
	return intensity(c.Parent, rt, iso, ad) * c.ParentMassProp * c.PropMSNMass
}
