// Package controller implements acquisition strategies. A controller sees
// every scan the engine produces and answers with the scans it wants next.
package controller

import (
	"log/slog"
	"sort"

	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/logging"
)

// Controller is an acquisition strategy driven by the environment.
type Controller interface {
	// HandleScan is called from inside the engine step; the returned tasks
	// are queued before the step finishes.
	HandleScan(scan *core.Scan) []*core.ScanParameters
	// UpdateStateAfterScan runs once the engine clock has moved past scan.
	UpdateStateAfterScan(scan *core.Scan)
	Reset()
	OnAcquisitionOpen()
	OnAcquisitionClosing()
	// CurrentSchedule returns the top-N and DEW in effect at t.
	CurrentSchedule(t float64) (n int, dew float64)
	Scans() *ScanLog
	Precursors() []PrecursorScans
}

// Option configures a controller.
type Option func(*base)

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.logger = l }
}

// WithDefaultScan sets the full scan request controllers issue.
func WithDefaultScan(p *core.ScanParameters) Option {
	return func(b *base) { b.defaultScan = p }
}

// ScanLog keeps every scan a controller received, per ms level, in arrival
// order.
type ScanLog struct {
	byLevel map[int][]*core.Scan
	all     []*core.Scan
}

// NewScanLog returns an empty log.
func NewScanLog() *ScanLog {
	return &ScanLog{byLevel: make(map[int][]*core.Scan)}
}

// Add appends a scan.
func (l *ScanLog) Add(s *core.Scan) {
	l.byLevel[s.MSLevel] = append(l.byLevel[s.MSLevel], s)
	l.all = append(l.all, s)
}

// Level returns the scans of one ms level.
func (l *ScanLog) Level(msLevel int) []*core.Scan {
	return l.byLevel[msLevel]
}

// Levels returns the ms levels seen, ascending.
func (l *ScanLog) Levels() []int {
	levels := make([]int, 0, len(l.byLevel))
	for level := range l.byLevel {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

// All returns every scan in arrival order.
func (l *ScanLog) All() []*core.Scan {
	return l.all
}

// Len returns the total number of scans.
func (l *ScanLog) Len() int {
	return len(l.all)
}

// PrecursorScans links a selected precursor to the scans acquired from it.
type PrecursorScans struct {
	Precursor *core.Precursor
	Scans     []*core.Scan
}

type precursorLog struct {
	index   map[*core.Precursor]int
	entries []PrecursorScans
}

func (p *precursorLog) add(scan *core.Scan) {
	if scan.MSLevel < 2 || scan.Parent == nil {
		return
	}
	if p.index == nil {
		p.index = make(map[*core.Precursor]int)
	}
	i, ok := p.index[scan.Parent]
	if !ok {
		i = len(p.entries)
		p.index[scan.Parent] = i
		p.entries = append(p.entries, PrecursorScans{Precursor: scan.Parent})
	}
	p.entries[i].Scans = append(p.entries[i].Scans, scan)
}

// base holds the state every controller shares.
type base struct {
	name        string
	logger      *slog.Logger
	polarity    core.Polarity
	defaultScan *core.ScanParameters
	scans       *ScanLog
	lastMS1     *core.Scan
	precursors  precursorLog
}

func newBase(name string, polarity core.Polarity, opts []Option) base {
	b := base{
		name:     name,
		polarity: polarity,
		scans:    NewScanLog(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.logger == nil {
		b.logger = logging.Discard()
	}
	b.logger = b.logger.With("controller", name)
	if b.defaultScan == nil {
		b.defaultScan = core.DefaultMS1Parameters(polarity)
	}
	return b
}

// receive logs the scan and tracks the most recent non-empty MS1 scan.
func (b *base) receive(scan *core.Scan) {
	b.logger.Debug("received scan", "time", scan.RT, "scan_id", scan.ID, "ms_level", scan.MSLevel, "num_peaks", scan.NumPeaks())
	b.scans.Add(scan)
	if scan.MSLevel == 1 {
		if scan.NumPeaks() > 0 {
			b.lastMS1 = scan
		} else {
			b.lastMS1 = nil
		}
	}
}

// takeMS1 returns the pending MS1 scan and marks it processed.
func (b *base) takeMS1() *core.Scan {
	s := b.lastMS1
	b.lastMS1 = nil
	return s
}

func (b *base) Reset() {
	b.scans = NewScanLog()
	b.lastMS1 = nil
	b.precursors = precursorLog{}
}

func (b *base) OnAcquisitionOpen()    { b.logger.Info("acquisition open") }
func (b *base) OnAcquisitionClosing() { b.logger.Info("acquisition closing", "scans", b.scans.Len()) }

func (b *base) UpdateStateAfterScan(*core.Scan) {}

func (b *base) CurrentSchedule(float64) (int, float64) { return 0, 0 }

func (b *base) Scans() *ScanLog { return b.scans }

func (b *base) Precursors() []PrecursorScans { return b.precursors.entries }

// Name returns the controller name used in logs and output.
func (b *base) Name() string { return b.name }

// rank orders indices by descending value. Equal values keep index order.
func rank(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] > values[idx[b]]
	})
	return idx
}
