// Package dia partitions the m/z axis into data-independent acquisition
// windows. Every function here is pure: the same inputs always produce the
// same windows.
package dia

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/MSSim/pkg/core"
)

// Design selects how bins are grouped into scan locations.
type Design string

const (
	// Basic scans each bin on its own.
	Basic Design = "basic"
	// Kaufmann uses the 64-bin multiplexed layouts of Kaufmann & Walker (2016).
	Kaufmann Design = "kaufmann"
)

// WindowType selects how bin walls are placed.
type WindowType string

const (
	Even       WindowType = "even"
	Percentile WindowType = "percentile"
)

// Layout is the Kaufmann arrangement.
type Layout string

const (
	Nested Layout = "nested"
	Tree   Layout = "tree"
)

// KaufmannBins is the fixed bin count of the Kaufmann designs.
const KaufmannBins = 64

// DefaultRangeSlack widens the outer walls by 1% of the range.
const DefaultRangeSlack = 0.01

// Config describes a DIA design.
type Config struct {
	Design     Design
	WindowType WindowType
	Layout     Layout
	// ExtraBins adds recursive sub-binning levels to a Kaufmann design.
	ExtraBins  int
	NumWindows int
	Range      core.Window
	RangeSlack float64
}

// DefaultConfig returns an even basic design of n windows over 0-1000.
func DefaultConfig(n int) Config {
	return Config{
		Design:     Basic,
		WindowType: Even,
		NumWindows: n,
		Range:      core.Window{Lower: core.DefaultFirstMass, Upper: core.DefaultLastMass},
		RangeSlack: DefaultRangeSlack,
	}
}

// Validate checks the design parameters.
func (c Config) Validate() error {
	switch c.Design {
	case Basic:
		if c.ExtraBins > 0 {
			return &core.ValidationError{Field: "ExtraBins", Message: "cannot have extra bins with the basic design"}
		}
		if c.NumWindows <= 0 {
			return &core.ValidationError{Field: "NumWindows", Message: fmt.Sprintf("must be positive, got %d", c.NumWindows)}
		}
	case Kaufmann:
		if c.Layout != Nested && c.Layout != Tree {
			return &core.ValidationError{Field: "Layout", Message: fmt.Sprintf("unknown kaufmann layout '%s'", c.Layout)}
		}
		if c.ExtraBins < 0 {
			return &core.ValidationError{Field: "ExtraBins", Message: "must not be negative"}
		}
	default:
		return &core.ValidationError{Field: "Design", Message: fmt.Sprintf("unknown design '%s', must be basic or kaufmann", c.Design)}
	}
	if c.WindowType != Even && c.WindowType != Percentile {
		return &core.ValidationError{Field: "WindowType", Message: fmt.Sprintf("unknown window type '%s', must be even or percentile", c.WindowType)}
	}
	if c.Range.Upper <= c.Range.Lower {
		return &core.ValidationError{Field: "Range", Message: "upper bound must exceed lower bound"}
	}
	if c.RangeSlack < 0 {
		return &core.ValidationError{Field: "RangeSlack", Message: "must not be negative"}
	}
	return nil
}

// Windows returns one WindowSet per scan location. ms1MZs is only read by the
// percentile window type.
func Windows(ms1MZs []float64, cfg Config) ([]core.WindowSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := cfg.NumWindows
	if cfg.Design == Kaufmann {
		n = KaufmannBins
	}

	walls, err := binWalls(ms1MZs, cfg, n)
	if err != nil {
		return nil, err
	}

	if cfg.Design == Basic {
		locations := make([]core.WindowSet, n)
		for i := 0; i < n; i++ {
			locations[i] = single(window(walls, i, i+1))
		}
		return locations, nil
	}

	var extra []float64
	if cfg.ExtraBins > 0 {
		extra, err = binWalls(ms1MZs, cfg, n<<cfg.ExtraBins)
		if err != nil {
			return nil, err
		}
	}
	return kaufmann(walls, extra, cfg.Layout, cfg.ExtraBins), nil
}

func binWalls(ms1MZs []float64, cfg Config, n int) ([]float64, error) {
	lo, hi := cfg.Range.Lower, cfg.Range.Upper
	width := hi - lo
	walls := make([]float64, n+1)

	switch cfg.WindowType {
	case Even:
		walls[0] = lo
		for i := 1; i <= n; i++ {
			walls[i] = lo + float64(i)/float64(n)*width
		}
	case Percentile:
		if len(ms1MZs) == 0 {
			return nil, fmt.Errorf("percentile windows need a non-empty ms1 scan")
		}
		sorted := append([]float64(nil), ms1MZs...)
		sort.Float64s(sorted)
		for i := 0; i <= n; i++ {
			walls[i] = percentile(sorted, float64(i)/float64(n))
		}
	}

	walls[0] -= cfg.RangeSlack * width
	walls[n] += cfg.RangeSlack * width
	return walls, nil
}

// percentile linearly interpolates between closest ranks of sorted data;
// q is in [0, 1].
func percentile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	i := int(pos)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

func window(walls []float64, from, to int) core.Window {
	return core.Window{Lower: walls[from], Upper: walls[to]}
}

func single(windows ...core.Window) core.WindowSet {
	return core.WindowSet{windows}
}

// kaufmann builds the scan locations of the nested or tree layout: a set of
// wide outer windows followed by interleaved inner windows that split them.
func kaufmann(walls, extra []float64, layout Layout, extraBins int) []core.WindowSet {
	var locations []core.WindowSet
	inner := 3
	if layout == Nested {
		inner = 4
		for i := 0; i < 8; i++ {
			locations = append(locations, single(window(walls, i*8, 8+i*8)))
		}
	} else {
		locations = append(locations,
			single(window(walls, 0, 32)),
			single(window(walls, 32, 64)),
			single(window(walls, 16, 48)),
			single(window(walls, 8, 24), window(walls, 40, 56)),
		)
	}

	internal := make([][]core.Window, inner+extraBins)
	for i := 0; i < 4; i++ {
		o := i * 16
		internal[0] = append(internal[0], window(walls, 4+o, 12+o))
		internal[1] = append(internal[1], window(walls, 2+o, 6+o), window(walls, 10+o, 14+o))
		internal[2] = append(internal[2], window(walls, 1+o, 3+o), window(walls, 9+o, 11+o))
		if layout == Nested {
			internal[3] = append(internal[3], window(walls, 5+o, 7+o), window(walls, 13+o, 15+o))
		} else {
			internal[2] = append(internal[2], window(walls, 5+o, 7+o), window(walls, 13+o, 15+o))
		}
	}

	for j := 0; j < extraBins; j++ {
		step := (1 << extraBins) >> j
		for i := 0; i < KaufmannBins<<j; i++ {
			internal[inner+j] = append(internal[inner+j], window(extra, i*step, step/2+i*step))
		}
	}

	for _, w := range internal {
		locations = append(locations, single(w...))
	}
	return locations
}
