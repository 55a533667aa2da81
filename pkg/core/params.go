package core

import (
	"fmt"
	"strings"
)

// Polarity is the ionisation mode of the instrument.
type Polarity string

const (
	Positive Polarity = "positive"
	Negative Polarity = "negative"
)

// ParsePolarity accepts "positive"/"negative" (or "+"/"-").
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "pos", "+":
		return Positive, nil
	case "negative", "neg", "-":
		return Negative, nil
	}
	return "", fmt.Errorf("invalid ionisation mode '%s', must be positive or negative", s)
}

// PrecursorCharge is the charge assumed for selected precursors: all ions
// are treated as singly charged.
func (p Polarity) PrecursorCharge() int {
	if p == Negative {
		return -1
	}
	return 1
}

// Default acquisition settings.
const (
	DefaultFirstMass       = 0.0
	DefaultLastMass        = 1000.0
	DefaultCollisionEnergy = 25.0
)

// Window is an isolation window (Lower, Upper] on the m/z axis.
type Window struct {
	Lower float64
	Upper float64
}

// Contains reports whether mz lies in (Lower, Upper].
func (w Window) Contains(mz float64) bool {
	return w.Lower < mz && mz <= w.Upper
}

// Center returns the midpoint of the window.
func (w Window) Center() float64 {
	return (w.Lower + w.Upper) / 2
}

// WindowSet holds one list of isolation windows per fragmented level: entry 0
// selects ions from MS1, entry 1 from MS2, and so on.
type WindowSet [][]Window

// Precursor is the ion selected for fragmentation.
type Precursor struct {
	MZ        float64
	Intensity float64
	Charge    int
	ScanID    int
}

func (p *Precursor) String() string {
	return fmt.Sprintf("Precursor mz %f intensity %f charge %d scan_id %d", p.MZ, p.Intensity, p.Charge, p.ScanID)
}

// ScanParameters instructs the scan engine how to acquire one scan. Controllers
// build them; the engine and serializer only read them.
type ScanParameters struct {
	MSLevel int

	// DDA requests carry a precursor and a full isolation width; DIA requests
	// set IsolationWindows instead.
	Precursor        *Precursor
	IsolationWidth   float64
	IsolationWindows WindowSet

	// Dynamic exclusion: m/z tolerance in ppm and exclusion time in seconds.
	DEWMZTol float64
	DEWRTTol float64

	CollisionEnergy float64
	Polarity        Polarity
	FirstMass       float64
	LastMass        float64

	// CurrentTopN and DEWRTTol become the engine's duration key when
	// ScheduleSet is true, zero values included. Only schedule-aware
	// controllers set it.
	CurrentTopN int
	ScheduleSet bool
}

// NewMS1Parameters returns a full-scan request over [first, last].
func NewMS1Parameters(polarity Polarity, first, last float64) *ScanParameters {
	return &ScanParameters{
		MSLevel:         1,
		CollisionEnergy: DefaultCollisionEnergy,
		Polarity:        polarity,
		FirstMass:       first,
		LastMass:        last,
	}
}

// DefaultMS1Parameters returns a full-range MS1 request.
func DefaultMS1Parameters(polarity Polarity) *ScanParameters {
	return NewMS1Parameters(polarity, DefaultFirstMass, DefaultLastMass)
}

// Windows resolves the isolation windows of the request. MS1 requests cover
// their mass range. MSN requests use explicit windows when present and
// otherwise centre a window of IsolationWidth on the precursor. An MSN request
// with neither is a programming error and panics.
func (p *ScanParameters) Windows() WindowSet {
	if p.MSLevel == 1 {
		return WindowSet{{{Lower: p.FirstMass, Upper: p.LastMass}}}
	}
	if len(p.IsolationWindows) > 0 {
		return p.IsolationWindows
	}
	if p.Precursor == nil || p.IsolationWidth <= 0 {
		panic(fmt.Sprintf("core: MS%d scan request has no precursor or isolation windows", p.MSLevel))
	}
	half := p.IsolationWidth / 2
	return WindowSet{{{Lower: p.Precursor.MZ - half, Upper: p.Precursor.MZ + half}}}
}

// Equal compares two requests by value.
func (p *ScanParameters) Equal(other *ScanParameters) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.MSLevel != other.MSLevel ||
		p.IsolationWidth != other.IsolationWidth ||
		p.DEWMZTol != other.DEWMZTol ||
		p.DEWRTTol != other.DEWRTTol ||
		p.CollisionEnergy != other.CollisionEnergy ||
		p.Polarity != other.Polarity ||
		p.FirstMass != other.FirstMass ||
		p.LastMass != other.LastMass ||
		p.CurrentTopN != other.CurrentTopN ||
		p.ScheduleSet != other.ScheduleSet {
		return false
	}
	if (p.Precursor == nil) != (other.Precursor == nil) {
		return false
	}
	if p.Precursor != nil && *p.Precursor != *other.Precursor {
		return false
	}
	if len(p.IsolationWindows) != len(other.IsolationWindows) {
		return false
	}
	for i := range p.IsolationWindows {
		if len(p.IsolationWindows[i]) != len(other.IsolationWindows[i]) {
			return false
		}
		for j := range p.IsolationWindows[i] {
			if p.IsolationWindows[i][j] != other.IsolationWindows[i][j] {
				return false
			}
		}
	}
	return true
}

func (p *ScanParameters) String() string {
	if p.Precursor != nil {
		return fmt.Sprintf("ScanParameters ms_level=%d precursor=%.4f width=%.2f", p.MSLevel, p.Precursor.MZ, p.IsolationWidth)
	}
	return fmt.Sprintf("ScanParameters ms_level=%d windows=%v", p.MSLevel, p.IsolationWindows)
}
