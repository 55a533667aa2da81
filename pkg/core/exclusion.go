package core

import (
	"fmt"
	"math"
	"strings"
)

// ToleranceUnit selects how an m/z tolerance is interpreted.
type ToleranceUnit string

const (
	PPM    ToleranceUnit = "ppm"
	Dalton ToleranceUnit = "Da"
)

// ParseToleranceUnit accepts "ppm" or "da"/"dalton" (case-insensitive).
func ParseToleranceUnit(s string) (ToleranceUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ppm":
		return PPM, nil
	case "da", "dalton":
		return Dalton, nil
	}
	return "", fmt.Errorf("invalid tolerance unit '%s', must be ppm or Da", s)
}

// Tolerance is an m/z matching tolerance.
type Tolerance struct {
	Value float64
	Unit  ToleranceUnit
}

// Within reports whether b matches the reference m/z a:
// |a-b| <= a*tol/1e6 for ppm, |a-b| <= tol for Da.
func (t Tolerance) Within(a, b float64) bool {
	return math.Abs(a-b) <= t.Delta(a)
}

// Delta returns the absolute tolerance around a.
func (t Tolerance) Delta(a float64) float64 {
	if t.Unit == Dalton {
		return t.Value
	}
	return a * t.Value / 1e6
}

// ExclusionItem is a rectangle in (mz, rt) space that may not be selected.
type ExclusionItem struct {
	FromMZ float64
	ToMZ   float64
	FromRT float64
	ToRT   float64
}

// NewExclusionItem excludes mz ± ppm for [rt, rt+rtTol].
func NewExclusionItem(mz, ppm, rt, rtTol float64) ExclusionItem {
	return ExclusionItem{
		FromMZ: mz * (1 - ppm/1e6),
		ToMZ:   mz * (1 + ppm/1e6),
		FromRT: rt,
		ToRT:   rt + rtTol,
	}
}

// Contains reports whether (mz, rt) lies inside the rectangle, bounds included.
func (x ExclusionItem) Contains(mz, rt float64) bool {
	return x.FromMZ <= mz && mz <= x.ToMZ && x.FromRT <= rt && rt <= x.ToRT
}

func (x ExclusionItem) String() string {
	return fmt.Sprintf("ExclusionItem mz=(%f, %f) rt=(%f-%f)", x.FromMZ, x.ToMZ, x.FromRT, x.ToRT)
}

// ExclusionList is the dynamic exclusion list of a DDA controller. Checks are
// linear scans; the list only holds items from the last exclusion window.
type ExclusionList struct {
	items []ExclusionItem
}

// Add appends an item.
func (l *ExclusionList) Add(x ExclusionItem) {
	l.items = append(l.items, x)
}

// Excluding returns the first item covering (mz, rt).
func (l *ExclusionList) Excluding(mz, rt float64) (ExclusionItem, bool) {
	for _, x := range l.items {
		if x.Contains(mz, rt) {
			return x, true
		}
	}
	return ExclusionItem{}, false
}

// IsExcluded reports whether any item covers (mz, rt).
func (l *ExclusionList) IsExcluded(mz, rt float64) bool {
	_, ok := l.Excluding(mz, rt)
	return ok
}

// Prune drops every item whose upper rt bound is <= now.
func (l *ExclusionList) Prune(now float64) {
	kept := l.items[:0]
	for _, x := range l.items {
		if x.ToRT > now {
			kept = append(kept, x)
		}
	}
	l.items = kept
}

// Len returns the number of live items.
func (l *ExclusionList) Len() int {
	return len(l.items)
}

// Items returns a copy of the live items.
func (l *ExclusionList) Items() []ExclusionItem {
	return append([]ExclusionItem(nil), l.items...)
}

// Reset empties the list.
func (l *ExclusionList) Reset() {
	l.items = nil
}
