package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Adduct describes how a neutral mass M is turned into an observed m/z:
// mz = (Multiplier*M + Shift) / |Charge|.
type Adduct struct {
	Name       string
	Multiplier float64
	Shift      float64
	Charge     int
}

// Transform maps a neutral mass to the adduct's m/z.
func (a Adduct) Transform(mass float64) float64 {
	return (a.Multiplier*mass + a.Shift) / math.Abs(float64(a.Charge))
}

// Inverse maps an observed m/z back to the neutral mass.
func (a Adduct) Inverse(mz float64) float64 {
	return (mz*math.Abs(float64(a.Charge)) - a.Shift) / a.Multiplier
}

// Polarity returns the ionisation mode the adduct is observed in.
func (a Adduct) Polarity() Polarity {
	if a.Charge < 0 {
		return Negative
	}
	return Positive
}

// AdductDatabase stores adduct definitions by name
type AdductDatabase struct {
	adducts map[string]Adduct
}

// NewAdductDatabase creates an empty adduct database
func NewAdductDatabase() *AdductDatabase {
	return &AdductDatabase{
		adducts: make(map[string]Adduct),
	}
}

// LoadFromCSV loads adducts from a CSV file (format: name,multiplier,shift,charge).
// The first line is a header and is skipped.
func (db *AdductDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			return fmt.Errorf("line %d: invalid format, expected 4 comma-separated fields", lineNum)
		}

		name := strings.TrimSpace(parts[0])
		mult, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid multiplier '%s': %w", lineNum, parts[1], err)
		}
		shift, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass shift '%s': %w", lineNum, parts[2], err)
		}
		charge, err := strconv.Atoi(strings.TrimSpace(parts[3]))
		if err != nil {
			return fmt.Errorf("line %d: invalid charge '%s': %w", lineNum, parts[3], err)
		}
		if charge == 0 || mult == 0 {
			return fmt.Errorf("line %d: adduct %s needs a non-zero charge and multiplier", lineNum, name)
		}

		db.Add(Adduct{Name: name, Multiplier: mult, Shift: shift, Charge: charge})
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}
	return nil
}

// Get returns the adduct registered under name
func (db *AdductDatabase) Get(name string) (Adduct, bool) {
	a, ok := db.adducts[name]
	return a, ok
}

// Add adds or updates an adduct
func (db *AdductDatabase) Add(a Adduct) {
	db.adducts[a.Name] = a
}

// Names returns the registered adduct names in sorted order.
func (db *AdductDatabase) Names() []string {
	names := make([]string, 0, len(db.adducts))
	for name := range db.adducts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProtonatedAdduct returns the [M+zH]z+ (or [M-zH]z-) adduct for a charge state.
func ProtonatedAdduct(charge int) Adduct {
	name := "M+H"
	switch {
	case charge == -1:
		name = "M-H"
	case charge > 1:
		name = fmt.Sprintf("M+%dH", charge)
	case charge < -1:
		name = fmt.Sprintf("M-%dH", -charge)
	}
	return Adduct{Name: name, Multiplier: 1, Shift: float64(charge) * ProtonMass, Charge: charge}
}

// DefaultAdductDatabase returns an AdductDatabase pre-loaded with common ESI adducts
func DefaultAdductDatabase() *AdductDatabase {
	db := NewAdductDatabase()

	// positive mode
	db.Add(ProtonatedAdduct(1))
	db.Add(ProtonatedAdduct(2))
	db.Add(ProtonatedAdduct(3))
	db.Add(Adduct{Name: "M+NH4", Multiplier: 1, Shift: 18.033823, Charge: 1})
	db.Add(Adduct{Name: "M+Na", Multiplier: 1, Shift: 22.989218, Charge: 1})
	db.Add(Adduct{Name: "M+K", Multiplier: 1, Shift: 38.963158, Charge: 1})
	db.Add(Adduct{Name: "M+CH3OH+H", Multiplier: 1, Shift: 33.033489, Charge: 1})
	db.Add(Adduct{Name: "M+ACN+H", Multiplier: 1, Shift: 42.033823, Charge: 1})
	db.Add(Adduct{Name: "M+2Na-H", Multiplier: 1, Shift: 44.971160, Charge: 1})
	db.Add(Adduct{Name: "M+ACN+Na", Multiplier: 1, Shift: 64.015765, Charge: 1})
	db.Add(Adduct{Name: "2M+H", Multiplier: 2, Shift: ProtonMass, Charge: 1})
	db.Add(Adduct{Name: "2M+Na", Multiplier: 2, Shift: 22.989218, Charge: 1})

	// negative mode
	db.Add(ProtonatedAdduct(-1))
	db.Add(ProtonatedAdduct(-2))
	db.Add(Adduct{Name: "M+Cl", Multiplier: 1, Shift: 34.969402, Charge: -1})
	db.Add(Adduct{Name: "M+FA-H", Multiplier: 1, Shift: 44.998201, Charge: -1})
	db.Add(Adduct{Name: "M+Na-2H", Multiplier: 1, Shift: 20.974666, Charge: -1})
	db.Add(Adduct{Name: "2M-H", Multiplier: 2, Shift: -ProtonMass, Charge: -1})

	return db
}
