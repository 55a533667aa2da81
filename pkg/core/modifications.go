package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based position; -1 for N-term
	Name     string // e.g. "Carbamidomethyl", "Oxidation"
}

// ModDatabase maps modification names to mass shifts. Library spectra name
// their modifications; the neutral mass of the precursor needs the shift.
type ModDatabase struct {
	mods map[string]float64
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{mods: make(map[string]float64)}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift[,aa])
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
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
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		massStr := strings.TrimSpace(parts[1])
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}
		db.mods[strings.TrimSpace(parts[0])] = mass
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}
	return nil
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// ParseModString parses "Name@C2;15.994915@M8" style lists. Each entry is
// either a registered name or a literal mass shift.
func (db *ModDatabase) ParseModString(modStr string) ([]Modification, error) {
	var mods []Modification
	for _, part := range strings.Split(modStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		nameOrMass, posStr, ok := strings.Cut(part, "@")
		if !ok {
			return nil, fmt.Errorf("invalid modification format '%s', expected 'name@position'", part)
		}

		mass, err := strconv.ParseFloat(nameOrMass, 64)
		if err != nil {
			var found bool
			if mass, found = db.GetMass(nameOrMass); !found {
				return nil, fmt.Errorf("unknown modification '%s'", nameOrMass)
			}
		}

		position, err := parsePosition(posStr)
		if err != nil {
			return nil, fmt.Errorf("invalid position '%s': %w", posStr, err)
		}

		mods = append(mods, Modification{Mass: mass, Position: position, Name: nameOrMass})
	}
	return mods, nil
}

// parsePosition accepts "2", "C2" or "R-1" and returns a 0-based index.
func parsePosition(posStr string) (int, error) {
	posStr = strings.TrimSpace(posStr)
	if strings.HasSuffix(posStr, "-1") {
		return -1, nil
	}

	pos, err := strconv.Atoi(strings.TrimLeft(posStr, "ACDEFGHIKLMNPQRSTVWY"))
	if err != nil {
		return 0, fmt.Errorf("invalid position number: %w", err)
	}
	if pos > 0 {
		pos--
	}
	return pos, nil
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common unimod entries
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()
	db.Add("Acetyl", 42.010565)
	db.Add("Amidated", -0.984016)
	db.Add("Carbamidomethyl", 57.021464)
	db.Add("Carbamyl", 43.005814)
	db.Add("Deamidated", 0.984016)
	db.Add("Oxidation", 15.994915)
	db.Add("Phospho", 79.966331)
	db.Add("Methyl", 14.01565)
	db.Add("Dimethyl", 28.0313)
	db.Add("Gln->pyro-Glu", -17.026549)
	db.Add("Glu->pyro-Glu", -18.010565)
	db.Add("TMT", 229.162932)
	db.Add("TMT_Pro", 304.207146)
	db.Add("TMTPro", 304.207146)
	db.Add("iTRAQ4plex", 144.102063)
	return db
}
