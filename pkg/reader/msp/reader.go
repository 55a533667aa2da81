// Package msp provides streaming readers for MSP format spectral libraries
package msp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/MSSim/pkg/chem"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/filter"
	"github.com/ChrisMcGann/MSSim/pkg/reader"
)

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner     *bufio.Scanner
	modDB       *core.ModDatabase
	lineNum     int
	currentSpec *core.LibrarySpectrum
	err         error
}

// NewReader creates a new MSP reader
func NewReader(r io.Reader, modDB *core.ModDatabase) *Reader {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{
		scanner: scanner,
		modDB:   modDB,
	}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.LibrarySpectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// entry accumulates one MSP record. Mods is only used when no ModString is
// present.
type entry struct {
	spec      *core.LibrarySpectrum
	started   bool
	modString []core.Modification
	mods      []core.Modification
}

func (e *entry) finish() *core.LibrarySpectrum {
	if e.modString != nil {
		e.spec.Modifications = e.modString
	} else {
		e.spec.Modifications = e.mods
	}
	return e.spec
}

// readSpectrum reads a single spectrum entry from the MSP file
func (r *Reader) readSpectrum() (*core.LibrarySpectrum, error) {
	e := &entry{spec: &core.LibrarySpectrum{Peaks: []core.Peak{}}}

	var numPeaks int
	inPeaks := false
	peaksRead := 0

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip empty lines between entries
		if line == "" {
			if inPeaks {
				return nil, fmt.Errorf("line %d: expected %d peaks, got %d", r.lineNum, numPeaks, peaksRead)
			}
			continue
		}

		if inPeaks {
			peak, err := r.parsePeak(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			e.spec.Peaks = append(e.spec.Peaks, peak)
			peaksRead++

			if peaksRead >= numPeaks {
				return e.finish(), nil
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected 'Key: value', got '%s'", r.lineNum, line)
		}
		value = strings.TrimSpace(value)
		e.started = true

		switch strings.ToLower(key) {
		case "name":
			r.parseName(e.spec, value)
		case "charge":
			charge, err := parseCharge(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			e.spec.Charge = charge
		case "precursormz", "precursor_mz":
			mz, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid precursor m/z: %w", r.lineNum, err)
			}
			e.spec.PrecursorMZ = mz
		case "retentiontime", "rt":
			rt, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid retention time: %w", r.lineNum, err)
			}
			e.spec.RetentionTime = &rt
		case "comment":
			if err := r.parseComment(e, value); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
		case "num peaks":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
			}
			numPeaks = n
			if numPeaks == 0 {
				return e.finish(), nil
			}
			inPeaks = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if inPeaks {
		return nil, fmt.Errorf("line %d: unexpected end of file, expected %d peaks, got %d", r.lineNum, numPeaks, peaksRead)
	}
	if e.started {
		return nil, fmt.Errorf("line %d: entry without 'Num peaks'", r.lineNum)
	}

	return nil, io.EOF
}

// parseName extracts sequence and charge from "SEQUENCE/CHARGE" names. Any
// other name is kept verbatim as the compound name.
func (r *Reader) parseName(spec *core.LibrarySpectrum, name string) {
	seq, chargeStr, ok := strings.Cut(name, "/")
	if ok {
		if charge, err := strconv.Atoi(chargeStr); err == nil && isPeptide(seq) {
			spec.Sequence = seq
			spec.Charge = charge
			return
		}
	}
	spec.Name = name
}

func isPeptide(seq string) bool {
	if seq == "" {
		return false
	}
	for _, c := range seq {
		if !strings.ContainsRune("ACDEFGHIKLMNPQRSTVWY", c) {
			return false
		}
	}
	return true
}

// parseCharge accepts "2", "2+", "+2" and "1-".
func parseCharge(s string) (int, error) {
	s = strings.TrimSpace(s)
	sign := 1
	if strings.HasSuffix(s, "-") || strings.HasPrefix(s, "-") {
		sign = -1
	}
	n, err := strconv.Atoi(strings.Trim(s, "+-"))
	if err != nil {
		return 0, fmt.Errorf("invalid charge '%s': %w", s, err)
	}
	return sign * n, nil
}

// parseComment extracts metadata from Comment field
func (r *Reader) parseComment(e *entry, comment string) error {
	// Comment format: key=value key=value...
	// Example: Parent=414.71 Collision_energy=35 Mods=1/-1,R,TMT_Pro ModString=SEQUENCE//TMT_Pro@R-1/4 iRT=61.01

	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "Parent":
			if e.spec.PrecursorMZ == 0 {
				if mz, err := strconv.ParseFloat(value, 64); err == nil {
					e.spec.PrecursorMZ = mz
				}
			}

		case "iRT", "RetentionTime":
			if rt, err := strconv.ParseFloat(value, 64); err == nil && e.spec.RetentionTime == nil {
				e.spec.RetentionTime = &rt
			}

		case "Mods":
			e.mods = r.parseMods(value)

		case "ModString":
			mods, err := r.parseModString(value)
			if err != nil {
				return err
			}
			e.modString = mods
		}
	}

	return nil
}

// parseMods parses "count/pos,AA,Name[/pos,AA,Name...]". Unknown names are
// skipped; ModString is authoritative when present.
func (r *Reader) parseMods(modsStr string) []core.Modification {
	count, rest, ok := strings.Cut(modsStr, "/")
	if !ok || count == "0" {
		return nil
	}

	var mods []core.Modification
	for _, group := range strings.Split(rest, "/") {
		parts := strings.Split(group, ",")
		if len(parts) < 3 {
			continue
		}
		pos, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		if mass, ok := r.modDB.GetMass(parts[2]); ok {
			mods = append(mods, core.Modification{Mass: mass, Position: pos, Name: parts[2]})
		}
	}
	return mods
}

// parseModString parses "SEQUENCE//Mod@Pos;Mod@Pos/Charge"
func (r *Reader) parseModString(modString string) ([]core.Modification, error) {
	_, modPart, ok := strings.Cut(modString, "//")
	if !ok {
		return nil, nil
	}

	// Remove trailing charge info if present
	modPart, _, _ = strings.Cut(modPart, "/")

	mods, err := r.modDB.ParseModString(modPart)
	if err != nil {
		return nil, fmt.Errorf("invalid ModString '%s': %w", modString, err)
	}
	if mods == nil {
		mods = []core.Modification{}
	}
	return mods, nil
}

// parsePeak parses a single peak line (format: "mz\tintensity\t\"annotation\"")
func (r *Reader) parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	return core.Peak{MZ: mz, Intensity: intensity}, nil
}

// Chemicals reads every spectrum from r and converts it into a chemical.
func Chemicals(r io.Reader, modDB *core.ModDatabase, peaks filter.Config, opts chem.LibraryOptions) ([]*chem.Chemical, error) {
	chemicals, err := reader.Chemicals(NewReader(r, modDB), peaks, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read MSP library: %w", err)
	}
	return chemicals, nil
}

// ChemicalsFile opens path and calls Chemicals.
func ChemicalsFile(path string, modDB *core.ModDatabase, peaks filter.Config, opts chem.LibraryOptions) ([]*chem.Chemical, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MSP library: %w", err)
	}
	defer f.Close()
	return Chemicals(f, modDB, peaks, opts)
}
