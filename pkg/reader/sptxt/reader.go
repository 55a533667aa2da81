// Package sptxt provides streaming readers for SPTXT (SpectraST) format spectral libraries
package sptxt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/MSSim/pkg/chem"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/filter"
	"github.com/ChrisMcGann/MSSim/pkg/reader"
)

// Reader provides streaming access to SPTXT format files
type Reader struct {
	scanner     *bufio.Scanner
	modDB       *core.ModDatabase
	lineNum     int
	currentSpec *core.LibrarySpectrum
	err         error
}

// NewReader creates a new SPTXT reader
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

// readSpectrum reads a single spectrum entry from the SPTXT file
func (r *Reader) readSpectrum() (*core.LibrarySpectrum, error) {
	spec := &core.LibrarySpectrum{Peaks: []core.Peak{}}

	var numPeaks int
	started := false
	inPeaks := false
	peaksRead := 0

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Library preamble
		if strings.HasPrefix(line, "###") {
			continue
		}
		if line == "" {
			if inPeaks {
				return nil, fmt.Errorf("line %d: expected %d peaks, got %d", r.lineNum, numPeaks, peaksRead)
			}
			continue
		}

		if inPeaks {
			peak, err := parsePeak(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			spec.Peaks = append(spec.Peaks, peak)
			peaksRead++

			if peaksRead >= numPeaks {
				return spec, nil
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected 'Key: value', got '%s'", r.lineNum, line)
		}
		value = strings.TrimSpace(value)
		started = true

		switch key {
		case "Name":
			if err := r.parseName(spec, value); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
		case "PrecursorMZ":
			mz, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid precursor m/z: %w", r.lineNum, err)
			}
			spec.PrecursorMZ = mz
		case "Comment":
			r.parseComment(spec, value)
		case "NumPeaks":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
			}
			numPeaks = n
			if numPeaks == 0 {
				return spec, nil
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
	if started {
		return nil, fmt.Errorf("line %d: entry without 'NumPeaks'", r.lineNum)
	}

	return nil, io.EOF
}

// parseName extracts sequence, charge, and modifications from Name field
// Format: "n[305]AAAAQDEITGDGTTTVVC[160]LVGELLR/3"
func (r *Reader) parseName(spec *core.LibrarySpectrum, name string) error {
	rawSeq, chargeStr, ok := strings.Cut(name, "/")
	if !ok {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}
	spec.Charge = charge

	sequence, mods, err := parseInlineModifications(rawSeq)
	if err != nil {
		return fmt.Errorf("failed to parse modifications from sequence: %w", err)
	}

	spec.Sequence = sequence
	spec.Modifications = mods
	return nil
}

var inlineMod = regexp.MustCompile(`([a-zA-Z])\[(\d+(?:\.\d+)?)\]`)

// parseInlineModifications turns bracketed masses into mass shifts. SpectraST
// writes the whole modified residue mass, or the N-terminal group mass for n[...].
func parseInlineModifications(rawSeq string) (string, []core.Modification, error) {
	var sequence strings.Builder
	var mods []core.Modification

	lastIdx := 0
	for _, match := range inlineMod.FindAllStringSubmatchIndex(rawSeq, -1) {
		sequence.WriteString(rawSeq[lastIdx:match[0]])

		aa := rawSeq[match[2]:match[3]]
		modStr := rawSeq[match[4]:match[5]]
		mass, err := strconv.ParseFloat(modStr, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid modification mass '%s': %w", modStr, err)
		}

		if aa == "n" {
			mods = append(mods, core.Modification{Mass: mass - core.MassH, Position: -1, Name: modStr})
		} else {
			residue, ok := core.ResidueMass(rune(aa[0]))
			if !ok {
				return "", nil, fmt.Errorf("unknown residue '%s'", aa)
			}
			mods = append(mods, core.Modification{Mass: mass - residue, Position: sequence.Len(), Name: modStr})
			sequence.WriteString(aa)
		}

		lastIdx = match[1]
	}

	sequence.WriteString(rawSeq[lastIdx:])
	return sequence.String(), mods, nil
}

// parseComment extracts metadata from Comment field
func (r *Reader) parseComment(spec *core.LibrarySpectrum, comment string) {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "Parent":
			if spec.PrecursorMZ == 0 {
				if mz, err := strconv.ParseFloat(value, 64); err == nil {
					spec.PrecursorMZ = mz
				}
			}

		case "RetentionTime":
			// median,min,max
			first, _, _ := strings.Cut(value, ",")
			if rt, err := strconv.ParseFloat(first, 64); err == nil {
				spec.RetentionTime = &rt
			}

		case "Mods":
			r.parseMods(spec, value)
		}
	}
}

// parseMods names the inline modifications from "count/pos,AA,Name/..." and
// replaces their rounded masses with the database value when it is known.
func (r *Reader) parseMods(spec *core.LibrarySpectrum, modsStr string) {
	count, rest, ok := strings.Cut(modsStr, "/")
	if !ok || count == "0" {
		return
	}

	for _, group := range strings.Split(rest, "/") {
		parts := strings.Split(group, ",")
		if len(parts) < 3 {
			continue
		}
		pos, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		if parts[1] == "n" {
			pos = -1
		}
		name := parts[2]
		mass, known := r.modDB.GetMass(name)

		found := false
		for i := range spec.Modifications {
			if spec.Modifications[i].Position == pos {
				spec.Modifications[i].Name = name
				if known {
					spec.Modifications[i].Mass = mass
				}
				found = true
				break
			}
		}
		if !found && known {
			spec.Modifications = append(spec.Modifications, core.Modification{Mass: mass, Position: pos, Name: name})
		}
	}
}

// parsePeak parses a single peak line
// Format: "mz\tintensity\tannotation\t..."
func parsePeak(line string) (core.Peak, error) {
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
		return nil, fmt.Errorf("failed to read SPTXT library: %w", err)
	}
	return chemicals, nil
}

// ChemicalsFile opens path and calls Chemicals.
func ChemicalsFile(path string, modDB *core.ModDatabase, peaks filter.Config, opts chem.LibraryOptions) ([]*chem.Chemical, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPTXT library: %w", err)
	}
	defer f.Close()
	return Chemicals(f, modDB, peaks, opts)
}
