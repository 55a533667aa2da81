// Package sqlite provides SQLite database writing for simulated runs
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/environment"
	"github.com/ChrisMcGann/MSSim/pkg/filter"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Schema version written to HeaderTable
	schemaVersion = 1
)

// Option configures a Writer.
type Option func(*Writer)

// WithPeakFilter filters scan peaks before they are stored. Fragmentation
// events are stored unfiltered.
func WithPeakFilter(cfg filter.Config) Option {
	return func(w *Writer) { w.peaks = cfg }
}

// WithDescription sets the HeaderTable description.
func WithDescription(desc string) Option {
	return func(w *Writer) { w.description = desc }
}

// Writer stores simulated runs in a SQLite database. It implements
// environment.Serializer.
type Writer struct {
	db          *sql.DB
	outputPath  string
	peaks       filter.Config
	description string
	runs        int
}

var _ environment.Serializer = (*Writer)(nil)

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string, opts ...Option) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.peaks.Validate(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS RunTable (
		RunId TEXT PRIMARY KEY,
		Controller TEXT,
		MinTime DOUBLE,
		MaxTime DOUBLE,
		NumScans INTEGER,
		Error TEXT,
		CreationDate TEXT
	);

	CREATE TABLE IF NOT EXISTS ScanTable (
		RunId TEXT REFERENCES RunTable(RunId),
		ScanId INTEGER,
		MSLevel INTEGER,
		RetentionTime DOUBLE,
		Duration DOUBLE,
		PrecursorMass DOUBLE,
		PrecursorIntensity DOUBLE,
		PrecursorCharge INTEGER,
		PrecursorScanId INTEGER,
		IsolationWidth DOUBLE,
		IsolationWindows TEXT,
		CollisionEnergy DOUBLE,
		Polarity TEXT,
		FirstMass DOUBLE,
		LastMass DOUBLE,
		NumPeaks INTEGER,
		blobMass BLOB,
		blobIntensity BLOB,
		PRIMARY KEY (RunId, ScanId)
	);

	CREATE TABLE IF NOT EXISTS PrecursorTable (
		RunId TEXT REFERENCES RunTable(RunId),
		PrecursorId INTEGER,
		SourceScanId INTEGER,
		PrecursorMass DOUBLE,
		PrecursorIntensity DOUBLE,
		PrecursorCharge INTEGER,
		ScanId INTEGER
	);

	CREATE TABLE IF NOT EXISTS FragmentationTable (
		RunId TEXT REFERENCES RunTable(RunId),
		EventId INTEGER,
		Chemical TEXT,
		RetentionTime DOUBLE,
		MSLevel INTEGER,
		ScanId INTEGER,
		blobMass BLOB,
		blobIntensity BLOB
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT,
		NumRuns INTEGER
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// WriteRun writes one run in a single transaction.
func (w *Writer) WriteRun(out *environment.Output) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var runErr any
	if out.Err != nil {
		runErr = out.Err.Error()
	}
	numScans := 0
	if out.Scans != nil {
		numScans = out.Scans.Len()
	}
	_, err = tx.Exec(`
		INSERT INTO RunTable (RunId, Controller, MinTime, MaxTime, NumScans, Error, CreationDate)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, out.RunID, out.Controller, out.MinTime, out.MaxTime, numScans, runErr, time.Now().Format(headerDateFormat))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if out.Scans != nil {
		if err := w.writeScans(tx, out); err != nil {
			return err
		}
	}
	if err := w.writePrecursors(tx, out); err != nil {
		return err
	}
	if err := w.writeEvents(tx, out); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", out.RunID, err)
	}
	w.runs++
	return nil
}

func (w *Writer) writeScans(tx *sql.Tx, out *environment.Output) error {
	stmt, err := tx.Prepare(`
		INSERT INTO ScanTable (
			RunId, ScanId, MSLevel, RetentionTime, Duration,
			PrecursorMass, PrecursorIntensity, PrecursorCharge, PrecursorScanId,
			IsolationWidth, IsolationWindows, CollisionEnergy, Polarity,
			FirstMass, LastMass, NumPeaks, blobMass, blobIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare scan statement: %w", err)
	}
	defer stmt.Close()

	for _, scan := range out.Scans.All() {
		s := w.peaks.Scan(scan)

		// Handle optional duration
		var duration any
		if s.Duration != nil {
			duration = *s.Duration
		}

		var pMass, pIntensity, pCharge, pScan any
		if s.Parent != nil {
			pMass, pIntensity, pCharge, pScan = s.Parent.MZ, s.Parent.Intensity, s.Parent.Charge, s.Parent.ScanID
		}

		var width, windows, ce, polarity, first, last any
		if p := s.Params; p != nil {
			width, ce, polarity, first, last = p.IsolationWidth, p.CollisionEnergy, string(p.Polarity), p.FirstMass, p.LastMass
			if p.MSLevel > 1 {
				windows = encodeWindows(p.Windows())
			}
		}

		_, err := stmt.Exec(
			out.RunID,                    // RunId
			s.ID,                         // ScanId
			s.MSLevel,                    // MSLevel
			s.RT,                         // RetentionTime
			duration,                     // Duration
			pMass,                        // PrecursorMass
			pIntensity,                   // PrecursorIntensity
			pCharge,                      // PrecursorCharge
			pScan,                        // PrecursorScanId
			width,                        // IsolationWidth
			windows,                      // IsolationWindows
			ce,                           // CollisionEnergy
			polarity,                     // Polarity
			first,                        // FirstMass
			last,                         // LastMass
			s.NumPeaks(),                 // NumPeaks
			encodeFloat64(s.MZs),         // blobMass
			encodeFloat64(s.Intensities), // blobIntensity
		)
		if err != nil {
			return fmt.Errorf("failed to insert scan %d: %w", s.ID, err)
		}
	}
	return nil
}

func (w *Writer) writePrecursors(tx *sql.Tx, out *environment.Output) error {
	stmt, err := tx.Prepare(`
		INSERT INTO PrecursorTable (RunId, PrecursorId, SourceScanId, PrecursorMass, PrecursorIntensity, PrecursorCharge, ScanId)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare precursor statement: %w", err)
	}
	defer stmt.Close()

	for i, ps := range out.Precursors {
		p := ps.Precursor
		for _, scan := range ps.Scans {
			if _, err := stmt.Exec(out.RunID, i, p.ScanID, p.MZ, p.Intensity, p.Charge, scan.ID); err != nil {
				return fmt.Errorf("failed to insert precursor %d: %w", i, err)
			}
		}
	}
	return nil
}

func (w *Writer) writeEvents(tx *sql.Tx, out *environment.Output) error {
	stmt, err := tx.Prepare(`
		INSERT INTO FragmentationTable (RunId, EventId, Chemical, RetentionTime, MSLevel, ScanId, blobMass, blobIntensity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare fragmentation statement: %w", err)
	}
	defer stmt.Close()

	for i, ev := range out.FragmentationEvents {
		mzs := make([]float64, len(ev.Peaks))
		intensities := make([]float64, len(ev.Peaks))
		for j, p := range ev.Peaks {
			mzs[j] = p.MZ
			intensities[j] = p.Intensity
		}
		if _, err := stmt.Exec(out.RunID, i, ev.Chemical, ev.RT, ev.MSLevel, ev.ScanID, encodeFloat64(mzs), encodeFloat64(intensities)); err != nil {
			return fmt.Errorf("failed to insert fragmentation event %d: %w", i, err)
		}
	}
	return nil
}

// encodeFloat64 encodes values as a little-endian float64 blob
func encodeFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64 decodes a blob written by the writer.
func DecodeFloat64(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(blob))
	}
	values := make([]float64, len(blob)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return values, nil
}

// encodeWindows renders "lo-hi,lo-hi;lo-hi", one group per ms level
func encodeWindows(ws core.WindowSet) string {
	levels := make([]string, len(ws))
	for i, level := range ws {
		parts := make([]string, len(level))
		for j, win := range level {
			parts[j] = fmt.Sprintf("%.6f-%.6f", win.Lower, win.Upper)
		}
		levels[i] = strings.Join(parts, ",")
	}
	return strings.Join(levels, ";")
}

// Finalize writes the header table and closes the database
func (w *Writer) Finalize() error {
	now := time.Now().Format(headerDateFormat)
	_, err := w.db.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description, NumRuns)
		VALUES (?, ?, ?, ?, ?)
	`, schemaVersion, now, now, w.description, w.runs)
	if err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
