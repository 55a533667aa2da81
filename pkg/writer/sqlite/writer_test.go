package sqlite

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MSSim/pkg/controller"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/environment"
	"github.com/ChrisMcGann/MSSim/pkg/filter"
)

func testOutput() *environment.Output {
	log := controller.NewScanLog()

	ms1 := core.NewScan(0, []float64{300, 100, 200}, []float64{30, 10, 20}, 1, 1.0, core.DefaultMS1Parameters(core.Positive))
	ms1.SetDuration(0.5)
	log.Add(ms1)

	precursor := &core.Precursor{MZ: 200, Intensity: 20, Charge: 1, ScanID: 0}
	ms2 := core.NewScan(1, []float64{50, 80}, []float64{5, 8}, 2, 1.5, &core.ScanParameters{
		MSLevel:        2,
		Precursor:      precursor,
		IsolationWidth: 1,
		Polarity:       core.Positive,
	})
	log.Add(ms2)

	return &environment.Output{
		RunID:      "run-a",
		Controller: "TopN",
		MinTime:    0,
		MaxTime:    10,
		Scans:      log,
		Precursors: []controller.PrecursorScans{{Precursor: precursor, Scans: []*core.Scan{ms2}}},
		FragmentationEvents: []core.FragmentationEvent{
			{Chemical: "A", RT: 1.5, MSLevel: 2, ScanID: 1, Peaks: []core.Peak{{MZ: 50, Intensity: 5}}},
		},
		Err: errors.New("no scan duration samples"),
	}
}

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriteRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")
	w, err := NewWriter(path, WithDescription("test"))
	require.NoError(t, err)
	require.NoError(t, w.WriteRun(testOutput()))
	require.NoError(t, w.Close())

	db := openDB(t, path)

	var controllerName, runErr string
	var numScans int
	require.NoError(t, db.QueryRow(`SELECT Controller, NumScans, Error FROM RunTable WHERE RunId = ?`, "run-a").Scan(&controllerName, &numScans, &runErr))
	assert.Equal(t, "TopN", controllerName)
	assert.Equal(t, 2, numScans)
	assert.Equal(t, "no scan duration samples", runErr)

	var mzBlob, intBlob []byte
	var duration sql.NullFloat64
	require.NoError(t, db.QueryRow(`SELECT Duration, blobMass, blobIntensity FROM ScanTable WHERE RunId = ? AND ScanId = 0`, "run-a").Scan(&duration, &mzBlob, &intBlob))
	assert.True(t, duration.Valid)
	assert.Equal(t, 0.5, duration.Float64)
	mzs, err := DecodeFloat64(mzBlob)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200, 300}, mzs)
	intensities, err := DecodeFloat64(intBlob)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, intensities)

	var pMass float64
	var windows string
	require.NoError(t, db.QueryRow(`SELECT Duration, PrecursorMass, IsolationWindows FROM ScanTable WHERE ScanId = 1`).Scan(&duration, &pMass, &windows))
	assert.False(t, duration.Valid, "last scan has no duration")
	assert.Equal(t, 200.0, pMass)
	assert.Equal(t, "199.500000-200.500000", windows)

	var sourceScan, scanID int
	require.NoError(t, db.QueryRow(`SELECT SourceScanId, ScanId FROM PrecursorTable WHERE RunId = ?`, "run-a").Scan(&sourceScan, &scanID))
	assert.Equal(t, 0, sourceScan)
	assert.Equal(t, 1, scanID)

	var chemical string
	require.NoError(t, db.QueryRow(`SELECT Chemical FROM FragmentationTable`).Scan(&chemical))
	assert.Equal(t, "A", chemical)

	var version, runs int
	var desc string
	require.NoError(t, db.QueryRow(`SELECT version, Description, NumRuns FROM HeaderTable`).Scan(&version, &desc, &runs))
	assert.Equal(t, schemaVersion, version)
	assert.Equal(t, "test", desc)
	assert.Equal(t, 1, runs)
}

func TestWriteRunFiltersPeaks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")
	w, err := NewWriter(path, WithPeakFilter(filter.Config{TopN: 1}))
	require.NoError(t, err)
	require.NoError(t, w.WriteRun(testOutput()))
	require.NoError(t, w.Close())

	db := openDB(t, path)
	var n int
	var blob []byte
	require.NoError(t, db.QueryRow(`SELECT NumPeaks, blobMass FROM ScanTable WHERE ScanId = 0`).Scan(&n, &blob))
	assert.Equal(t, 1, n)
	mzs, err := DecodeFloat64(blob)
	require.NoError(t, err)
	assert.Equal(t, []float64{300}, mzs)
}

func TestWriteRunDuplicateIDRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRun(testOutput()))
	assert.Error(t, w.WriteRun(testOutput()))
	require.NoError(t, w.Close())

	db := openDB(t, path)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM ScanTable`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestNewWriterRejectsBadFilter(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "run.db"), WithPeakFilter(filter.Config{TopN: -1}))
	assert.Error(t, err)
}

func TestDecodeFloat64(t *testing.T) {
	values := []float64{1.5, -2, 1e9}
	got, err := DecodeFloat64(encodeFloat64(values))
	require.NoError(t, err)
	assert.Equal(t, values, got)

	_, err = DecodeFloat64([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestEncodeWindows(t *testing.T) {
	ws := core.WindowSet{
		{{Lower: 100, Upper: 200}, {Lower: 300, Upper: 400}},
		{{Lower: 50, Upper: 60}},
	}
	assert.Equal(t, "100.000000-200.000000,300.000000-400.000000;50.000000-60.000000", encodeWindows(ws))
}
