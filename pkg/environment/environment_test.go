package environment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/MSSim/pkg/chem"
	"github.com/ChrisMcGann/MSSim/pkg/controller"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/massspec"
	"github.com/ChrisMcGann/MSSim/pkg/sampler"
)

func testChemicals(t *testing.T) []*chem.Chemical {
	t.Helper()
	g, err := chem.NewGaussian(3, 30)
	require.NoError(t, err)
	c := &chem.Chemical{
		Name:         "A",
		MSLevel:      1,
		RT:           0,
		MaxIntensity: 1e6,
		Isotopes:     []chem.Isotope{{MZ: 200, Prop: 1}},
		Adducts:      []chem.AdductAbundance{{Adduct: core.ProtonatedAdduct(1), Prop: 1}},
		Chromatogram: g,
	}
	c.AddChild(&chem.Chemical{Name: "A_f", Isotopes: []chem.Isotope{{MZ: 90, Prop: 1}}, ParentMassProp: 1, PropMSNMass: 1})
	return []*chem.Chemical{c}
}

func newEngine(t *testing.T, s sampler.Sampler) *massspec.Engine {
	t.Helper()
	e, err := massspec.New(core.Positive, testChemicals(t), s, massspec.Config{})
	require.NoError(t, err)
	return e
}

// scheduled registers durations at the given schedule next to the N=0 entries.
func scheduled(n int, dew, ms1, ms2 float64) *sampler.Empirical {
	s := sampler.Fixed(ms1, ms2)
	s.Add(1, 1, n, dew, ms1)
	s.Add(1, 2, n, dew, ms1)
	s.Add(2, 1, n, dew, ms2)
	s.Add(2, 2, n, dew, ms2)
	return s
}

type recordingSerializer struct {
	out   *Output
	calls int
	err   error
}

func (r *recordingSerializer) WriteRun(out *Output) error {
	r.out = out
	r.calls++
	return r.err
}

// spy wraps a controller and records the order of callbacks.
type spy struct {
	controller.Controller
	engine *massspec.Engine
	events []string
	times  []float64
}

func (s *spy) HandleScan(scan *core.Scan) []*core.ScanParameters {
	s.events = append(s.events, "handle")
	return s.Controller.HandleScan(scan)
}

func (s *spy) UpdateStateAfterScan(scan *core.Scan) {
	s.events = append(s.events, "update")
	// the clock has already moved past the scan
	s.times = append(s.times, s.engine.Time()-scan.EndRT())
	s.Controller.UpdateStateAfterScan(scan)
}

func (s *spy) OnAcquisitionOpen()    { s.events = append(s.events, "open") }
func (s *spy) OnAcquisitionClosing() { s.events = append(s.events, "close") }

func TestRunOrdering(t *testing.T) {
	engine := newEngine(t, scheduled(1, 15, 0.5, 0.1))
	inner, err := controller.NewTopN(core.Positive, controller.TopNConfig{N: 1, IsolationWidth: 1, MZTol: 10, RTTol: 15})
	require.NoError(t, err)
	s := &spy{Controller: inner, engine: engine}

	ser := &recordingSerializer{}
	env, err := New(engine, s, 14, 16, WithSerializer(ser), WithRunID("run-1"))
	require.NoError(t, err)
	require.NoError(t, env.Run())

	require.GreaterOrEqual(t, len(s.events), 4)
	assert.Equal(t, "open", s.events[0])
	assert.Equal(t, "close", s.events[len(s.events)-1])
	for i := 1; i < len(s.events)-1; i += 2 {
		assert.Equal(t, "handle", s.events[i])
		assert.Equal(t, "update", s.events[i+1])
	}
	for _, d := range s.times {
		assert.InDelta(t, 0, d, 1e-12)
	}

	require.Equal(t, 1, ser.calls)
	out := ser.out
	assert.Equal(t, "run-1", out.RunID)
	assert.NoError(t, out.Err)
	assert.GreaterOrEqual(t, engine.Time(), 16.0)

	// MS1 then MS2 alternate: the precursor is excluded for 15 s so only
	// the first cycle fragments
	ms2 := out.Scans.Level(2)
	require.Len(t, ms2, 1)
	assert.Equal(t, 14.5, ms2[0].RT)
	require.Len(t, out.Precursors, 1)
	assert.Same(t, ms2[0], out.Precursors[0].Scans[0])
	assert.NotEmpty(t, out.FragmentationEvents)

	for _, scan := range out.Scans.All() {
		assert.NoError(t, scan.Validate())
		assert.Less(t, scan.RT, 16.0)
	}
}

func TestRunSeedsScheduleFromController(t *testing.T) {
	s := sampler.NewEmpirical(1, sampler.NoiseConfig{})
	s.Add(1, 1, 0, 0, 1)
	s.Add(1, 2, 5, 15, 0.3)
	s.Add(2, 1, 5, 15, 0.2)
	s.Add(1, 1, 5, 15, 0.6)
	engine := newEngine(t, s)

	h, err := controller.NewHybrid(core.Positive, controller.HybridConfig{
		N:              []int{5},
		IsolationWidth: []float64{1},
		MZTol:          []float64{10},
		RTTol:          []float64{15},
	})
	require.NoError(t, err)

	env, err := New(engine, h, 14, 15.5)
	require.NoError(t, err)
	require.NoError(t, env.Run())

	scans := env.Output().Scans.All()
	require.GreaterOrEqual(t, len(scans), 2)
	assert.Equal(t, 0.3, *scans[0].Duration, "duration keyed by the seeded N and DEW")
}

// queueWatch records the engine queue length after every scan.
type queueWatch struct {
	controller.Controller
	engine   *massspec.Engine
	maxQueue int
}

func (q *queueWatch) UpdateStateAfterScan(scan *core.Scan) {
	q.maxQueue = max(q.maxQueue, q.engine.QueueLen())
	q.Controller.UpdateStateAfterScan(scan)
}

// coElutingPair returns two ions 0.2 Da apart that share every isolation window.
func coElutingPair(t *testing.T) []*chem.Chemical {
	t.Helper()
	var chems []*chem.Chemical
	for i, mass := range []float64{200, 200.2} {
		g, err := chem.NewGaussian(3, 30)
		require.NoError(t, err)
		chems = append(chems, &chem.Chemical{
			Name:         fmt.Sprintf("C%d", i),
			MSLevel:      1,
			RT:           140,
			MaxIntensity: 1e6 - float64(i)*2e5,
			Isotopes:     []chem.Isotope{{MZ: mass, Prop: 1}},
			Adducts:      []chem.AdductAbundance{{Adduct: core.ProtonatedAdduct(1), Prop: 1}},
			Chromatogram: g,
		})
	}
	return chems
}

func TestRunHybridPurityScansRespectExclusion(t *testing.T) {
	tests := []struct {
		name         string
		addMS1       bool
		wantMS1      int
		wantMaxQueue int
	}{
		{"purity scans only", false, 0, 5},
		{"interleaved ms1", true, 4, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := massspec.New(core.Positive, coElutingPair(t), sampler.Constant{MS1: 0.5, MSN: 0.2}, massspec.Config{})
			require.NoError(t, err)
			h, err := controller.NewHybrid(core.Positive, controller.HybridConfig{
				N:               []int{5},
				IsolationWidth:  []float64{1},
				MZTol:           []float64{10},
				RTTol:           []float64{15},
				PurityThreshold: 0.6,
				NPurityScans:    3,
				PurityShift:     0.1,
				PurityAddMS1:    tt.addMS1,
			})
			require.NoError(t, err)
			q := &queueWatch{Controller: h, engine: engine}

			env, err := New(engine, q, 150, 160)
			require.NoError(t, err)
			require.NoError(t, env.Run())

			ms2 := env.Output().Scans.Level(2)
			require.Len(t, ms2, 5, "only the first cycle fragments inside the exclusion window")
			seen := make(map[float64]bool)
			for _, scan := range ms2 {
				mz := core.RoundFloat(scan.Parent.MZ, 6)
				assert.False(t, seen[mz], "precursor %.6f fragmented twice", mz)
				seen[mz] = true
				assert.Equal(t, 0, scan.Parent.ScanID)
			}
			assert.Equal(t, tt.wantMaxQueue, q.maxQueue)

			interleaved := 0
			for _, scan := range env.Output().Scans.Level(1) {
				if scan.Params != engine.DefaultScan() {
					interleaved++
				}
			}
			assert.Equal(t, tt.wantMS1, interleaved)
		})
	}
}

func TestRunClosesAndSerializesOnError(t *testing.T) {
	s := sampler.NewEmpirical(1, sampler.NoiseConfig{})
	s.Add(1, 1, 0, 0, 0.5)
	engine := newEngine(t, s)
	ctrl, err := controller.NewTopN(core.Positive, controller.TopNConfig{N: 1, IsolationWidth: 1, MZTol: 10, RTTol: 15})
	require.NoError(t, err)
	sp := &spy{Controller: ctrl, engine: engine}

	ser := &recordingSerializer{}
	env, err := New(engine, sp, 14, 20, WithSerializer(ser))
	require.NoError(t, err)

	err = env.Run()
	require.ErrorIs(t, err, massspec.ErrDurationLookup)
	assert.Equal(t, "close", sp.events[len(sp.events)-1])
	require.Equal(t, 1, ser.calls)
	assert.ErrorIs(t, ser.out.Err, massspec.ErrDurationLookup)
	assert.Equal(t, 1, ser.out.Scans.Len())
}

func TestRunClosesOnPanic(t *testing.T) {
	engine := newEngine(t, sampler.Fixed(0.5, 0.1))
	sp := &spy{Controller: &panicking{Controller: controller.NewIdle(core.Positive)}, engine: engine}
	ser := &recordingSerializer{}
	env, err := New(engine, sp, 0, 5, WithSerializer(ser))
	require.NoError(t, err)

	assert.Panics(t, func() { _ = env.Run() })
	assert.Equal(t, "close", sp.events[len(sp.events)-1])
	require.Equal(t, 1, ser.calls)
	assert.Error(t, ser.out.Err)
}

type panicking struct {
	controller.Controller
}

func (p *panicking) HandleScan(*core.Scan) []*core.ScanParameters {
	panic("controller bug")
}

func TestRunReportsSerializerError(t *testing.T) {
	engine := newEngine(t, sampler.Fixed(0.5, 0.1))
	ser := &recordingSerializer{err: errors.New("disk full")}
	env, err := New(engine, controller.NewSimpleMS1(core.Positive), 0, 2, WithSerializer(ser))
	require.NoError(t, err)

	err = env.Run()
	assert.ErrorContains(t, err, "disk full")
}

func TestRunProgressAndRerun(t *testing.T) {
	engine := newEngine(t, sampler.Fixed(0.5, 0.1))
	var ticks []float64
	env, err := New(engine, controller.NewSimpleMS1(core.Positive), 0, 2, WithProgress(func(now, _, _ float64) {
		ticks = append(ticks, now)
	}))
	require.NoError(t, err)
	assert.NotEmpty(t, env.RunID())

	require.NoError(t, env.Run())
	assert.Equal(t, []float64{0.5, 1, 1.5, 2}, ticks)
	assert.Equal(t, 4, env.Output().Scans.Len())

	ticks = nil
	require.NoError(t, env.Run())
	assert.Len(t, ticks, 4)
	assert.Equal(t, 4, env.Output().Scans.Len(), "controller state is reset between runs")
}

func TestNewValidates(t *testing.T) {
	engine := newEngine(t, sampler.Fixed(0.5, 0.1))
	_, err := New(engine, controller.NewIdle(core.Positive), 10, 10)
	assert.Error(t, err)
	_, err = New(nil, controller.NewIdle(core.Positive), 0, 10)
	assert.Error(t, err)
}
