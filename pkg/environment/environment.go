// Package environment runs a controller against the simulated mass
// spectrometer from a start time to an end time.
package environment

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ChrisMcGann/MSSim/pkg/controller"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/logging"
	"github.com/ChrisMcGann/MSSim/pkg/massspec"
	"github.com/ChrisMcGann/MSSim/pkg/metrics"
)

// Output is everything a run hands to the serializer.
type Output struct {
	RunID      string
	Controller string
	MinTime    float64
	MaxTime    float64
	// Scans holds every scan in arrival order, grouped by ms level.
	Scans               *controller.ScanLog
	Precursors          []controller.PrecursorScans
	FragmentationEvents []core.FragmentationEvent
	// Err is the error that ended the run early, if any.
	Err error
}

// Serializer persists a finished run.
type Serializer interface {
	WriteRun(out *Output) error
}

// ProgressFunc is called after every scan with the current simulated time.
type ProgressFunc func(now, minTime, maxTime float64)

// Option configures an Environment.
type Option func(*Environment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Environment) { e.logger = l }
}

func WithProgress(fn ProgressFunc) Option {
	return func(e *Environment) { e.progress = fn }
}

func WithSerializer(s Serializer) Option {
	return func(e *Environment) { e.serializer = s }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(e *Environment) { e.runID = id }
}

type named interface {
	Name() string
}

// Environment wires an engine to a controller.
type Environment struct {
	engine     *massspec.Engine
	controller controller.Controller
	minTime    float64
	maxTime    float64
	runID      string
	logger     *slog.Logger
	progress   ProgressFunc
	serializer Serializer
	output     *Output
}

// New builds an environment that simulates [minTime, maxTime).
func New(engine *massspec.Engine, ctrl controller.Controller, minTime, maxTime float64, opts ...Option) (*Environment, error) {
	if engine == nil || ctrl == nil {
		return nil, fmt.Errorf("an engine and a controller are required")
	}
	if maxTime <= minTime {
		return nil, &core.ValidationError{Field: "MaxTime", Message: fmt.Sprintf("must exceed min time %f, got %f", minTime, maxTime)}
	}
	e := &Environment{
		engine:     engine,
		controller: ctrl,
		minTime:    minTime,
		maxTime:    maxTime,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	if e.runID == "" {
		e.runID = uuid.NewString()
	}
	return e, nil
}

// Run simulates until the engine clock reaches the end time. Acquisition
// closing fires and the output is handed to the serializer on every exit
// path, including errors and panics.
func (e *Environment) Run() (err error) {
	e.engine.Reset(e.minTime)
	e.controller.Reset()
	e.engine.SetHandlers(massspec.Handlers{
		ScanArrived:        e.controller.HandleScan,
		AcquisitionOpen:    e.controller.OnAcquisitionOpen,
		AcquisitionClosing: e.controller.OnAcquisitionClosing,
	})
	n, dew := e.controller.CurrentSchedule(e.minTime)
	e.engine.SetSchedule(n, dew)

	e.logger.Info("run started", "run_id", e.runID, "controller", e.controllerName(), "min_time", e.minTime, "max_time", e.maxTime)
	e.engine.Open()

	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("run aborted by panic: %v", r)
		}
		if cerr := e.finish(err); err == nil {
			err = cerr
		}
		if r != nil {
			panic(r)
		}
	}()

	for e.engine.Time() < e.maxTime {
		scan, serr := e.engine.Step()
		if serr != nil {
			return serr
		}
		e.controller.UpdateStateAfterScan(scan)
		if e.progress != nil {
			e.progress(e.engine.Time(), e.minTime, e.maxTime)
		}
	}
	return nil
}

func (e *Environment) finish(runErr error) error {
	e.engine.Close()
	metrics.ObserveRun(runErr)

	e.output = &Output{
		RunID:               e.runID,
		Controller:          e.controllerName(),
		MinTime:             e.minTime,
		MaxTime:             e.maxTime,
		Scans:               e.controller.Scans(),
		Precursors:          e.controller.Precursors(),
		FragmentationEvents: e.engine.FragmentationEvents(),
		Err:                 runErr,
	}
	if runErr != nil {
		e.logger.Error("run failed", "run_id", e.runID, "time", e.engine.Time(), "error", runErr)
	} else {
		e.logger.Info("run finished", "run_id", e.runID, "scans", e.output.Scans.Len(), "time", e.engine.Time())
	}

	if e.serializer == nil {
		return nil
	}
	if err := e.serializer.WriteRun(e.output); err != nil {
		return fmt.Errorf("failed to write run %s: %w", e.runID, err)
	}
	return nil
}

// Output returns the result of the last run.
func (e *Environment) Output() *Output {
	return e.output
}

// RunID returns the run identifier.
func (e *Environment) RunID() string {
	return e.runID
}

func (e *Environment) controllerName() string {
	if n, ok := e.controller.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", e.controller)
}
