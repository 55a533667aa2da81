package config

import (
	"fmt"
	"log/slog"

	"github.com/ChrisMcGann/MSSim/pkg/controller"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/dia"
)

// Controller types accepted in controller.type.
const (
	ControllerIdle      = "idle"
	ControllerSimpleMS1 = "simple_ms1"
	ControllerTopN      = "topn"
	ControllerHybrid    = "hybrid"
	ControllerRoi       = "roi"
	ControllerTree      = "tree"
)

// ControllerConfig selects a controller and holds the parameters of each.
type ControllerConfig struct {
	Type   string       `yaml:"type" mapstructure:"type"`
	TopN   TopNConfig   `yaml:"topn" mapstructure:"topn"`
	Hybrid HybridConfig `yaml:"hybrid" mapstructure:"hybrid"`
	Roi    RoiConfig    `yaml:"roi" mapstructure:"roi"`
	Tree   TreeConfig   `yaml:"tree" mapstructure:"tree"`
}

type TopNConfig struct {
	N               int     `yaml:"n" mapstructure:"n"`
	IsolationWidth  float64 `yaml:"isolation_width" mapstructure:"isolation_width"`
	MZTol           float64 `yaml:"mz_tol" mapstructure:"mz_tol"`
	RTTol           float64 `yaml:"rt_tol" mapstructure:"rt_tol"`
	MinMS1Intensity float64 `yaml:"min_ms1_intensity" mapstructure:"min_ms1_intensity"`
}

type HybridConfig struct {
	Changepoints    []float64 `yaml:"changepoints" mapstructure:"changepoints"`
	N               []int     `yaml:"n" mapstructure:"n"`
	IsolationWidth  []float64 `yaml:"isolation_width" mapstructure:"isolation_width"`
	MZTol           []float64 `yaml:"mz_tol" mapstructure:"mz_tol"`
	RTTol           []float64 `yaml:"rt_tol" mapstructure:"rt_tol"`
	MinMS1Intensity float64   `yaml:"min_ms1_intensity" mapstructure:"min_ms1_intensity"`
	PurityThreshold float64   `yaml:"purity_threshold" mapstructure:"purity_threshold"`
	NPurityScans    int       `yaml:"n_purity_scans" mapstructure:"n_purity_scans"`
	PurityShift     float64   `yaml:"purity_shift" mapstructure:"purity_shift"`
	PurityRandomize bool      `yaml:"purity_randomize" mapstructure:"purity_randomize"`
	PurityAddMS1    bool      `yaml:"purity_add_ms1" mapstructure:"purity_add_ms1"`
	Seed            uint64    `yaml:"seed" mapstructure:"seed"`
}

type RoiConfig struct {
	N               int     `yaml:"n" mapstructure:"n"`
	IsolationWidth  float64 `yaml:"isolation_width" mapstructure:"isolation_width"`
	MZTol           float64 `yaml:"mz_tol" mapstructure:"mz_tol"`
	MZTolUnit       string  `yaml:"mz_tol_unit" mapstructure:"mz_tol_unit"`
	ExclusionTime   float64 `yaml:"exclusion_time" mapstructure:"exclusion_time"`
	MinMS1Intensity float64 `yaml:"min_ms1_intensity" mapstructure:"min_ms1_intensity"`
	MinRoiIntensity float64 `yaml:"min_roi_intensity" mapstructure:"min_roi_intensity"`
	MinRoiLength    int     `yaml:"min_roi_length" mapstructure:"min_roi_length"`
}

// TreeConfig is the DIA design. Zero range bounds fall back to the mass
// range of the default scan.
type TreeConfig struct {
	Design     string  `yaml:"design" mapstructure:"design"`
	WindowType string  `yaml:"window_type" mapstructure:"window_type"`
	Layout     string  `yaml:"layout" mapstructure:"layout"`
	ExtraBins  int     `yaml:"extra_bins" mapstructure:"extra_bins"`
	NumWindows int     `yaml:"num_windows" mapstructure:"num_windows"`
	MinMZ      float64 `yaml:"min_mz" mapstructure:"min_mz"`
	MaxMZ      float64 `yaml:"max_mz" mapstructure:"max_mz"`
	RangeSlack float64 `yaml:"range_slack" mapstructure:"range_slack"`
}

// DefaultControllerConfig returns Top-10 with 1 Da isolation, 10 ppm and 15 s
// exclusion. The other sections carry usable defaults.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Type: ControllerTopN,
		TopN: TopNConfig{
			N:               10,
			IsolationWidth:  1,
			MZTol:           10,
			RTTol:           15,
			MinMS1Intensity: 5000,
		},
		Hybrid: HybridConfig{
			N:              []int{10},
			IsolationWidth: []float64{1},
			MZTol:          []float64{10},
			RTTol:          []float64{15},
			PurityShift:    0.2,
		},
		Roi: RoiConfig{
			N:               10,
			IsolationWidth:  1,
			MZTol:           10,
			MZTolUnit:       string(core.PPM),
			ExclusionTime:   15,
			MinMS1Intensity: 5000,
			MinRoiIntensity: 500,
			MinRoiLength:    3,
		},
		Tree: TreeConfig{
			Design:     string(dia.Basic),
			WindowType: string(dia.Even),
			Layout:     string(dia.Nested),
			NumWindows: 25,
			RangeSlack: dia.DefaultRangeSlack,
		},
	}
}

func (c TopNConfig) controller() controller.TopNConfig {
	return controller.TopNConfig{
		N:               c.N,
		IsolationWidth:  c.IsolationWidth,
		MZTol:           c.MZTol,
		RTTol:           c.RTTol,
		MinMS1Intensity: c.MinMS1Intensity,
	}
}

func (c HybridConfig) controller() controller.HybridConfig {
	return controller.HybridConfig{
		Changepoints:    c.Changepoints,
		N:               c.N,
		IsolationWidth:  c.IsolationWidth,
		MZTol:           c.MZTol,
		RTTol:           c.RTTol,
		MinMS1Intensity: c.MinMS1Intensity,
		PurityThreshold: c.PurityThreshold,
		NPurityScans:    c.NPurityScans,
		PurityShift:     c.PurityShift,
		PurityRandomize: c.PurityRandomize,
		PurityAddMS1:    c.PurityAddMS1,
		Seed:            c.Seed,
	}
}

func (c RoiConfig) controller() (controller.RoiConfig, error) {
	unit, err := core.ParseToleranceUnit(c.MZTolUnit)
	if err != nil {
		return controller.RoiConfig{}, &core.ValidationError{Field: "controller.roi.mz_tol_unit", Message: err.Error()}
	}
	return controller.RoiConfig{
		N:               c.N,
		IsolationWidth:  c.IsolationWidth,
		MZTol:           core.Tolerance{Value: c.MZTol, Unit: unit},
		ExclusionTime:   c.ExclusionTime,
		MinMS1Intensity: c.MinMS1Intensity,
		MinRoiIntensity: c.MinRoiIntensity,
		MinRoiLength:    c.MinRoiLength,
	}, nil
}

// DIA returns the window design.
func (c TreeConfig) DIA() dia.Config {
	return dia.Config{
		Design:     dia.Design(c.Design),
		WindowType: dia.WindowType(c.WindowType),
		Layout:     dia.Layout(c.Layout),
		ExtraBins:  c.ExtraBins,
		NumWindows: c.NumWindows,
		Range:      core.Window{Lower: c.MinMZ, Upper: c.MaxMZ},
		RangeSlack: c.RangeSlack,
	}
}

// Build constructs the configured controller. A nil logger discards.
func (c ControllerConfig) Build(ms MassSpecConfig, logger *slog.Logger) (controller.Controller, error) {
	polarity, err := ms.ParsedPolarity()
	if err != nil {
		return nil, &core.ValidationError{Field: "mass_spec.polarity", Message: err.Error()}
	}
	def, err := ms.DefaultScan()
	if err != nil {
		return nil, err
	}
	opts := []controller.Option{controller.WithDefaultScan(def)}
	if logger != nil {
		opts = append(opts, controller.WithLogger(logger))
	}

	switch c.Type {
	case ControllerIdle:
		return controller.NewIdle(polarity, opts...), nil
	case ControllerSimpleMS1:
		return controller.NewSimpleMS1(polarity, opts...), nil
	case ControllerTopN:
		ctrl, err := controller.NewTopN(polarity, c.TopN.controller(), opts...)
		if err != nil {
			return nil, fmt.Errorf("controller.topn: %w", err)
		}
		return ctrl, nil
	case ControllerHybrid:
		ctrl, err := controller.NewHybrid(polarity, c.Hybrid.controller(), opts...)
		if err != nil {
			return nil, fmt.Errorf("controller.hybrid: %w", err)
		}
		return ctrl, nil
	case ControllerRoi:
		roiCfg, err := c.Roi.controller()
		if err != nil {
			return nil, err
		}
		ctrl, err := controller.NewRoi(polarity, roiCfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("controller.roi: %w", err)
		}
		return ctrl, nil
	case ControllerTree:
		ctrl, err := controller.NewTree(polarity, c.Tree.DIA(), opts...)
		if err != nil {
			return nil, fmt.Errorf("controller.tree: %w", err)
		}
		return ctrl, nil
	}
	return nil, &core.ValidationError{Field: "controller.type", Message: fmt.Sprintf("unknown controller '%s'", c.Type)}
}
