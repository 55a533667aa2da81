package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/MSSim/pkg/chem"
	"github.com/ChrisMcGann/MSSim/pkg/config"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/reader/msp"
	"github.com/ChrisMcGann/MSSim/pkg/reader/sptxt"
	"github.com/ChrisMcGann/MSSim/pkg/sampler"
)

// loadChemicals reads a YAML dataset or, for .msp and .sptxt files, a
// spectral library.
func loadChemicals(cfg *config.Config, path string) ([]*chem.Chemical, error) {
	if path == "" {
		return nil, fmt.Errorf("no dataset given, set --dataset or run.dataset")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("dataset does not exist: %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".msp", ".sptxt":
		modDB := core.DefaultModDatabase()
		if cfg.Run.Mods != "" {
			if err := loadCSV(cfg.Run.Mods, modDB.LoadFromCSV); err != nil {
				return nil, fmt.Errorf("failed to load modifications: %w", err)
			}
		}
		if strings.EqualFold(filepath.Ext(path), ".sptxt") {
			return sptxt.ChemicalsFile(path, modDB, cfg.Run.Library.Peaks, cfg.Run.Library.Options())
		}
		return msp.ChemicalsFile(path, modDB, cfg.Run.Library.Peaks, cfg.Run.Library.Options())
	case ".yaml", ".yml":
		adducts := core.DefaultAdductDatabase()
		if cfg.Run.Adducts != "" {
			if err := loadCSV(cfg.Run.Adducts, adducts.LoadFromCSV); err != nil {
				return nil, fmt.Errorf("failed to load adducts: %w", err)
			}
		}
		return chem.LoadDatasetFile(path, adducts)
	}
	return nil, fmt.Errorf("cannot detect dataset format from extension '%s', use .yaml, .msp or .sptxt", filepath.Ext(path))
}

func loadCSV(path string, load func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return load(f)
}

// loadSampler reads the sampler file or falls back to constant durations.
func loadSampler(cfg *config.Config) (sampler.Sampler, error) {
	if cfg.Run.Sampler.Path == "" {
		return sampler.Constant{MS1: cfg.Run.Sampler.MS1Duration, MSN: cfg.Run.Sampler.MS2Duration}, nil
	}
	s, err := sampler.LoadFile(cfg.Run.Sampler.Path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
