package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MSSim/pkg/chem"
	"github.com/ChrisMcGann/MSSim/pkg/core"
	"github.com/ChrisMcGann/MSSim/pkg/dia"
)

var windowsDataset string

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "Print the DIA isolation windows of the tree controller",
	Long: `Print the scan locations produced by the configured DIA design
(controller.tree). Percentile designs place their walls on the MS1 m/z of
a dataset, given with --dataset.

Examples:
  mssim windows --config sim.yaml
  MSSIM_CONTROLLER_TREE_DESIGN=kaufmann mssim windows`,
	RunE: runWindows,
}

func init() {
	windowsCmd.Flags().StringVarP(&windowsDataset, "dataset", "d", "", "Dataset whose MS1 m/z drive percentile windows")
}

func runWindows(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	design := cfg.Controller.Tree.DIA()
	if design.Range == (core.Window{}) {
		design.Range = core.Window{Lower: cfg.MassSpec.FirstMass, Upper: cfg.MassSpec.LastMass}
	}

	var mzs []float64
	if design.WindowType == dia.Percentile {
		if windowsDataset == "" {
			return fmt.Errorf("percentile windows need --dataset")
		}
		chemicals, err := loadChemicals(cfg, windowsDataset)
		if err != nil {
			return err
		}
		mzs = chem.MS1MZs(chemicals)
	}

	locations, err := dia.Windows(mzs, design)
	if err != nil {
		return err
	}

	fmt.Printf("Design: %s (%s", design.Design, design.WindowType)
	if design.Design == dia.Kaufmann {
		fmt.Printf(", %s, %d extra bins", design.Layout, design.ExtraBins)
	}
	fmt.Printf(")\n")
	fmt.Printf("Range: %.4f - %.4f\n", design.Range.Lower, design.Range.Upper)
	fmt.Printf("Scan locations: %d\n", len(locations))
	for i, loc := range locations {
		for _, level := range loc {
			fmt.Printf("  %3d:", i+1)
			for _, w := range level {
				fmt.Printf(" [%.4f, %.4f]", w.Lower, w.Upper)
			}
			fmt.Printf("\n")
		}
	}
	return nil
}
