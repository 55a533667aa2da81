package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MSSim/pkg/chem"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dataset]",
	Short: "Validate a chemical dataset or spectral library",
	Long:  `Load a YAML dataset or MSP library and check every chemical the scan engine would render.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		chemicals, err := loadChemicals(cfg, args[0])
		if err != nil {
			return err
		}
		for _, c := range chemicals {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("invalid chemical %s: %w", c.Name, err)
			}
		}
		fmt.Printf("%s: %d chemicals OK\n", args[0], len(chemicals))
		return nil
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [dataset]",
	Short: "Summarize a chemical dataset or spectral library",
	Long:  `Print chemical and fragment counts plus the retention time and MS1 m/z ranges of a dataset.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		chemicals, err := loadChemicals(cfg, args[0])
		if err != nil {
			return err
		}

		s := chem.Summarize(chemicals)
		fmt.Printf("Dataset: %s\n", args[0])
		fmt.Printf("Chemicals: %d\n", s.Chemicals)
		fmt.Printf("Fragments: %d\n", s.Fragments)
		fmt.Printf("Deepest ms level: %d\n", s.MaxMSLevel)
		fmt.Printf("Retention time: %.2f - %.2f s\n", s.MinRT, s.MaxRT)
		fmt.Printf("MS1 m/z: %.4f - %.4f\n", s.MinMZ, s.MaxMZ)
		return nil
	},
}
