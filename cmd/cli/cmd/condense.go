package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratabisim/stratabisim/internal/condenser"
)

var condenseDataDir string

// condenseCmd represents the condense command.
var condenseCmd = &cobra.Command{
	Use:   "condense",
	Short: "Assemble a run's per-level artifacts into one condensed summary graph",
	Long: `Condense reads the per-level outcome and refines-mapping artifacts a
refine run left on disk and produces a single multi-level summary graph
whose nodes are (block-or-singleton, lifetime-interval) pairs.`,
	RunE: runCondense,
}

func init() {
	rootCmd.AddCommand(condenseCmd)

	binName := BinName()
	condenseCmd.Example = `  # Condense a completed refine run
  ` + binName + ` condense -d ./run-001`

	condenseCmd.Flags().StringVarP(&condenseDataDir, "data-dir", "d", "./run", "Run directory containing refine output")
}

func runCondense(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	result, err := condenser.Condense(condenseDataDir, log)
	if err != nil {
		return fmt.Errorf("condense: %w", err)
	}

	log.Info("condensed graph: %d nodes, %d edges", len(result.Intervals), len(result.Edges))
	log.Info("condensed artifacts written under %s", condenseDataDir)
	return nil
}
