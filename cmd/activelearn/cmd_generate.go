package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mimir-aip/activelearn/pkg/dataset"
)

var (
	genOptions = dataset.DefaultGeneratorOptions()
	genSeed    int64
	genOut     string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic two-cluster labeled pool as CSV",
	RunE:  generatePool,
}

func init() {
	f := generateCmd.Flags()
	f.IntVar(&genOptions.Flagged, "flagged", genOptions.Flagged, "Number of flagged examples")
	f.IntVar(&genOptions.Unflagged, "unflagged", genOptions.Unflagged, "Number of unflagged examples")
	f.IntVar(&genOptions.Features, "features", genOptions.Features, "Features per example")
	f.Float64Var(&genOptions.Separation, "separation", genOptions.Separation, "Distance between class centers")
	f.Float64Var(&genOptions.Noise, "noise", genOptions.Noise, "Per-feature standard deviation")
	f.Int64Var(&genSeed, "seed", 3, "Random seed")
	f.StringVarP(&genOut, "out", "o", "", "Output file (default stdout)")
}

func generatePool(cmd *cobra.Command, args []string) error {
	examples, names, err := dataset.Generate(genOptions, dataset.NewRand(genSeed, 1))
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if genOut != "" {
		file, err := os.Create(genOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", genOut, err)
		}
		defer file.Close()
		w = file
	}

	if err := dataset.WriteCSV(w, examples, names); err != nil {
		return fmt.Errorf("failed to write pool: %w", err)
	}
	logger.Info("Generated pool",
		zap.Int("examples", len(examples)),
		zap.Int("features", genOptions.Features),
		zap.String("out", genOut))
	return nil
}
