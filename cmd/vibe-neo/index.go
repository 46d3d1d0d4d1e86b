package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-neo/internal/genome"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <fasta>",
		Short: "Write a .fai index for a reference FASTA",
		Long: `Scan an uncompressed FASTA file and write a samtools-compatible .fai
index next to it. Predict reads the genome through this index.`,
		Example: `  vibe-neo index GRCh38.primary_assembly.genome.fa`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := genome.BuildIndex(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d sequences in %s\n", n, genome.IndexPath(args[0]))
			return nil
		},
	}
}
