package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
	"github.com/danmaku-sim/danmaku-sim/danmaku/workload"
)

var (
	generateWorkload workloadFlags
	generateSeed     int64
	generateOut      string
)

// generateCmd writes a synthetic workload as CSV, to stdout for piping by default
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic comment workload as CSV",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		entries, err := generateWorkload.entries(cmd, generateSeed)
		if err != nil {
			logrus.Fatalf("generation failed: %v", err)
		}
		if generateOut == "" || generateOut == "-" {
			if err := workload.WriteCSV(os.Stdout, entries); err != nil {
				logrus.Fatalf("%v", err)
			}
			return
		}
		if err := workload.Export(generateOut, entries); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("wrote %d items to %s", len(entries), generateOut)
	},
}

func init() {
	generateWorkload.register(generateCmd, false)
	generateCmd.Flags().Int64Var(&generateSeed, "seed", danmaku.DefaultConfig().Seed, "Seed for generation")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "", "Output CSV path (default stdout)")

	rootCmd.AddCommand(generateCmd)
}
