package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
)

var (
	runEngine      engineFlags
	runWorkload    workloadFlags
	runHorizon     float64  // Last simulated playback second
	runBuffering   []string // Buffering spans as from:to
	runSeeks       []string // Seeks as at:to
	runTraceLevel  string   // Decision trace verbosity
	runMetricsPath string   // Prometheus text dump destination
)

// runCmd replays an item file or a generated workload on a simulated clock
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay comments through the lane scheduler on a simulated clock",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		cfg, err := runEngine.resolve(cmd, false)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		entries, err := runWorkload.entries(cmd, cfg.Seed)
		if err != nil {
			logrus.Fatalf("unable to load items: %v", err)
		}
		spans, err := parseSpans(runBuffering)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		seeks, err := parseSeeks(runSeeks)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		logrus.Infof("Starting replay: mode=%s items=%d duration=%.2fs tolerance=%.2fs lanes=%d",
			cfg.Mode, len(entries), cfg.Duration, cfg.Tolerance, cfg.NumberOfLanes)
		startTime := time.Now()

		res, err := replay(replayOptions{
			Config:     cfg,
			Horizon:    runHorizon,
			Buffering:  spans,
			Seeks:      seeks,
			TraceLevel: runTraceLevel,
		}, entries)
		if err != nil {
			logrus.Fatalf("replay failed: %v", err)
		}
		writeReport(os.Stdout, res)
		if runMetricsPath != "" {
			if err := writeMetricsText(runMetricsPath, res.Registry); err != nil {
				logrus.Fatalf("%v", err)
			}
			logrus.Infof("metrics written to %s", runMetricsPath)
		}

		logrus.Infof("Replay complete in %v.", time.Since(startTime))
	},
}

func init() {
	runEngine.register(runCmd, danmaku.ModeBatch)
	runWorkload.register(runCmd, true)

	runCmd.Flags().Float64Var(&runHorizon, "horizon", 0, "Last playback second to simulate (0 = until every item is settled)")
	runCmd.Flags().StringSliceVar(&runBuffering, "buffering", nil, "Playback spans spent buffering, e.g. 10:12.5")
	runCmd.Flags().StringSliceVar(&runSeeks, "seek", nil, "Playback jumps, e.g. 30:5 jumps back to 5s on reaching 30s")
	runCmd.Flags().StringVar(&runTraceLevel, "trace-level", "none", "Decision trace level (none, decisions)")
	runCmd.Flags().StringVar(&runMetricsPath, "metrics-out", "", "Write Prometheus text metrics to this file")

	rootCmd.AddCommand(runCmd)
}
