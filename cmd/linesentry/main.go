package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "linesentry"
	version = "v1.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	var (
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Betting market line-movement detection and signal grading",
		Version: version,
		Long: `linesentry watches sportsbook odds for sharp line movement.

It polls the odds provider on a fixed tick, fingerprints every market's
consensus line, scores movements by first-mover credibility, dispatches
deduplicated alerts, and grades each recorded signal against the
closing line once the game completes.`,
		PersistentPreRun: func(*cobra.Command, []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: poller, grader, and monitor server",
		Long:  "Polls odds, records signals, dispatches alerts, captures closing lines, and grades outcomes until interrupted",
		RunE: func(*cobra.Command, []string) error {
			return runService(configPath)
		},
	}

	scanCmd := &cobra.Command{
		Use:   "scan [sport]",
		Short: "One-off scan of a sport's current lines",
		Long:  "Fetches the sport's odds board once, fingerprints every market, and prints the consensus table without persisting or alerting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			market, _ := cmd.Flags().GetString("market")
			return runScan(configPath, args, market)
		},
	}
	scanCmd.Flags().String("market", "", "Restrict the scan to one market key (e.g. totals)")

	gradeCmd := &cobra.Command{
		Use:   "grade",
		Short: "One-off grading sweep over completed games",
		Long:  "Joins completed scores with captured closing lines and writes outcomes onto pending signals, then exits",
		RunE: func(*cobra.Command, []string) error {
			return runGrade(configPath)
		},
	}

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Serve the monitor endpoints without polling",
		Long:  "Starts only the HTTP monitor server: health, readiness, metrics, status, and the alert stream",
		RunE: func(*cobra.Command, []string) error {
			return runMonitor(configPath)
		},
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(monitorCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
