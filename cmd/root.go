package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pingo-core/pingo/transport"
)

var settings = transport.DefaultSettings()

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "pingo <destination>",
	Short: "pingo your ping in Go",
	Long:  "pingo is a Go implementation of the ping utility",
	Args:  cobra.ExactArgs(1),
	RunE:  runPing,
}

func init() {
	flags := rootCmd.Flags()

	flags.IntVarP(&settings.Count, "count", "c", settings.Count, "stop after sending count probes (negative: unbounded)")
	flags.BoolVarP(&settings.ShowTimestamp, "timestamp", "D", false, "print a Unix timestamp before each reply line")
	flags.BoolVarP(&noResolve, "numeric", "n", false, "do not resolve the destination's hostname")
	flags.BoolVarP(&settings.Quiet, "quiet", "q", false, "suppress per-reply output, print only the summary")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	flags.IntVarP(&settings.TTL, "ttl", "t", settings.TTL, "IP time to live / IPv6 hop limit")
	flags.DurationVarP(&settings.Interval, "interval", "i", settings.Interval, "interval between probes")
	flags.DurationVarP(&settings.Timeout, "timeout", "W", settings.Timeout, "per-probe reply timeout before the first successful reply")
	flags.DurationVar(&settings.Deadline, "deadline", settings.Deadline, "overall deadline for the run (negative: unbounded)")
	flags.BoolVar(&settings.IsPrivileged, "privileged", settings.IsPrivileged, "use a raw ICMP socket instead of an unprivileged datagram socket")
}

// noResolve is the inverse of settings.DoResolve, since -n disables
// resolution rather than enabling it (spec.md §6's CLI option table).
var noResolve bool

func runPing(c *cobra.Command, args []string) error {
	settings.DoResolve = !noResolve

	if verbose {
		settings.LogLevel = 5 // logrus.DebugLevel
	}

	runner, err := newRunner(args[0], settings)
	if err != nil {
		return fmt.Errorf("pingo: %w", err)
	}

	runner.Start()
	return runner.Wait()
}

// Execute runs the root command; main.go's sole entry point.
func Execute() error {
	return rootCmd.Execute()
}
