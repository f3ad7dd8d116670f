// Command nettrace-dump parses a .nettrace file and prints its events.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nettrace-go/nettrace/nettrace"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagProgress         bool
	flagJSON             bool
	flagMaxReaderVersion int32
	flagVerbose          bool
)

var rootCmd = &cobra.Command{
	Use:   "nettrace-dump <file>",
	Short: "Decode a .nettrace event-pipe file and print its events",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	rootCmd.Flags().BoolVar(&flagProgress, "progress", false, "print decode progress to stderr")
	rootCmd.Flags().BoolVar(&flagJSON, "json", false, "print events as newline-delimited JSON instead of text")
	rootCmd.Flags().Int32Var(&flagMaxReaderVersion, "max-reader-version", 4, "highest FastSerialization minReaderVersion to decode rather than skip")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func runDump(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	logger := zap.NewNop()
	if flagVerbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		logger = l
	}
	defer logger.Sync()

	opts := []nettrace.Option{
		nettrace.WithLogger(logger),
		nettrace.WithMaxReaderVersion(flagMaxReaderVersion),
	}
	if flagProgress {
		opts = append(opts, nettrace.WithProgress(func(bytesRead, eventsRead int64, fraction float64) {
			if fraction > 0 {
				fmt.Fprintf(os.Stderr, "\rdecoding... %.1f%% (%d bytes, %d events)", fraction*100, bytesRead, eventsRead)
			} else {
				fmt.Fprintf(os.Stderr, "\rdecoding... %d bytes, %d events", bytesRead, eventsRead)
			}
		}))
	}

	trace, err := nettrace.Parse(cmd.Context(), f, opts...)
	if flagProgress {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("parse trace: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, ev := range trace.Events {
		if flagJSON {
			if err := enc.Encode(ev); err != nil {
				return fmt.Errorf("encode event: %w", err)
			}
			continue
		}
		name := "<unknown>"
		if ev.Metadata != nil {
			name = ev.Metadata.ProviderName + "/" + ev.Metadata.EventName
		}
		fmt.Printf("%d\t%s\tthread=%d\tstack=%d\n", ev.TimeStampNs, name, ev.ThreadID, len(ev.Stack))
	}

	fmt.Fprintf(os.Stderr, "%d events, %d stacks, %d sequence points, %d skipped blocks\n",
		trace.Stats.EventCount, trace.Stats.StackCount, trace.Stats.SequencePointCount, trace.Stats.SkipCount)
	for _, d := range trace.Diagnostics {
		fmt.Fprintf(os.Stderr, "diagnostic: %s at %d: %s\n", d.Kind, d.Pos, d.Message)
	}

	return nil
}

func main() {
	ctx := context.Background()
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
