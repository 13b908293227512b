// Command cachesim-single replays a memory trace against a single cache
// level using the single-level default policy, or, with -sweep, against
// every valid (cacheSize, blockSize, associativity) combination in the
// sweep package's fixed grid.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/memstore"
	"github.com/sarchlab/cachesim/report"
	"github.com/sarchlab/cachesim/sweep"
	"github.com/sarchlab/cachesim/trace"
)

var (
	singleStep bool
	verbose    bool
	doSweep    bool
)

var rootCmd = &cobra.Command{
	Use:   "cachesim-single <trace-file>",
	Short: "Simulate a single cache level over a memory trace.",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolVarP(&singleStep, "step", "s", false, "pause after each event until Enter is pressed")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "dump per-event cache state")
	rootCmd.Flags().BoolVar(&doSweep, "sweep", false, "sweep cacheSize/blockSize/associativity instead of a single run")
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "cachesim-single: %v\n", r)
			os.Exit(-1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(-1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	tracePath := args[0]

	file, err := os.Open(tracePath)
	if err != nil {
		return fmt.Errorf("cachesim-single: opening trace: %w", err)
	}
	events, err := trace.All(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("cachesim-single: %w", err)
	}

	outPath := tracePath + ".csv"
	sink := report.NewCSVSink(outPath)
	if err := sink.Init(); err != nil {
		return fmt.Errorf("cachesim-single: %w", err)
	}

	if doSweep {
		if err := sweep.Run(events, sink, nil); err != nil {
			return fmt.Errorf("cachesim-single: %w", err)
		}
	} else if err := runSingle(events, sink); err != nil {
		return fmt.Errorf("cachesim-single: %w", err)
	}

	sink.Flush()
	fmt.Printf("wrote %s\n", outPath)
	return nil
}

func runSingle(events []trace.Event, sink *report.CSVSink) error {
	mem := memstore.NewStore()
	c, err := cache.NewBuilder().WithPolicy(cache.DefaultSingleLevelPolicy()).WithMemory(mem).Build()
	if err != nil {
		return fmt.Errorf("building cache: %w", err)
	}
	c.PrintInfo(false)

	stdin := bufio.NewReader(os.Stdin)

	for _, ev := range events {
		if verbose {
			fmt.Printf("%c %x\n", ev.Op, ev.Addr)
		}

		mem.EnsurePage(ev.Addr)

		switch ev.Op {
		case 'r':
			if _, err := c.Read(ev.Addr); err != nil {
				return err
			}
		case 'w':
			if err := c.Write(ev.Addr, 0); err != nil {
				return err
			}
		default:
			return fmt.Errorf("illegal op %q", string(ev.Op))
		}

		if verbose {
			c.PrintInfo(true)
		}
		if singleStep {
			fmt.Print("Press Enter to Continue...")
			_, _ = stdin.ReadString('\n')
		}
	}

	c.PrintStatistics()
	sink.Write(report.Row{Level: "default", Stats: c.Statistics()})
	return nil
}
