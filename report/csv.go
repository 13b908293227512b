// Package report formats and emits the per-level statistics a cachesim
// run produces, as a CSV file: one row per cache level, columns
// Level,NumReads,NumWrites,NumHits,NumMisses,MissRate,TotalCycles.
package report

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/cache"
)

// Row is one cache level's reported statistics, labelled with the
// level's name ("L1", "L2", "L3", or a sweep's configuration label).
type Row struct {
	Level string
	Stats cache.Statistics
}

// CSVSink accumulates Rows and writes them to a CSV file. It buffers in
// memory and is flushed either explicitly or by the exit hook Init
// registers.
type CSVSink struct {
	path string
	file *os.File
	rows []Row
}

// NewCSVSink creates a sink that will write to path. Call Init before
// the first Write.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Init creates (or truncates) the CSV file, writes its header, and
// registers a flush-and-close hook with atexit. The hook runs only when
// the process exits through atexit.Exit, atexit.Fatal or atexit.Fatalf;
// os.Exit and log.Fatal do not run it.
func (s *CSVSink) Init() error {
	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("report: creating %s: %w", s.path, err)
	}
	s.file = file

	if _, err := fmt.Fprintln(file, "Level,NumReads,NumWrites,NumHits,NumMisses,MissRate,TotalCycles"); err != nil {
		return fmt.Errorf("report: writing header: %w", err)
	}

	atexit.Register(func() {
		s.Flush()
		_ = s.file.Close()
	})

	return nil
}

// Write appends one row. Rows are buffered until Flush.
func (s *CSVSink) Write(row Row) {
	s.rows = append(s.rows, row)
}

// Flush writes every buffered row to the file and clears the buffer.
func (s *CSVSink) Flush() {
	for _, row := range s.rows {
		fmt.Fprintf(s.file, "%s,%d,%d,%d,%d,%.2f,%d\n",
			row.Level,
			row.Stats.NumRead,
			row.Stats.NumWrite,
			row.Stats.NumHit,
			row.Stats.NumMiss,
			row.Stats.MissRate()*100,
			row.Stats.TotalCycles,
		)
	}
	s.rows = nil
}
