package report_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/report"
)

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	sink := report.NewCSVSink(path)
	require.NoError(t, sink.Init())

	sink.Write(report.Row{Level: "L1", Stats: cache.Statistics{
		NumRead: 10, NumWrite: 5, NumHit: 12, NumMiss: 3, TotalCycles: 200,
	}})
	sink.Flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	got := string(data)
	require.Contains(t, got, "Level,NumReads,NumWrites,NumHits,NumMisses,MissRate,TotalCycles")
	require.Contains(t, got, "L1,10,5,12,3,20.00,200")
}

func TestCSVSinkFlushClearsBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	sink := report.NewCSVSink(path)
	require.NoError(t, sink.Init())

	sink.Write(report.Row{Level: "L1", Stats: cache.Statistics{NumHit: 1}})
	sink.Flush()
	sink.Flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, 2, countLines(string(data)))
}

func countLines(s string) int {
	n := 0
	for _, c := range s {
		if c == '\n' {
			n++
		}
	}
	return n
}
