// Package sweep implements the parameter-sweep driver referenced by
// spec.md's single-level CLI surface: it replays a fixed trace against
// every (cacheSize, blockSize, associativity) combination in a bounded
// grid, skipping geometrically invalid combinations, and reports one
// statistics row per valid combination.
package sweep

import (
	"fmt"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/memstore"
	"github.com/sarchlab/cachesim/report"
	"github.com/sarchlab/cachesim/trace"
)

// CacheSizes, BlockSizes, and Associativities are the sweep's fixed grid,
// per spec.md §6: cacheSize from 4 KiB up to 1 MiB in powers of 4,
// blockSize from 32 to 256 bytes in powers of 2, associativity from 2 to
// 32 in powers of 2.
var (
	CacheSizes      = geometricRange(4*1024, 1024*1024, 4)
	BlockSizes      = geometricRange(32, 256, 2)
	Associativities = geometricRange(2, 32, 2)
)

func geometricRange(lo, hi, factor uint32) []uint32 {
	var vals []uint32
	for v := lo; v <= hi; v *= factor {
		vals = append(vals, v)
	}
	return vals
}

// OnEvent, when non-nil, is invoked once per trace event within every
// simulated configuration, mirroring the single-level driver's
// verbose/single-step hooks.
type OnEvent func(ev trace.Event)

// Run replays events against every valid grid point and writes one row
// per point to sink. sink must already be initialised.
func Run(events []trace.Event, sink *report.CSVSink, onEvent OnEvent) error {
	for _, cacheSize := range CacheSizes {
		for _, blockSize := range BlockSizes {
			if cacheSize%blockSize != 0 {
				continue
			}
			blockNum := cacheSize / blockSize

			for _, associativity := range Associativities {
				if blockNum%associativity != 0 {
					continue
				}

				stats, err := simulate(events, cacheSize, blockSize, associativity, onEvent)
				if err != nil {
					return fmt.Errorf("sweep: cacheSize=%d blockSize=%d associativity=%d: %w",
						cacheSize, blockSize, associativity, err)
				}

				sink.Write(report.Row{
					Level: fmt.Sprintf("%d-%d-%d", cacheSize, blockSize, associativity),
					Stats: stats,
				})
			}
		}
	}
	return nil
}

func simulate(
	events []trace.Event,
	cacheSize, blockSize, associativity uint32,
	onEvent OnEvent,
) (cache.Statistics, error) {
	policy := cache.Policy{
		CacheSize:     cacheSize,
		BlockSize:     blockSize,
		BlockNum:      cacheSize / blockSize,
		Associativity: associativity,
		HitLatency:    1,
		MissLatency:   100,
	}

	mem := memstore.NewStore()
	c, err := cache.NewBuilder().WithPolicy(policy).WithMemory(mem).Build()
	if err != nil {
		return cache.Statistics{}, fmt.Errorf("building cache: %w", err)
	}

	for _, ev := range events {
		if onEvent != nil {
			onEvent(ev)
		}

		mem.EnsurePage(ev.Addr)

		switch ev.Op {
		case 'r':
			if _, err := c.Read(ev.Addr); err != nil {
				return cache.Statistics{}, err
			}
		case 'w':
			if err := c.Write(ev.Addr, 0); err != nil {
				return cache.Statistics{}, err
			}
		default:
			return cache.Statistics{}, fmt.Errorf("illegal op %q", string(ev.Op))
		}
	}

	return c.Statistics(), nil
}
