package cache

import (
	"fmt"

	"github.com/sarchlab/cachesim/memstore"
)

// DefaultL1Policy is the fixed L1 configuration: 16 KiB, 64-byte blocks,
// direct-mapped.
func DefaultL1Policy() Policy {
	return Policy{
		CacheSize:     16 * 1024,
		BlockSize:     64,
		BlockNum:      256,
		Associativity: 1,
		HitLatency:    1,
		MissLatency:   8,
	}
}

// DefaultL2Policy is the fixed L2 configuration: 128 KiB, 64-byte blocks,
// 8-way.
func DefaultL2Policy() Policy {
	return Policy{
		CacheSize:     128 * 1024,
		BlockSize:     64,
		BlockNum:      2048,
		Associativity: 8,
		HitLatency:    8,
		MissLatency:   20,
	}
}

// DefaultL3Policy is the fixed L3 configuration: 2 MiB, 64-byte blocks,
// 16-way.
func DefaultL3Policy() Policy {
	return Policy{
		CacheSize:     2 * 1024 * 1024,
		BlockSize:     64,
		BlockNum:      32768,
		Associativity: 16,
		HitLatency:    20,
		MissLatency:   100,
	}
}

// DefaultSingleLevelPolicy is used by the single-level driver: 16 KiB,
// 64-byte blocks, direct-mapped, with a heavier miss penalty standing in
// for the whole rest of the memory system.
func DefaultSingleLevelPolicy() Policy {
	return Policy{
		CacheSize:     16 * 1024,
		BlockSize:     64,
		BlockNum:      256,
		Associativity: 1,
		HitLatency:    1,
		MissLatency:   100,
	}
}

// PrefetcherState tracks the stride-prediction state machine that drives
// optional prefetching. It is advanced once per access, before the real
// access is dispatched.
type PrefetcherState struct {
	IsPrefetching bool
	Stride        int32
	Same          int
	Diff          int
	LastAddr      uint32
}

// Hierarchy owns the L1/L2/L3 chain, the backing MemoryStore, and the
// prefetcher state machine. It is the sole entry point a driver calls
// into per trace event.
type Hierarchy struct {
	mem *memstore.Store
	l1  *Cache
	l2  *Cache
	l3  *Cache

	prefetch bool
	fifo     bool
	victim   bool

	prefetcher PrefetcherState
}

// Options configures a Hierarchy. Zero value is the all-defaults,
// all-flags-off configuration.
type Options struct {
	Prefetch    bool
	FIFO        bool
	Victim      bool
	L1, L2, L3  Policy
	HasPolicies bool
}

// WithPrefetch enables the stride prefetcher.
func (o Options) WithPrefetch(v bool) Options {
	o.Prefetch = v
	return o
}

// WithFIFO selects FIFO replacement at every level instead of LRU.
func (o Options) WithFIFO(v bool) Options {
	o.FIFO = v
	return o
}

// WithVictim attaches an 8 KiB fully-associative victim cache to L1.
func (o Options) WithVictim(v bool) Options {
	o.Victim = v
	return o
}

// WithPolicies overrides the default L1/L2/L3 policies.
func (o Options) WithPolicies(l1, l2, l3 Policy) Options {
	o.L1, o.L2, o.L3 = l1, l2, l3
	o.HasPolicies = true
	return o
}

// NewHierarchy builds L3 (backed by a fresh MemoryStore), L2 (backed by
// L3), and L1 (backed by L2, optionally with a victim cache), per opts.
func NewHierarchy(opts Options) (*Hierarchy, error) {
	l1p, l2p, l3p := DefaultL1Policy(), DefaultL2Policy(), DefaultL3Policy()
	if opts.HasPolicies {
		l1p, l2p, l3p = opts.L1, opts.L2, opts.L3
	}

	mem := memstore.NewStore()

	l3, err := NewBuilder().WithPolicy(l3p).WithMemory(mem).WithFIFO(opts.FIFO).Build()
	if err != nil {
		return nil, fmt.Errorf("cache: building L3: %w", err)
	}

	l2, err := NewBuilder().WithPolicy(l2p).WithLower(l3).WithFIFO(opts.FIFO).Build()
	if err != nil {
		return nil, fmt.Errorf("cache: building L2: %w", err)
	}

	l1Builder := NewBuilder().WithPolicy(l1p).WithLower(l2).WithFIFO(opts.FIFO)
	if opts.Victim {
		// The victim buffer always replaces by LRU, regardless of the
		// parent's replacement policy; see DESIGN.md's Open Questions.
		victim, err := NewBuilder().WithPolicy(VictimPolicy()).WithLower(l2).Build()
		if err != nil {
			return nil, fmt.Errorf("cache: building victim cache: %w", err)
		}
		l1Builder = l1Builder.WithVictim(victim)
	}

	l1, err := l1Builder.Build()
	if err != nil {
		return nil, fmt.Errorf("cache: building L1: %w", err)
	}

	return &Hierarchy{
		mem:      mem,
		l1:       l1,
		l2:       l2,
		l3:       l3,
		prefetch: opts.Prefetch,
		fifo:     opts.FIFO,
		victim:   opts.Victim,
	}, nil
}

// L1, L2, L3 expose the individual levels for statistics readback.
func (h *Hierarchy) L1() *Cache { return h.l1 }
func (h *Hierarchy) L2() *Cache { return h.l2 }
func (h *Hierarchy) L3() *Cache { return h.l3 }

// Access dispatches one trace event: op is 'r' or 'w', any other value
// is a fatal trace error. The page containing addr is ensured first, the
// stride prefetcher runs next (if enabled), then the real access is
// dispatched to L1.
func (h *Hierarchy) Access(op byte, addr uint32) error {
	if !h.mem.HasPage(addr) {
		h.mem.EnsurePage(addr)
	}

	if h.prefetch {
		h.runPrefetcher(addr)
	}

	switch op {
	case 'r':
		_, err := h.l1.Read(addr)
		return err
	case 'w':
		return h.l1.Write(addr, 0)
	default:
		return fmt.Errorf("cache: unrecognized trace operation %q", string(op))
	}
}

// runPrefetcher advances the stride state machine and, if a stride has
// been learned, speculatively fetches addr+stride before the real
// access below it is dispatched.
func (h *Hierarchy) runPrefetcher(addr uint32) {
	p := &h.prefetcher

	if p.IsPrefetching {
		prefetchAddr := uint32(int64(addr) + int64(p.Stride))
		h.mem.EnsurePage(prefetchAddr)
		_ = h.l1.Fetch(prefetchAddr)
	}

	currentStride := int32(int64(addr) - int64(p.LastAddr))
	if currentStride == p.Stride {
		p.Same++
		p.Diff = 0
	} else {
		p.Stride = currentStride
		p.Diff++
		p.Same = 0
	}

	if p.Same > 3 {
		p.IsPrefetching = true
	}
	if p.Diff > 3 {
		p.IsPrefetching = false
	}

	p.LastAddr = addr
}

// PrefetcherState returns a snapshot of the prefetcher's state machine.
func (h *Hierarchy) PrefetcherState() PrefetcherState {
	return h.prefetcher
}

// PrintStatistics writes L1's statistics, which recurses through L2 and
// L3.
func (h *Hierarchy) PrintStatistics() {
	h.l1.PrintStatistics()
}
