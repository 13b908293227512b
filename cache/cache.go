package cache

import (
	"fmt"

	"github.com/sarchlab/cachesim/memstore"
)

// Cache is one level of a set-associative cache hierarchy: a fixed-size
// array of Blocks, a replacement policy, write-allocate + write-back
// handling, and an optional victim cache.
//
// A Cache is backed either by another Cache (lower) or, when lower is
// nil, directly by a shared memstore.Store.
type Cache struct {
	policy Policy

	blocks           []Block
	referenceCounter uint64
	stats            Statistics
	rescues          uint64

	lower  *Cache
	mem    *memstore.Store
	victim *Cache

	fifo              bool
	writebackEnabled bool
}

// Builder assembles a Cache. It follows the value-receiver,
// chained-With-method shape used throughout this codebase's construction
// helpers: each With method returns a modified copy, and Build validates
// and allocates.
type Builder struct {
	policy           Policy
	lower            *Cache
	mem              *memstore.Store
	victim           *Cache
	fifo             bool
	writebackEnabled bool
}

// NewBuilder returns a Builder with write-back enabled and LRU
// replacement, the defaults for any ordinary data cache level.
func NewBuilder() Builder {
	return Builder{writebackEnabled: true}
}

// WithPolicy sets the level's Policy.
func (b Builder) WithPolicy(p Policy) Builder {
	b.policy = p
	return b
}

// WithLower sets the next cache level down. Leave unset (nil) for the
// last level, which then falls back to WithMemory.
func (b Builder) WithLower(lower *Cache) Builder {
	b.lower = lower
	return b
}

// WithMemory sets the backing store used when there is no lower cache.
func (b Builder) WithMemory(mem *memstore.Store) Builder {
	b.mem = mem
	return b
}

// WithVictim attaches an already-constructed victim cache.
func (b Builder) WithVictim(victim *Cache) Builder {
	b.victim = victim
	return b
}

// WithFIFO selects FIFO replacement instead of the default LRU.
func (b Builder) WithFIFO(fifo bool) Builder {
	b.fifo = fifo
	return b
}

// WithWritebackEnabled toggles write-back on eviction. Set false to model
// an instruction-only cache, whose dirty evictions (which should not
// occur in practice, since nothing writes to it) are silently dropped
// instead of being written to the next level.
func (b Builder) WithWritebackEnabled(enabled bool) Builder {
	b.writebackEnabled = enabled
	return b
}

// Build validates the policy and allocates the block array. It is the
// only fallible step in constructing a Cache.
func (b Builder) Build() (*Cache, error) {
	if err := b.policy.validate(); err != nil {
		return nil, err
	}
	if b.lower == nil && b.mem == nil {
		return nil, fmt.Errorf("cache: either a lower cache or a backing store is required")
	}

	c := &Cache{
		policy:           b.policy,
		lower:            b.lower,
		mem:              b.mem,
		victim:           b.victim,
		fifo:             b.fifo,
		writebackEnabled: b.writebackEnabled,
	}
	c.blocks = make([]Block, b.policy.BlockNum)
	for i := range c.blocks {
		c.blocks[i] = Block{
			SetID: uint32(i) / b.policy.Associativity,
			Size:  b.policy.BlockSize,
			Data:  make([]byte, b.policy.BlockSize),
		}
	}

	return c, nil
}

// Policy returns the level's configuration.
func (c *Cache) Policy() Policy {
	return c.policy
}

// getBlockID scans the associativity slots of addr's set for a valid
// block whose tag matches. It asserts the set-id invariant on every slot
// it visits, panicking (an internal invariant violation, per the design's
// error-handling kinds) if a slot's SetID has drifted from its expected
// value.
func (c *Cache) getBlockID(addr uint32) (int, bool) {
	tag, setID, _ := decodeAddr(c.policy, addr)
	begin := int(setID * c.policy.Associativity)
	end := begin + int(c.policy.Associativity)

	for i := begin; i < end; i++ {
		if c.blocks[i].SetID != setID {
			panic(fmt.Sprintf(
				"cache: corrupted set id in block %d: got %d, want %d",
				i, c.blocks[i].SetID, setID))
		}
		if c.blocks[i].Valid && c.blocks[i].Tag == tag {
			return i, true
		}
	}

	return 0, false
}

// InCache reports whether addr is resident, without any side effect
// beyond the linear scan.
func (c *Cache) InCache(addr uint32) bool {
	_, hit := c.getBlockID(addr)
	return hit
}

// Statistics returns a snapshot of this level's counters. If a victim
// cache is attached, accesses it actually rescued are folded into this
// level's hit count and removed from its miss count, so the reported
// view matches what a caller above this level actually observed. The
// victim's dedicated rescue count is used for this, and it is capped at
// this level's own miss count.
func (c *Cache) Statistics() Statistics {
	s := c.stats
	if c.victim != nil {
		rescues := c.victim.rescues
		if rescues > s.NumMiss {
			rescues = s.NumMiss
		}
		s.NumHit += rescues
		s.NumMiss -= rescues
	}
	return s
}

// Read performs a read access. Hit/miss accounting happens exactly once,
// in this call, based on the pre-lookup result.
func (c *Cache) Read(addr uint32) (byte, error) {
	c.referenceCounter++
	c.stats.NumRead++

	if id, hit := c.getBlockID(addr); hit {
		c.stats.NumHit++
		c.stats.TotalCycles += uint64(c.policy.HitLatency)
		c.blocks[id].LastReference = c.referenceCounter

		_, _, offset := decodeAddr(c.policy, addr)
		return c.blocks[id].Data[offset], nil
	}

	c.stats.NumMiss++
	c.stats.TotalCycles += uint64(c.policy.MissLatency)

	if err := c.loadBlockFromLowerLevel(addr); err != nil {
		return 0, err
	}

	id, hit := c.getBlockID(addr)
	if !hit {
		panic(fmt.Sprintf("cache: address 0x%08x not resident after load", addr))
	}
	c.blocks[id].LastReference = c.referenceCounter

	_, _, offset := decodeAddr(c.policy, addr)
	return c.blocks[id].Data[offset], nil
}

// Write performs a write-allocate write access: a miss loads the block
// before writing. Hit/miss accounting happens exactly once.
func (c *Cache) Write(addr uint32, val byte) error {
	c.referenceCounter++
	c.stats.NumWrite++

	if id, hit := c.getBlockID(addr); hit {
		c.stats.NumHit++
		c.stats.TotalCycles += uint64(c.policy.HitLatency)
		c.blocks[id].Modified = true
		c.blocks[id].LastReference = c.referenceCounter

		_, _, offset := decodeAddr(c.policy, addr)
		c.blocks[id].Data[offset] = val
		return nil
	}

	c.stats.NumMiss++
	c.stats.TotalCycles += uint64(c.policy.MissLatency)

	if err := c.loadBlockFromLowerLevel(addr); err != nil {
		return err
	}

	id, hit := c.getBlockID(addr)
	if !hit {
		panic(fmt.Sprintf("cache: address 0x%08x not resident after load", addr))
	}
	c.blocks[id].Modified = true
	c.blocks[id].LastReference = c.referenceCounter

	_, _, offset := decodeAddr(c.policy, addr)
	c.blocks[id].Data[offset] = val
	return nil
}

// Fetch is used by the stride prefetcher: if addr is not resident, its
// block is loaded from below, but without the top-level hit/miss
// accounting a Read would produce. Whatever counters loadBlockFromLower
// Level itself touches (a write-back surcharge, the lower level's own
// Read-driven stats) still apply.
func (c *Cache) Fetch(addr uint32) error {
	if c.InCache(addr) {
		return nil
	}
	return c.loadBlockFromLowerLevel(addr)
}

// loadBlockFromLowerLevel implements the miss path: victim-cache consult,
// lower-level (or memory) fetch, replacement, write-back/victim-insertion
// of the evicted block, and installation of the new block.
func (c *Cache) loadBlockFromLowerLevel(addr uint32) error {
	tag, setID, _ := decodeAddr(c.policy, addr)
	begin := blockAddr(c.policy, addr)

	data := make([]byte, c.policy.BlockSize)
	satisfied := false

	if c.victim != nil {
		if rescued, ok := c.victim.probeVictim(begin); ok {
			copy(data, rescued)
			satisfied = true
		}
	}

	if !satisfied {
		if c.lower != nil {
			for i := uint32(0); i < c.policy.BlockSize; i++ {
				b, err := c.lower.Read(begin + i)
				if err != nil {
					return err
				}
				data[i] = b
			}
		} else {
			for i := uint32(0); i < c.policy.BlockSize; i++ {
				b, err := c.mem.GetByte(begin + i)
				if err != nil {
					return err
				}
				data[i] = b
			}
		}
	}

	slot := c.replacementPolicy(setID)
	evicted := c.blocks[slot]

	if evicted.Valid {
		evictedAddr := addrOf(c.policy, evicted.Tag, evicted.SetID)

		switch {
		case c.victim != nil && evicted.Modified:
			if c.writebackEnabled {
				if err := c.victim.insertCopy(evictedAddr, evicted.Data, true); err != nil {
					return err
				}
				c.stats.TotalCycles += uint64(c.policy.MissLatency)
			}
		case c.victim != nil && !evicted.Modified:
			if err := c.victim.insertCopy(evictedAddr, evicted.Data, false); err != nil {
				return err
			}
		case evicted.Modified && c.writebackEnabled:
			if err := writeBytes(c.writeBackSink(), evictedAddr, evicted.Data); err != nil {
				return err
			}
			c.stats.TotalCycles += uint64(c.policy.MissLatency)
		}
	}

	c.blocks[slot] = Block{
		Valid:         true,
		Modified:      false,
		Tag:           tag,
		SetID:         setID,
		Size:          c.policy.BlockSize,
		LastReference: c.referenceCounter,
		CreatedAt:     c.referenceCounter,
		Data:          data,
	}

	return nil
}

// probeVictim looks up a block-aligned address in this Cache acting as a
// victim buffer. On a hit, the slot is invalidated and the rescued bytes
// are returned; a miss never reaches into this cache's own lower level —
// the caller (the evicting parent) falls through to its own normal miss
// path instead.
func (c *Cache) probeVictim(blockAlignedAddr uint32) (data []byte, ok bool) {
	c.referenceCounter++
	c.stats.NumRead++

	id, hit := c.getBlockID(blockAlignedAddr)
	if !hit {
		c.stats.NumMiss++
		c.stats.TotalCycles += uint64(c.policy.MissLatency)
		return nil, false
	}

	c.stats.NumHit++
	c.stats.TotalCycles += uint64(c.policy.HitLatency)
	c.rescues++

	rescued := make([]byte, len(c.blocks[id].Data))
	copy(rescued, c.blocks[id].Data)
	c.blocks[id].Valid = false
	c.blocks[id].Modified = false

	return rescued, true
}

// insertCopy installs data as a block at addr by direct byte copy,
// without going through Write's write-allocate miss path: used to place
// an already-in-hand evicted block straight into this cache acting as a
// victim buffer. modified carries over the evicted block's own dirty
// flag, so a dirty block rescued into the victim is still written back
// correctly if the victim later evicts it in turn. It does not touch
// NumRead/NumWrite/NumHit/NumMiss, since it is not itself an access.
func (c *Cache) insertCopy(addr uint32, data []byte, modified bool) error {
	tag, setID, _ := decodeAddr(c.policy, addr)

	slot := c.replacementPolicy(setID)
	evicted := c.blocks[slot]

	if evicted.Valid && evicted.Modified && c.writebackEnabled {
		evictedAddr := addrOf(c.policy, evicted.Tag, evicted.SetID)
		if err := writeBytes(c.writeBackSink(), evictedAddr, evicted.Data); err != nil {
			return err
		}
		c.stats.TotalCycles += uint64(c.policy.MissLatency)
	}

	block := make([]byte, len(data))
	copy(block, data)

	c.referenceCounter++
	c.blocks[slot] = Block{
		Valid:         true,
		Modified:      modified,
		Tag:           tag,
		SetID:         setID,
		Size:          c.policy.BlockSize,
		LastReference: c.referenceCounter,
		CreatedAt:     c.referenceCounter,
		Data:          block,
	}

	return nil
}

// replacementPolicy picks the slot to evict within addr's set: the first
// invalid slot, else the minimum-CreatedAt slot under FIFO, else the
// minimum-LastReference slot under LRU — ties broken by lowest index.
func (c *Cache) replacementPolicy(setID uint32) int {
	begin := int(setID * c.policy.Associativity)
	end := begin + int(c.policy.Associativity)

	for i := begin; i < end; i++ {
		if !c.blocks[i].Valid {
			return i
		}
	}

	best := begin
	for i := begin + 1; i < end; i++ {
		if c.fifo {
			if c.blocks[i].CreatedAt < c.blocks[best].CreatedAt {
				best = i
			}
		} else if c.blocks[i].LastReference < c.blocks[best].LastReference {
			best = i
		}
	}

	return best
}

// writeBackSink returns the destination for a dirty eviction when no
// victim cache is attached (a dirty eviction with a victim attached goes
// through insertCopy instead, never through here): the lower cache, else
// the backing store.
func (c *Cache) writeBackSink() byteWriter {
	if c.lower != nil {
		return c.lower
	}
	return storeWriter{c.mem}
}

// byteWriter is satisfied by anything that can receive a single written
// byte at an address: a lower Cache (a full write-allocate write) or the
// backing store (a direct, unaccounted byte store).
type byteWriter interface {
	writeByte(addr uint32, val byte) error
}

func (c *Cache) writeByte(addr uint32, val byte) error {
	return c.Write(addr, val)
}

type storeWriter struct {
	store *memstore.Store
}

func (w storeWriter) writeByte(addr uint32, val byte) error {
	return w.store.SetByte(addr, val)
}

func writeBytes(dest byteWriter, addr uint32, data []byte) error {
	for i, b := range data {
		if err := dest.writeByte(addr+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}

// PrintInfo writes a human-readable dump of this level's configuration,
// and, if verbose, every block's current state.
func (c *Cache) PrintInfo(verbose bool) {
	fmt.Println("---------- Cache Info -----------")
	fmt.Printf("Cache Size: %d bytes\n", c.policy.CacheSize)
	fmt.Printf("Block Size: %d bytes\n", c.policy.BlockSize)
	fmt.Printf("Block Num: %d\n", c.policy.BlockNum)
	fmt.Printf("Associativity: %d\n", c.policy.Associativity)
	fmt.Printf("Hit Latency: %d\n", c.policy.HitLatency)
	fmt.Printf("Miss Latency: %d\n", c.policy.MissLatency)

	if !verbose {
		return
	}
	for i, b := range c.blocks {
		state := "invalid"
		if b.Valid {
			state = "valid"
		}
		dirty := "unmodified"
		if b.Modified {
			dirty = "modified"
		}
		fmt.Printf("Block %d: tag 0x%x set %d %s %s (last ref %d)\n",
			i, b.Tag, b.SetID, state, dirty, b.LastReference)
	}
}

// PrintStatistics writes this level's statistics, then recurses into the
// lower level.
func (c *Cache) PrintStatistics() {
	fmt.Println("-------- STATISTICS ----------")
	s := c.Statistics()
	fmt.Printf("Num Read: %d\n", s.NumRead)
	fmt.Printf("Num Write: %d\n", s.NumWrite)
	fmt.Printf("Num Hit: %d\n", s.NumHit)
	fmt.Printf("Num Miss: %d\n", s.NumMiss)
	fmt.Printf("Miss Rate: %.2f%%\n", s.MissRate()*100)
	fmt.Printf("Total Cycles: %d\n", s.TotalCycles)

	if c.lower != nil {
		fmt.Println("---------- LOWER CACHE ----------")
		c.lower.PrintStatistics()
	}
}
