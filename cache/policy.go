package cache

import "fmt"

// Policy describes the fixed, immutable configuration of a single cache
// level: its geometry and its cycle costs.
type Policy struct {
	// CacheSize is the total capacity in bytes. Must be a power of two.
	CacheSize uint32
	// BlockSize is the size of a single cache line in bytes. Must be a
	// power of two.
	BlockSize uint32
	// BlockNum is the total number of blocks (cache lines) the level
	// holds. Must satisfy BlockNum*BlockSize == CacheSize.
	BlockNum uint32
	// Associativity is the number of blocks per set. Must divide BlockNum.
	Associativity uint32
	// HitLatency is the cycle cost charged on a hit.
	HitLatency uint32
	// MissLatency is the cycle cost charged on a miss (and on a write-back
	// triggered by a miss).
	MissLatency uint32
}

// VictimPolicy is the fixed configuration used for the optional victim
// cache: an 8KiB, 64-byte-line, fully-associative buffer (128 ways across
// 128 blocks means a single set).
func VictimPolicy() Policy {
	return Policy{
		CacheSize:     8 * 1024,
		BlockSize:     64,
		BlockNum:      128,
		Associativity: 128,
		HitLatency:    1,
		MissLatency:   8,
	}
}

// validate checks the construction invariants a Policy must satisfy and
// returns a descriptive error naming the first one that fails.
func (p Policy) validate() error {
	switch {
	case !isPowerOfTwo(p.CacheSize):
		return fmt.Errorf("cache: invalid cache size %d: not a power of two", p.CacheSize)
	case !isPowerOfTwo(p.BlockSize):
		return fmt.Errorf("cache: invalid block size %d: not a power of two", p.BlockSize)
	case p.CacheSize%p.BlockSize != 0:
		return fmt.Errorf("cache: cache size %d not divisible by block size %d", p.CacheSize, p.BlockSize)
	case p.BlockNum*p.BlockSize != p.CacheSize:
		return fmt.Errorf("cache: block num %d * block size %d != cache size %d", p.BlockNum, p.BlockSize, p.CacheSize)
	case p.Associativity == 0 || p.BlockNum%p.Associativity != 0:
		return fmt.Errorf("cache: block num %d not divisible by associativity %d", p.BlockNum, p.Associativity)
	}
	return nil
}

func isPowerOfTwo(n uint32) bool {
	return n > 0 && n&(n-1) == 0
}

// log2 returns floor(log2(v)), with log2(0) defined as 0 since it is only
// ever called on values already known to be positive powers of two in
// this package.
func log2(v uint32) uint32 {
	var n uint32
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}
