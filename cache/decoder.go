package cache

// offsetBits returns the number of low-order address bits consumed by the
// block offset: log2(BlockSize).
func offsetBits(p Policy) uint32 {
	return log2(p.BlockSize)
}

// setBits returns the number of address bits consumed by the set index:
// log2(BlockNum/Associativity).
func setBits(p Policy) uint32 {
	return log2(p.BlockNum / p.Associativity)
}

// decodeAddr splits a 32-bit address into (tag, setID, offset) according
// to p. It is pure, total, and takes O(1) time.
func decodeAddr(p Policy, addr uint32) (tag, setID, offset uint32) {
	ob := offsetBits(p)
	sb := setBits(p)

	offset = addr & ((1 << ob) - 1)
	setID = (addr >> ob) & ((1 << sb) - 1)
	tag = addr >> (ob + sb)

	return tag, setID, offset
}

// blockAddr returns the block-aligned base address for addr, i.e. addr
// with its offset bits cleared.
func blockAddr(p Policy, addr uint32) uint32 {
	ob := offsetBits(p)
	return addr &^ ((1 << ob) - 1)
}

// addrOf reconstructs the block-aligned address a block with the given
// tag and set ID was loaded from. It is the left inverse of decodeAddr
// with respect to tag and setID: addrOf(p, decodeAddr(p, a)) == a aligned
// down to BlockSize.
func addrOf(p Policy, tag, setID uint32) uint32 {
	ob := offsetBits(p)
	sb := setBits(p)
	return (tag << (ob + sb)) | (setID << ob)
}
