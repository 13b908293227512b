package cache

// Block is one slot of a Cache's block array.
type Block struct {
	// Valid reports whether the slot holds real data.
	Valid bool
	// Modified reports whether the block is dirty and must be written
	// back on eviction.
	Modified bool
	// Tag identifies which memory line occupies the slot.
	Tag uint32
	// SetID is slotIndex / Associativity, fixed for the lifetime of the
	// slot.
	SetID uint32
	// Size equals the owning Policy's BlockSize.
	Size uint32
	// LastReference is the reference-counter value of the most recent
	// read or write of this block. Used by LRU.
	LastReference uint64
	// CreatedAt is the reference-counter value of the last time this slot
	// was populated from below. Used by FIFO.
	CreatedAt uint64
	// Data holds the block's bytes, len(Data) == Size.
	Data []byte
}
