// Package memstore provides a sparse, byte-addressable 32-bit physical
// address space backed by a two-level page directory.
//
// The layout mirrors a minimal page table: bits [31:22] select a top-level
// directory entry, bits [21:12] select a mid-level directory entry, and
// bits [11:0] index a 4KiB page. Directories and pages are allocated only
// when a page is first requested, so an access pattern that only ever
// touches a handful of addresses allocates only a handful of pages.
package memstore

import "fmt"

const (
	pageSize    = 4096
	pageBits    = 12
	midBits     = 10
	midEntries  = 1 << midBits
	topEntries  = 1 << midBits
	midIndexMax = midEntries
)

// Store is a lazily-populated flat 32-bit address space.
type Store struct {
	top [topEntries]*midDirectory
}

type midDirectory struct {
	mid [midIndexMax]*page
}

type page [pageSize]byte

// NewStore creates an empty address space. No pages are allocated until
// EnsurePage is called.
func NewStore() *Store {
	return &Store{}
}

func topIndex(addr uint32) uint32 {
	return addr >> (pageBits + midBits)
}

func midIndex(addr uint32) uint32 {
	return (addr >> pageBits) & (midEntries - 1)
}

func pageOffset(addr uint32) uint32 {
	return addr & (pageSize - 1)
}

// HasPage reports whether the page containing addr has been materialised.
func (s *Store) HasPage(addr uint32) bool {
	dir := s.top[topIndex(addr)]
	if dir == nil {
		return false
	}
	return dir.mid[midIndex(addr)] != nil
}

// EnsurePage materialises the page containing addr if it does not already
// exist, zero-filling it. It reports whether a new page was created; a
// second call on the same page returns false.
func (s *Store) EnsurePage(addr uint32) bool {
	ti := topIndex(addr)
	dir := s.top[ti]
	if dir == nil {
		dir = &midDirectory{}
		s.top[ti] = dir
	}

	mi := midIndex(addr)
	if dir.mid[mi] != nil {
		return false
	}

	dir.mid[mi] = &page{}
	return true
}

// GetByte reads a single byte. It returns an error if the owning page has
// not been materialised with EnsurePage.
func (s *Store) GetByte(addr uint32) (byte, error) {
	p, err := s.lookup(addr)
	if err != nil {
		return 0, err
	}
	return p[pageOffset(addr)], nil
}

// SetByte writes a single byte. It returns an error if the owning page has
// not been materialised with EnsurePage.
func (s *Store) SetByte(addr uint32, val byte) error {
	p, err := s.lookup(addr)
	if err != nil {
		return err
	}
	p[pageOffset(addr)] = val
	return nil
}

func (s *Store) lookup(addr uint32) (*page, error) {
	dir := s.top[topIndex(addr)]
	if dir == nil {
		return nil, fmt.Errorf("memstore: address 0x%08x has no backing page", addr)
	}

	p := dir.mid[midIndex(addr)]
	if p == nil {
		return nil, fmt.Errorf("memstore: address 0x%08x has no backing page", addr)
	}

	return p, nil
}
