package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/memstore"
)

var _ = Describe("Hierarchy", func() {
	var h *cache.Hierarchy

	BeforeEach(func() {
		var err error
		h, err = cache.NewHierarchy(cache.Options{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("counts a cold read as a single miss", func() {
		Expect(h.Access('r', 0)).To(Succeed())

		s := h.L1().Statistics()
		Expect(s.NumRead).To(Equal(uint64(1)))
		Expect(s.NumMiss).To(Equal(uint64(1)))
		Expect(s.NumHit).To(Equal(uint64(0)))
		Expect(s.TotalCycles).To(Equal(uint64(8)))
	})

	It("hits L1 on an immediate re-read", func() {
		Expect(h.Access('r', 0)).To(Succeed())
		Expect(h.Access('r', 0)).To(Succeed())

		s := h.L1().Statistics()
		Expect(s.NumRead).To(Equal(uint64(2)))
		Expect(s.NumMiss).To(Equal(uint64(1)))
		Expect(s.NumHit).To(Equal(uint64(1)))
		Expect(s.TotalCycles).To(Equal(uint64(9)))
	})

	It("counts a write followed by a read of the same address as one write and one hit read", func() {
		Expect(h.Access('w', 0)).To(Succeed())
		Expect(h.Access('r', 0)).To(Succeed())

		s := h.L1().Statistics()
		Expect(s.NumWrite).To(Equal(uint64(1)))
		Expect(s.NumRead).To(Equal(uint64(1)))
		Expect(s.NumHit).To(Equal(uint64(1)))
		Expect(s.NumMiss).To(Equal(uint64(1)))
	})

	It("rejects an unrecognized trace operation", func() {
		err := h.Access('x', 0)
		Expect(err).To(HaveOccurred())
	})

	It("thrashes a direct-mapped L1 on a two-address conflict", func() {
		const a, b = 0, 16384

		Expect(h.Access('r', a)).To(Succeed())
		Expect(h.Access('r', b)).To(Succeed())
		Expect(h.Access('r', a)).To(Succeed())
		Expect(h.Access('r', b)).To(Succeed())

		s := h.L1().Statistics()
		Expect(s.NumMiss).To(Equal(uint64(4)))
		Expect(s.NumHit).To(Equal(uint64(0)))
	})

	It("takes exactly one cold miss per distinct line up to and past capacity", func() {
		for i := 0; i <= 256; i++ {
			Expect(h.Access('r', uint32(i*64))).To(Succeed())
		}

		s := h.L1().Statistics()
		Expect(s.NumMiss).To(Equal(uint64(257)))
		Expect(s.NumHit).To(Equal(uint64(0)))

		Expect(h.L1().InCache(0)).To(BeFalse())
	})

	It("starts prefetching after four consecutive equal strides and hits ahead of demand", func() {
		h, err := cache.NewHierarchy(cache.Options{}.WithPrefetch(true))
		Expect(err).NotTo(HaveOccurred())

		addrs := []uint32{0, 64, 128, 192, 256, 320, 384, 448}
		for _, a := range addrs {
			Expect(h.Access('r', a)).To(Succeed())
		}

		Expect(h.PrefetcherState().IsPrefetching).To(BeTrue())

		s := h.L1().Statistics()
		Expect(s.NumHit).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Cache", func() {
	var (
		mem *memstore.Store
		c   *cache.Cache
	)

	BeforeEach(func() {
		mem = memstore.NewStore()
		mem.EnsurePage(0)

		var err error
		c, err = cache.NewBuilder().
			WithPolicy(cache.DefaultL1Policy()).
			WithMemory(mem).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	It("preserves a written value across an intervening eviction via write-back", func() {
		for page := uint32(0); page <= 16384; page += 4096 {
			mem.EnsurePage(page)
		}

		Expect(c.Write(0, 0x42)).To(Succeed())

		for i := uint32(1); i <= 256; i++ {
			_, err := c.Read(i * 64)
			Expect(err).NotTo(HaveOccurred())
		}

		b, err := c.Read(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(byte(0x42)))
	})

	It("allocates the block on a write miss", func() {
		Expect(c.Write(5, 7)).To(Succeed())
		Expect(c.InCache(5)).To(BeTrue())
	})

	It("rejects a misconfigured policy at construction", func() {
		_, err := cache.NewBuilder().
			WithPolicy(cache.Policy{CacheSize: 100, BlockSize: 64, BlockNum: 2, Associativity: 1}).
			WithMemory(mem).
			Build()
		Expect(err).To(HaveOccurred())
	})

	It("requires either a lower cache or a backing store", func() {
		_, err := cache.NewBuilder().WithPolicy(cache.DefaultL1Policy()).Build()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("FIFO replacement", func() {
	It("agrees with LRU on a trace that touches each block exactly once", func() {
		mem := memstore.NewStore()
		for i := uint32(0); i < 4; i++ {
			mem.EnsurePage(i * 64)
		}

		policy := cache.Policy{CacheSize: 128, BlockSize: 64, BlockNum: 2, Associativity: 2, HitLatency: 1, MissLatency: 8}

		lru, err := cache.NewBuilder().WithPolicy(policy).WithMemory(mem).Build()
		Expect(err).NotTo(HaveOccurred())
		fifo, err := cache.NewBuilder().WithPolicy(policy).WithMemory(mem).WithFIFO(true).Build()
		Expect(err).NotTo(HaveOccurred())

		addrs := []uint32{0, 64, 128, 192}
		for _, a := range addrs {
			_, err := lru.Read(a)
			Expect(err).NotTo(HaveOccurred())
			_, err = fifo.Read(a)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(lru.InCache(0)).To(Equal(fifo.InCache(0)))
		Expect(lru.InCache(128)).To(Equal(fifo.InCache(128)))
	})
})

var _ = Describe("Victim cache", func() {
	It("rescues a conflict-evicted block from the victim buffer", func() {
		mem := memstore.NewStore()
		mem.EnsurePage(0)
		mem.EnsurePage(16384)

		l2, err := cache.NewBuilder().WithPolicy(cache.DefaultL2Policy()).WithMemory(mem).Build()
		Expect(err).NotTo(HaveOccurred())

		direct := cache.Policy{CacheSize: 64, BlockSize: 64, BlockNum: 1, Associativity: 1, HitLatency: 1, MissLatency: 8}

		victim, err := cache.NewBuilder().WithPolicy(cache.VictimPolicy()).WithLower(l2).Build()
		Expect(err).NotTo(HaveOccurred())

		l1, err := cache.NewBuilder().WithPolicy(direct).WithLower(l2).WithVictim(victim).Build()
		Expect(err).NotTo(HaveOccurred())

		// Two addresses that collide in the single-set L1 but are distinct
		// lines at L2, so the second conflicts out the first into the
		// victim buffer and the third access rescues it.
		const a, b = 0, 16384

		_, err = l1.Read(a)
		Expect(err).NotTo(HaveOccurred())
		_, err = l1.Read(b)
		Expect(err).NotTo(HaveOccurred())
		_, err = l1.Read(a)
		Expect(err).NotTo(HaveOccurred())

		stats := l1.Statistics()
		Expect(stats.NumHit).To(BeNumerically(">=", 1))
	})
})
