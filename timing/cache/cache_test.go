package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbsim/timing/cache"
)

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		// Small cache for testing: 256B, 2-way, 16B lines, 8 sets.
		// Addresses 0x80 apart map to the same set.
		config := cache.Config{
			Size:          256,
			Associativity: 2,
			BlockSize:     16,
			HitLatency:    1,
			MissLatency:   10,
		}
		var err error
		c, err = cache.New(config)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Reads", func() {
		It("should miss on cold cache", func() {
			result := c.Access(0x20000000, false)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Latency).To(Equal(uint64(10)))

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(0)))
		})

		It("should hit on cached blocks", func() {
			c.Access(0x20000000, false)

			result := c.Access(0x20000000, false)
			Expect(result.Hit).To(BeTrue())
			Expect(result.Latency).To(Equal(uint64(1)))
			Expect(c.Stats().HitRate()).To(BeNumerically("~", 0.5))
		})

		It("should hit on different addresses in same cache line", func() {
			c.Access(0x20000000, false)
			Expect(c.Access(0x2000000C, false).Hit).To(BeTrue())
			Expect(c.Access(0x20000010, false).Hit).To(BeFalse())
		})
	})

	Describe("Writes", func() {
		It("should write-allocate on miss", func() {
			result := c.Access(0x20000040, true)
			Expect(result.Hit).To(BeFalse())
			Expect(c.Contains(0x20000040)).To(BeTrue())
			Expect(c.Access(0x20000044, false).Hit).To(BeTrue())
			Expect(c.Stats().Writes).To(Equal(uint64(1)))
		})
	})

	Describe("Eviction", func() {
		It("should evict the least recently used block", func() {
			c.Access(0x000, false)
			c.Access(0x080, false)
			c.Access(0x000, false)

			result := c.Access(0x100, false)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Evicted).To(BeTrue())
			Expect(result.EvictedAddr).To(Equal(uint32(0x080)))

			Expect(c.Contains(0x000)).To(BeTrue())
			Expect(c.Contains(0x080)).To(BeFalse())
			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("should count writebacks of dirty blocks", func() {
			c.Access(0x000, true)
			c.Access(0x080, false)
			c.Access(0x080, false)

			c.Access(0x100, false)
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))

			c.Access(0x180, false)
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
		})
	})

	Describe("Invalidate", func() {
		It("should drop a single line", func() {
			c.Access(0x40, false)
			c.Invalidate(0x44)
			Expect(c.Contains(0x40)).To(BeFalse())
		})
	})

	Describe("Flush", func() {
		It("should write back all dirty blocks", func() {
			c.Access(0x000, true)
			c.Access(0x200, true)
			c.Access(0x010, false)

			c.Flush()

			Expect(c.Stats().Writebacks).To(Equal(uint64(2)))
			Expect(c.Contains(0x000)).To(BeFalse())
			Expect(c.Contains(0x010)).To(BeFalse())
		})
	})

	Describe("Reset", func() {
		It("should clear blocks and statistics", func() {
			c.Access(0x000, true)
			c.Reset()

			Expect(c.Stats()).To(Equal(cache.Statistics{}))
			Expect(c.Access(0x000, false).Hit).To(BeFalse())
		})
	})

	Describe("Configuration", func() {
		It("should accept the default data cache config", func() {
			config := cache.DefaultL1DConfig()
			Expect(config.Validate()).To(Succeed())
			Expect(config.BlockSize).To(Equal(16))
		})

		DescribeTable("invalid geometries",
			func(config cache.Config) {
				_, err := cache.New(config)
				Expect(err).To(HaveOccurred())
			},
			Entry("non power of two block", cache.Config{Size: 240, Associativity: 1, BlockSize: 15}),
			Entry("zero ways", cache.Config{Size: 256, Associativity: 0, BlockSize: 16}),
			Entry("size too small", cache.Config{Size: 16, Associativity: 2, BlockSize: 16}),
		)
	})
})
