package benchmarks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/biodoia/goarcanea/pkg/cache"
)

func createTestCache() *cache.MemoryCache {
	return cache.NewMemoryCache(10000, 5*time.Minute)
}

// BenchmarkCacheGet misura le performance di lettura
func BenchmarkCacheGet(b *testing.B) {
	c := createTestCache()
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_ = c.Set(ctx, fmt.Sprintf("key-%d", i), []byte("test value"), 5*time.Minute)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = c.Get(ctx, fmt.Sprintf("key-%d", i%1000))
	}
}

// BenchmarkCacheSet misura le performance di scrittura, con eviction
func BenchmarkCacheSet(b *testing.B) {
	c := createTestCache()
	defer c.Close()
	ctx := context.Background()
	value := []byte("test value with some content")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, fmt.Sprintf("key-%d", i), value, 5*time.Minute)
	}
}

// BenchmarkCacheConcurrentReads testa letture concorrenti
func BenchmarkCacheConcurrentReads(b *testing.B) {
	c := createTestCache()
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_ = c.Set(ctx, fmt.Sprintf("key-%d", i), []byte("test value"), 5*time.Minute)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = c.Get(ctx, fmt.Sprintf("key-%d", i%100))
			i++
		}
	})
}

// BenchmarkGenerationCache misura il costo di lookup di una generazione
func BenchmarkGenerationCache(b *testing.B) {
	mem := createTestCache()
	defer mem.Close()
	gc := cache.NewGenerationCache(mem, 5*time.Minute)
	ctx := context.Background()

	prompt := "You are Ignition of the Draconia court.\n\nTask: forge a dawn spell"
	gc.Put(ctx, prompt, cache.CachedGeneration{Text: "a spell", Provider: "echo", Model: "echo"})

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, ok := gc.Get(ctx, "echo", "echo", prompt); !ok {
			b.Fatal("expected cache hit")
		}
	}
}
