package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache è l'interfaccia base per tutti i layer di cache
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats() CacheStats
}

// CacheStats contiene statistiche sul cache
type CacheStats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
	Size      int64
}

// HitRate calcola il tasso di hit del cache
func (s *CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config configurazione del multi-layer cache
type Config struct {
	// Memory cache settings
	MemoryMaxEntries int
	MemoryTTL        time.Duration

	// Redis settings
	RedisEnabled  bool
	RedisHost     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	RedisPrefix   string
}

// DefaultConfig restituisce una configurazione di default
func DefaultConfig() *Config {
	return &Config{
		MemoryMaxEntries: 1000,
		MemoryTTL:        5 * time.Minute,

		RedisEnabled: false,
		RedisHost:    "localhost:6379",
		RedisDB:      0,
		RedisTTL:     30 * time.Minute,
		RedisPrefix:  "arcanea:",
	}
}

// MultiLayerCache implementa un cache multi-layer con memory + Redis
type MultiLayerCache struct {
	config *Config
	memory *MemoryCache
	redis  *RedisCache
	mu     sync.Mutex
	stats  CacheStats
}

// NewMultiLayerCache crea un nuovo cache multi-layer.
// Se Redis non è raggiungibile il cache continua solo in memoria.
func NewMultiLayerCache(ctx context.Context, config *Config) *MultiLayerCache {
	if config == nil {
		config = DefaultConfig()
	}

	mlc := &MultiLayerCache{
		config: config,
		memory: NewMemoryCache(config.MemoryMaxEntries, config.MemoryTTL),
	}

	log.Info().
		Int("max_entries", config.MemoryMaxEntries).
		Dur("ttl", config.MemoryTTL).
		Msg("Memory cache initialized")

	if config.RedisEnabled {
		redisCache, err := NewRedisCache(ctx, config.RedisHost, config.RedisPassword, config.RedisDB, config.RedisPrefix)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing with memory-only")
		} else {
			mlc.redis = redisCache
			log.Info().
				Str("host", config.RedisHost).
				Int("db", config.RedisDB).
				Msg("Redis cache initialized")
		}
	}

	return mlc
}

// NewLayered compone un cache da layer già costruiti (redis può essere nil)
func NewLayered(memory *MemoryCache, redis *RedisCache, memoryTTL time.Duration) *MultiLayerCache {
	return &MultiLayerCache{
		config: &Config{MemoryTTL: memoryTTL},
		memory: memory,
		redis:  redis,
	}
}

// Get recupera un valore dal cache (memory first, poi Redis)
func (m *MultiLayerCache) Get(ctx context.Context, key string) ([]byte, error) {
	if data, err := m.memory.Get(ctx, key); err == nil {
		m.record(func(s *CacheStats) { s.Hits++ })
		log.Debug().Str("key", key).Str("layer", "memory").Msg("Cache hit")
		return data, nil
	}

	if m.redis != nil {
		data, err := m.redis.Get(ctx, key)
		if err == nil {
			m.record(func(s *CacheStats) { s.Hits++ })
			log.Debug().Str("key", key).Str("layer", "redis").Msg("Cache hit")

			// Promuovi in memory cache per successive hit
			_ = m.memory.Set(ctx, key, data, m.config.MemoryTTL)
			return data, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Redis cache read failed")
		}
	}

	m.record(func(s *CacheStats) { s.Misses++ })
	return nil, ErrCacheMiss
}

// Set salva un valore in tutti i layer di cache
func (m *MultiLayerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.record(func(s *CacheStats) { s.Sets++ })

	memTTL := ttl
	if m.config.MemoryTTL > 0 && (memTTL == 0 || memTTL > m.config.MemoryTTL) {
		memTTL = m.config.MemoryTTL
	}
	if err := m.memory.Set(ctx, key, value, memTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to set memory cache")
	}

	if m.redis != nil {
		if err := m.redis.Set(ctx, key, value, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to set Redis cache")
		}
	}

	return nil
}

// Delete rimuove un valore da tutti i layer
func (m *MultiLayerCache) Delete(ctx context.Context, key string) error {
	m.record(func(s *CacheStats) { s.Deletes++ })

	_ = m.memory.Delete(ctx, key)
	if m.redis != nil {
		return m.redis.Delete(ctx, key)
	}
	return nil
}

// Clear svuota tutti i layer di cache
func (m *MultiLayerCache) Clear(ctx context.Context) error {
	_ = m.memory.Clear(ctx)
	if m.redis != nil {
		return m.redis.Clear(ctx)
	}
	return nil
}

// Stats restituisce le statistiche del cache
func (m *MultiLayerCache) Stats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *MultiLayerCache) record(fn func(*CacheStats)) {
	m.mu.Lock()
	fn(&m.stats)
	m.mu.Unlock()
}

// Close chiude le connessioni dei cache layer
func (m *MultiLayerCache) Close() error {
	m.memory.Close()
	if m.redis != nil {
		return m.redis.Close()
	}
	return nil
}

// HashKey genera un hash consistente per una chiave.
// Ogni parte è prefissata dalla sua lunghezza, così ("ab","c") != ("a","bc").
func HashKey(parts ...string) string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, part := range parts {
		n := uint64(len(part))
		for i := range lenBuf {
			lenBuf[i] = byte(n >> (8 * i))
		}
		h.Write(lenBuf[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Errori comuni
var (
	ErrCacheMiss = errors.New("cache miss")
)
