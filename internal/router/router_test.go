package router

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/biodoia/goarcanea/internal/providers"
	"github.com/biodoia/goarcanea/internal/stats"
	"github.com/biodoia/goarcanea/pkg/cache"
	"github.com/biodoia/goarcanea/pkg/config"
	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/biodoia/goarcanea/pkg/resilience"
	"github.com/biodoia/goarcanea/tests/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	draconis = models.Agent{ID: "draconis", Name: "Draconis", Court: "Draconia", Specialty: "Power & Transformation", Frequency: 528, Element: "Fire"}
	flow     = models.Agent{ID: "flow", Name: "Flow", Court: "Leyla", Specialty: "Narrative Flow", Frequency: 396, Element: "Water"}
	luminor  = models.Agent{ID: "luminor", Name: "Luminor", Court: "Luminor", Specialty: "Master Orchestration", Frequency: 1111, Element: "Integration"}
)

func fastRetry(maxRetries int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:        maxRetries,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func registryOf(t *testing.T, provs ...providers.Provider) *providers.Registry {
	t.Helper()
	reg := providers.NewRegistry()
	for _, p := range provs {
		require.NoError(t, reg.Register(p, "mock", "mock-model"))
	}
	return reg
}

func newTestRouter(t *testing.T, cfg config.RoutingConfig, provs ...providers.Provider) *Router {
	t.Helper()
	table, err := NewTable(cfg, nil, registryOf(t, provs...))
	require.NoError(t, err)
	r, err := New(table, WithMetrics(stats.New(nil, "test")))
	require.NoError(t, err)
	return r
}

func TestTable_Resolve(t *testing.T) {
	reg := registryOf(t,
		mocks.NewMockProvider("claude"),
		mocks.NewMockProvider("gpt"),
		mocks.NewMockProvider("local"),
		mocks.NewMockProvider("echo"),
	)
	cfg := config.RoutingConfig{
		DefaultProvider: "echo",
		Rules: []config.RoutingRule{
			{Name: "masters", Provider: "claude", MinFrequency: 1000},
			{Name: "fire", Provider: "gpt", Elements: []string{"fire"}},
			{Name: "narrative", Provider: "local", Keywords: []string{"narrative"}},
			{Name: "leyla-shadowed", Provider: "gpt", Courts: []string{"Leyla"}},
		},
		Fallbacks: map[string][]string{
			"claude": {"gpt", "claude", "echo", "gpt"},
		},
	}
	table, err := NewTable(cfg, nil, reg)
	require.NoError(t, err)

	tests := []struct {
		name  string
		agent models.Agent
		rule  string
		chain []string
	}{
		{"frequency range", luminor, "masters", []string{"claude", "gpt", "echo"}},
		{"element", draconis, "fire", []string{"gpt"}},
		{"first match wins", flow, "narrative", []string{"local"}},
		{"unmapped uses default", models.Agent{ID: "x", Name: "X", Element: "Earth", Frequency: 396}, "default", []string{"echo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := table.Resolve(tt.agent)
			assert.Equal(t, tt.rule, res.Rule)
			assert.Equal(t, tt.chain, res.Chain)
		})
	}
}

func TestTable_RouteIsIsolated(t *testing.T) {
	table, err := NewTable(config.RoutingConfig{
		DefaultProvider: "a",
		Fallbacks:       map[string][]string{"a": {"b"}},
	}, nil, registryOf(t, mocks.NewMockProvider("a"), mocks.NewMockProvider("b")))
	require.NoError(t, err)

	chain := table.Route(flow)
	chain[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, table.Route(flow))
}

func TestNewTable_Errors(t *testing.T) {
	reg := registryOf(t, mocks.NewMockProvider("a"))

	tests := []struct {
		name string
		cfg  config.RoutingConfig
	}{
		{"unknown default", config.RoutingConfig{DefaultProvider: "missing"}},
		{"unknown rule provider", config.RoutingConfig{
			DefaultProvider: "a",
			Rules:           []config.RoutingRule{{Provider: "missing", Courts: []string{"Leyla"}}},
		}},
		{"rule without criteria", config.RoutingConfig{
			DefaultProvider: "a",
			Rules:           []config.RoutingRule{{Provider: "a"}},
		}},
		{"inverted frequency range", config.RoutingConfig{
			DefaultProvider: "a",
			Rules:           []config.RoutingRule{{Provider: "a", MinFrequency: 800, MaxFrequency: 400}},
		}},
		{"unknown fallback", config.RoutingConfig{
			DefaultProvider: "a",
			Fallbacks:       map[string][]string{"a": {"missing"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.cfg, nil, reg)
			var cfgErr *models.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}

	_, err := NewTable(config.RoutingConfig{DefaultProvider: "a"}, nil, providers.NewRegistry())
	assert.Error(t, err)
}

func TestGenerate_Success(t *testing.T) {
	primary := mocks.NewMockProvider("primary")
	primary.AddResponse(mocks.MockResponse{Content: "the fire answers"})

	r := newTestRouter(t, config.RoutingConfig{DefaultProvider: "primary", Retry: fastRetry(2)}, primary)

	gen, err := r.Generate(context.Background(), draconis, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "the fire answers", gen.Text)
	assert.Equal(t, "primary", gen.Provider)
	assert.Equal(t, 1, gen.Attempts)
	assert.Equal(t, 0, gen.Fallbacks)

	req, ok := primary.GetLastRequest()
	require.True(t, ok)
	assert.Equal(t, "draconis", req.AgentID)
	assert.Equal(t, "prompt", req.Prompt)
}

func TestGenerate_TransientThenSuccess(t *testing.T) {
	primary := mocks.NewMockProvider("primary")
	primary.AddResponse(mocks.MockResponse{Error: providers.NewAPIError("primary", http.StatusTooManyRequests, "slow down")})
	primary.AddResponse(mocks.MockResponse{Content: "ok"})

	r := newTestRouter(t, config.RoutingConfig{DefaultProvider: "primary", Retry: fastRetry(2)}, primary)

	gen, err := r.Generate(context.Background(), flow, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "primary", gen.Provider)
	assert.Equal(t, 2, gen.Attempts)
	assert.Equal(t, 2, primary.GetRequestCount())
}

func TestGenerate_RetryThenFallback(t *testing.T) {
	primary := mocks.NewMockProvider("primary")
	primary.SetError(providers.NewAPIError("primary", http.StatusServiceUnavailable, "overloaded"))
	backup := mocks.NewMockProvider("backup")
	backup.AddResponse(mocks.MockResponse{Content: "from backup"})

	r := newTestRouter(t, config.RoutingConfig{
		DefaultProvider: "primary",
		Fallbacks:       map[string][]string{"primary": {"backup"}},
		Retry:           fastRetry(2),
	}, primary, backup)

	gen, err := r.Generate(context.Background(), flow, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "from backup", gen.Text)
	assert.Equal(t, "backup", gen.Provider)
	assert.Equal(t, 1, gen.Fallbacks)
	assert.Equal(t, 4, gen.Attempts)
	assert.Equal(t, 3, primary.GetRequestCount())
	assert.Equal(t, 1, backup.GetRequestCount())
}

func TestGenerate_NonTransientSkipsRetries(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unauthorized", providers.NewAPIError("primary", http.StatusUnauthorized, "bad key")},
		{"bad request", providers.NewAPIError("primary", http.StatusBadRequest, "bad prompt")},
		{"missing key", providers.ErrMissingAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := mocks.NewMockProvider("primary")
			primary.SetError(tt.err)
			backup := mocks.NewMockProvider("backup")

			r := newTestRouter(t, config.RoutingConfig{
				DefaultProvider: "primary",
				Fallbacks:       map[string][]string{"primary": {"backup"}},
				Retry:           fastRetry(3),
			}, primary, backup)

			gen, err := r.Generate(context.Background(), flow, "prompt")
			require.NoError(t, err)
			assert.Equal(t, "backup", gen.Provider)
			assert.Equal(t, 1, primary.GetRequestCount())
		})
	}
}

func TestGenerate_EmptyResponseFallsBack(t *testing.T) {
	primary := providers.NewFunc("primary", func(ctx context.Context, req providers.Request) (providers.Response, error) {
		return providers.Response{}, nil
	})
	backup := mocks.NewMockProvider("backup")

	r := newTestRouter(t, config.RoutingConfig{
		DefaultProvider: "primary",
		Fallbacks:       map[string][]string{"primary": {"backup"}},
		Retry:           fastRetry(2),
	}, primary, backup)

	gen, err := r.Generate(context.Background(), flow, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "backup", gen.Provider)
}

func TestGenerate_EmptyResponseCountsAsFailedAttempt(t *testing.T) {
	primary := providers.NewFunc("primary", func(ctx context.Context, req providers.Request) (providers.Response, error) {
		return providers.Response{Provider: "primary"}, nil
	})
	backup := mocks.NewMockProvider("backup")

	promReg := prometheus.NewRegistry()
	table, err := NewTable(config.RoutingConfig{
		DefaultProvider: "primary",
		Fallbacks:       map[string][]string{"primary": {"backup"}},
		Retry:           fastRetry(0),
	}, nil, registryOf(t, primary, backup))
	require.NoError(t, err)
	r, err := New(table, WithMetrics(stats.New(promReg, "test")))
	require.NoError(t, err)

	_, err = r.Generate(context.Background(), flow, "prompt")
	require.NoError(t, err)

	assert.Equal(t, 1.0, attemptCount(t, promReg, "primary", "error"))
	assert.Equal(t, 0.0, attemptCount(t, promReg, "primary", "success"))
	assert.Equal(t, 1.0, attemptCount(t, promReg, "backup", "success"))
}

// attemptCount legge il contatore dei tentativi per provider ed esito
func attemptCount(t *testing.T, reg *prometheus.Registry, provider, outcome string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "test_router_attempts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["provider"] == provider && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestGenerate_ChainExhausted(t *testing.T) {
	primary := mocks.NewMockProvider("primary")
	primary.SetError(providers.NewAPIError("primary", http.StatusBadGateway, ""))
	backup := mocks.NewMockProvider("backup")
	backup.SetError(providers.NewAPIError("backup", http.StatusServiceUnavailable, "down"))

	r := newTestRouter(t, config.RoutingConfig{
		DefaultProvider: "primary",
		Fallbacks:       map[string][]string{"primary": {"backup"}},
		Retry:           fastRetry(1),
	}, primary, backup)

	_, err := r.Generate(context.Background(), draconis, "prompt")
	require.Error(t, err)

	var genErr *models.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "draconis", genErr.AgentID)
	assert.Equal(t, []string{"primary", "backup"}, genErr.Providers)
	assert.Equal(t, 4, genErr.Attempts)
	assert.ErrorIs(t, err, providers.ErrServiceUnavailable)
	assert.ErrorIs(t, err, resilience.ErrMaxRetriesExceeded)
}

func TestGenerate_CallerCancellation(t *testing.T) {
	slow := mocks.NewMockProvider("slow")
	slow.Delay = 5 * time.Second
	backup := mocks.NewMockProvider("backup")

	r := newTestRouter(t, config.RoutingConfig{
		DefaultProvider: "slow",
		Fallbacks:       map[string][]string{"slow": {"backup"}},
		Retry:           fastRetry(3),
	}, slow, backup)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := r.Generate(ctx, flow, "prompt")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var genErr *models.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, slow.GetRequestCount())
	assert.Equal(t, 0, backup.GetRequestCount())
}

func TestGenerate_AlreadyCancelled(t *testing.T) {
	primary := mocks.NewMockProvider("primary")
	r := newTestRouter(t, config.RoutingConfig{DefaultProvider: "primary"}, primary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Generate(ctx, flow, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, primary.GetRequestCount())
}

func TestGenerate_PerCallTimeoutIsTransient(t *testing.T) {
	slow := mocks.NewMockProvider("slow")
	slow.Delay = time.Second
	backup := mocks.NewMockProvider("backup")

	r := newTestRouter(t, config.RoutingConfig{
		DefaultProvider: "slow",
		Fallbacks:       map[string][]string{"slow": {"backup"}},
		Timeout:         20 * time.Millisecond,
		Retry:           fastRetry(1),
	}, slow, backup)

	gen, err := r.Generate(context.Background(), flow, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "backup", gen.Provider)
	assert.Equal(t, 2, slow.GetRequestCount())
}

func TestGenerate_Cache(t *testing.T) {
	primary := mocks.NewMockProvider("primary")
	table, err := NewTable(config.RoutingConfig{DefaultProvider: "primary"}, nil, registryOf(t, primary))
	require.NoError(t, err)

	mem := cache.NewMemoryCache(100, time.Minute)
	defer mem.Close()
	r, err := New(table, WithCache(cache.NewGenerationCache(mem, time.Minute)))
	require.NoError(t, err)

	first, err := r.Generate(context.Background(), flow, "same prompt")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := r.Generate(context.Background(), flow, "same prompt")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, 1, primary.GetRequestCount())

	_, err = r.Generate(context.Background(), flow, "another prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, primary.GetRequestCount())
}

func TestGenerate_RateLimited(t *testing.T) {
	primary := mocks.NewMockProvider("primary")
	table, err := NewTable(
		config.RoutingConfig{DefaultProvider: "primary"},
		[]config.ProviderConfig{{Name: "primary", RateLimit: 50, Burst: 1}},
		registryOf(t, primary),
	)
	require.NoError(t, err)
	r, err := New(table)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := r.Generate(context.Background(), flow, "prompt")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRouter_SwapDuringTraffic(t *testing.T) {
	a := mocks.NewMockProvider("a")
	b := mocks.NewMockProvider("b")
	reg := registryOf(t, a, b)

	tableA, err := NewTable(config.RoutingConfig{DefaultProvider: "a"}, nil, reg)
	require.NoError(t, err)
	tableB, err := NewTable(config.RoutingConfig{DefaultProvider: "b"}, nil, reg)
	require.NoError(t, err)

	r, err := New(tableA)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				if i%20 == 0 {
					_ = r.Swap(tableB)
				} else {
					_ = r.Swap(tableA)
				}
			}
			if _, err := r.Generate(context.Background(), flow, "prompt"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Equal(t, 100, a.GetRequestCount()+b.GetRequestCount())
	assert.ErrorIs(t, r.Swap(nil), ErrNilTable)
}

func TestRouter_ConcurrentCallsDoNotSerialize(t *testing.T) {
	p := mocks.NewMockProvider("p")
	p.Delay = 50 * time.Millisecond
	r := newTestRouter(t, config.RoutingConfig{DefaultProvider: "p"}, p)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Generate(context.Background(), flow, "prompt")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Less(t, time.Since(start), 300*time.Millisecond)
	assert.Greater(t, p.MaxConcurrent(), 1)
}

func TestNew_NilTable(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, ErrNilTable))
}
