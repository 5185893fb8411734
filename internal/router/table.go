package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/biodoia/goarcanea/internal/providers"
	"github.com/biodoia/goarcanea/pkg/config"
	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/biodoia/goarcanea/pkg/resilience"
	"golang.org/x/time/rate"
)

// DefaultTimeout è il timeout per singola chiamata a un provider
const DefaultTimeout = 60 * time.Second

// Table è la configurazione immutabile del router. Una volta costruita
// non viene più modificata: per cambiarla si costruisce una nuova Table
// e la si pubblica con Router.Swap.
type Table struct {
	defaultProvider string
	rules           []rule
	chains          map[string][]string
	providers       map[string]providers.Provider
	models          map[string]string
	limiters        map[string]*rate.Limiter
	timeout         time.Duration
	retry           resilience.RetryConfig
}

type rule struct {
	name     string
	provider string
	agents   map[string]struct{}
	courts   map[string]struct{}
	elements map[string]struct{}
	keywords []string
	minFreq  float64
	maxFreq  float64
}

// Resolution descrive come è stato scelto il provider per un agente
type Resolution struct {
	Rule  string   `json:"rule"`
	Chain []string `json:"chain"`
}

// NewTable costruisce una Table dalla configurazione di routing.
// Ogni nome di provider citato (default, regole, fallback) deve esistere
// nel registry; provs fornisce i limiti di rate per provider.
func NewTable(cfg config.RoutingConfig, provs []config.ProviderConfig, reg *providers.Registry) (*Table, error) {
	all := reg.All()
	if len(all) == 0 {
		return nil, &models.ConfigError{Subject: "routing", Reason: "no providers registered"}
	}

	t := &Table{
		defaultProvider: cfg.DefaultProvider,
		chains:          make(map[string][]string, len(all)),
		providers:       all,
		models:          make(map[string]string, len(all)),
		limiters:        make(map[string]*rate.Limiter),
		timeout:         cfg.Timeout,
		retry:           cfg.Retry,
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}

	known := func(name string) bool {
		_, ok := all[name]
		return ok
	}

	if !known(t.defaultProvider) {
		return nil, &models.ConfigError{
			Subject: "routing",
			Reason:  fmt.Sprintf("default provider %q is not registered", t.defaultProvider),
		}
	}

	for i, rc := range cfg.Rules {
		r, err := compileRule(i, rc)
		if err != nil {
			return nil, err
		}
		if !known(r.provider) {
			return nil, &models.ConfigError{
				Subject: "routing rule " + r.name,
				Reason:  fmt.Sprintf("unknown provider %q", r.provider),
			}
		}
		t.rules = append(t.rules, r)
	}

	for primary, fallbacks := range cfg.Fallbacks {
		if !known(primary) {
			return nil, &models.ConfigError{
				Subject: "fallbacks",
				Reason:  fmt.Sprintf("unknown provider %q", primary),
			}
		}
		for _, name := range fallbacks {
			if !known(name) {
				return nil, &models.ConfigError{
					Subject: "fallbacks for " + primary,
					Reason:  fmt.Sprintf("unknown provider %q", name),
				}
			}
		}
	}

	for name := range all {
		t.chains[name] = buildChain(name, cfg.Fallbacks[name])
		if md, ok := reg.Metadata(name); ok {
			t.models[name] = md.Model
		}
	}

	for _, pc := range provs {
		if pc.RateLimit <= 0 || !known(pc.Name) {
			continue
		}
		burst := pc.Burst
		if burst < 1 {
			burst = 1
		}
		t.limiters[pc.Name] = rate.NewLimiter(rate.Limit(pc.RateLimit), burst)
	}

	return t, nil
}

func compileRule(index int, rc config.RoutingRule) (rule, error) {
	r := rule{
		name:     rc.Name,
		provider: rc.Provider,
		agents:   toSet(rc.Agents),
		courts:   toSet(rc.Courts),
		elements: toSet(rc.Elements),
		minFreq:  rc.MinFrequency,
		maxFreq:  rc.MaxFrequency,
	}
	if r.name == "" {
		r.name = fmt.Sprintf("rule-%d", index+1)
	}
	for _, kw := range rc.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			r.keywords = append(r.keywords, kw)
		}
	}

	if len(r.agents) == 0 && len(r.courts) == 0 && len(r.elements) == 0 &&
		len(r.keywords) == 0 && r.minFreq <= 0 && r.maxFreq <= 0 {
		return rule{}, &models.ConfigError{Subject: "routing rule " + r.name, Reason: "no match criteria"}
	}
	if r.maxFreq > 0 && r.minFreq > r.maxFreq {
		return rule{}, &models.ConfigError{Subject: "routing rule " + r.name, Reason: "min_frequency > max_frequency"}
	}
	return r, nil
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

func buildChain(primary string, fallbacks []string) []string {
	chain := []string{primary}
	seen := map[string]bool{primary: true}
	for _, name := range fallbacks {
		if seen[name] {
			continue
		}
		seen[name] = true
		chain = append(chain, name)
	}
	return chain
}

// matches verifica che tutti i criteri valorizzati corrispondano
func (r rule) matches(agent models.Agent) bool {
	if r.agents != nil {
		if _, ok := r.agents[strings.ToLower(agent.ID)]; !ok {
			return false
		}
	}
	if r.courts != nil {
		if _, ok := r.courts[strings.ToLower(agent.Court)]; !ok {
			return false
		}
	}
	if r.elements != nil {
		if _, ok := r.elements[strings.ToLower(agent.Element)]; !ok {
			return false
		}
	}
	if len(r.keywords) > 0 {
		specialty := strings.ToLower(agent.Specialty)
		found := false
		for _, kw := range r.keywords {
			if strings.Contains(specialty, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.minFreq > 0 && agent.Frequency < r.minFreq {
		return false
	}
	if r.maxFreq > 0 && agent.Frequency > r.maxFreq {
		return false
	}
	return true
}

// Resolve restituisce la regola applicata e la catena di provider per l'agente.
// La prima regola che corrisponde vince.
func (t *Table) Resolve(agent models.Agent) Resolution {
	primary, ruleName := t.defaultProvider, "default"
	for _, r := range t.rules {
		if r.matches(agent) {
			primary, ruleName = r.provider, r.name
			break
		}
	}
	return Resolution{
		Rule:  ruleName,
		Chain: append([]string(nil), t.chains[primary]...),
	}
}

// Route restituisce la catena di provider per l'agente
func (t *Table) Route(agent models.Agent) []string {
	return t.Resolve(agent).Chain
}

// DefaultProvider restituisce il provider di default
func (t *Table) DefaultProvider() string {
	return t.defaultProvider
}

// Timeout restituisce il timeout per chiamata
func (t *Table) Timeout() time.Duration {
	return t.timeout
}

// Model restituisce il modello configurato per un provider
func (t *Table) Model(provider string) string {
	return t.models[provider]
}
