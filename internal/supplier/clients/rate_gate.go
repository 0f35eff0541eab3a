package clients

import (
	"sync"
	"time"

	"catalogsync/metrics"

	"golang.org/x/time/rate"
)

// Endpoint names used by the rate gate. One limiter per endpoint: the
// supplier throttles them independently.
const (
	EndpointSearch    = "search"
	EndpointDetails   = "details"
	EndpointInventory = "inventory"
	EndpointPricing   = "pricing"
)

// RateGate owns per-endpoint limiters plus the cooldown state set when the
// supplier explicitly throttles a call. All schedule and rate-limit state
// lives here, injected wherever conditions are read — never ambient globals.
type RateGate struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	cooldowns map[string]time.Time

	perMinute int
	now       func() time.Time
}

func NewRateGate(requestsPerMinute int) *RateGate {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateGate{
		limiters:  make(map[string]*rate.Limiter),
		cooldowns: make(map[string]time.Time),
		perMinute: requestsPerMinute,
		now:       time.Now,
	}
}

func (g *RateGate) limiter(endpoint string) *rate.Limiter {
	if l, ok := g.limiters[endpoint]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(time.Minute/time.Duration(g.perMinute)), g.perMinute)
	g.limiters[endpoint] = l
	return l
}

// Allow consumes one token for the endpoint without blocking. A denied call
// means the local budget for this minute is spent.
func (g *RateGate) Allow(endpoint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cooldownLocked(endpoint) > 0 {
		return false
	}
	return g.limiter(endpoint).Allow()
}

// IsRateLimited reports whether the endpoint is inside a supplier-imposed
// cooldown window.
func (g *RateGate) IsRateLimited(endpoint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cooldownLocked(endpoint) > 0
}

// RemainingCooldown returns how long until the endpoint may be called again,
// zero when it is not limited.
func (g *RateGate) RemainingCooldown(endpoint string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cooldownLocked(endpoint)
}

func (g *RateGate) cooldownLocked(endpoint string) time.Duration {
	until, ok := g.cooldowns[endpoint]
	if !ok {
		return 0
	}
	remaining := until.Sub(g.now())
	if remaining <= 0 {
		delete(g.cooldowns, endpoint)
		metrics.SetRateLimited(endpoint, false)
		return 0
	}
	return remaining
}

// MarkLimited records a supplier throttle signal for the endpoint.
func (g *RateGate) MarkLimited(endpoint string, resetAfter time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if resetAfter <= 0 {
		resetAfter = time.Minute
	}
	g.cooldowns[endpoint] = g.now().Add(resetAfter)
	metrics.SetRateLimited(endpoint, true)
}

// AnyLimited reports whether any known endpoint is cooling down.
func (g *RateGate) AnyLimited() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for endpoint := range g.cooldowns {
		if g.cooldownLocked(endpoint) > 0 {
			return true
		}
	}
	return false
}
