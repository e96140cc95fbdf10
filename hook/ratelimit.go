package hook

import (
	"sync"
	"time"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
)

// RateLimitHook throttles how many call-function requests a single
// connection may issue per window. Unbounded call volume from one caller
// is the same class of resource problem as a full outbound queue.
type RateLimitHook struct {
	Base

	mu       sync.Mutex
	limiters map[connid.ID]*rateLimiter

	maxCalls int
	window   time.Duration
}

type rateLimiter struct {
	count       int
	windowStart time.Time
}

func NewRateLimitHook(maxCalls int, window time.Duration) *RateLimitHook {
	return &RateLimitHook{
		limiters: make(map[connid.ID]*rateLimiter),
		maxCalls: maxCalls,
		window:   window,
	}
}

func (h *RateLimitHook) ID() string { return "rate-limit" }

func (h *RateLimitHook) Provides(event Event) bool {
	return event == OnCallFunction
}

func (h *RateLimitHook) OnCallFunction(conn connid.ID, _ cookie.Cookie, _ uint32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	l, ok := h.limiters[conn]
	if !ok || now.Sub(l.windowStart) > h.window {
		h.limiters[conn] = &rateLimiter{count: 1, windowStart: now}
		return h.maxCalls >= 1
	}

	l.count++
	return l.count <= h.maxCalls
}

// Forget drops rate-limit state for a connection. The hook does not call it
// itself (it does not provide OnDisconnect), so a connection's entry stays
// in the map until Forget is called for it.
func (h *RateLimitHook) Forget(conn connid.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.limiters, conn)
}
