package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// RateDecision es el veredicto de un limitador para un turno.
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// ExchangeRateLimiter limita cuántos turnos se lanzan por IP de cliente y por sesión en una ventana.
type ExchangeRateLimiter interface {
	Allow(ctx context.Context, clientIP, sessionID string) RateDecision
}

// limiterKeys arma las claves de conteo; una sesión vacía (creación) sólo cuenta por IP.
func limiterKeys(clientIP, sessionID string) []string {
	keys := make([]string, 0, 2)
	if ip := strings.ToLower(strings.TrimSpace(clientIP)); ip != "" {
		keys = append(keys, "ip:"+ip)
	}
	if id := strings.TrimSpace(sessionID); id != "" {
		keys = append(keys, "session:"+id)
	}
	return keys
}

type windowCounter struct {
	count   int
	resetAt time.Time
}

type memoryExchangeRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	now    func() time.Time
	items  map[string]*windowCounter

	// nextSweep marca cuándo volver a barrer contadores vencidos.
	nextSweep time.Time
}

// NewMemoryExchangeRateLimiter es el limitador de ventana fija usado cuando no hay Redis.
func NewMemoryExchangeRateLimiter(window time.Duration, max int) ExchangeRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &memoryExchangeRateLimiter{
		window: window,
		max:    max,
		now:    time.Now,
		items:  make(map[string]*windowCounter),
	}
}

func (l *memoryExchangeRateLimiter) Allow(_ context.Context, clientIP, sessionID string) RateDecision {
	keys := limiterKeys(clientIP, sessionID)
	if len(keys) == 0 {
		return RateDecision{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	decision := RateDecision{Allowed: true, Remaining: l.max}
	for _, key := range keys {
		counter, ok := l.items[key]
		if !ok || !now.Before(counter.resetAt) {
			counter = &windowCounter{resetAt: now.Add(l.window)}
			l.items[key] = counter
		}
		counter.count++
		if counter.count > l.max {
			decision.Allowed = false
			if wait := counter.resetAt.Sub(now); wait > decision.RetryAfter {
				decision.RetryAfter = wait
			}
		}
		if left := l.max - counter.count; left < decision.Remaining {
			decision.Remaining = left
		}
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	return decision
}

// sweep descarta los contadores cuya ventana ya terminó, como mucho una vez por ventana.
func (l *memoryExchangeRateLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, counter := range l.items {
		if !now.Before(counter.resetAt) {
			delete(l.items, key)
		}
	}
	l.nextSweep = now.Add(l.window)
}
