package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// exchangeQuotaScript cuenta el turno en cada clave (IP y sesión) y devuelve
// {permitido, restante, espera en ms} según la clave más cargada.
var exchangeQuotaScript = redis.NewScript(`
local window = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local allowed = 1
local remaining = max
local retry = 0
for _, key in ipairs(KEYS) do
  local current = redis.call("INCR", key)
  if current == 1 then
    redis.call("PEXPIRE", key, window)
  end
  local ttl = redis.call("PTTL", key)
  if ttl < 0 then
    redis.call("PEXPIRE", key, window)
    ttl = window
  end
  if current > max then
    allowed = 0
    if ttl > retry then retry = ttl end
  end
  if max - current < remaining then remaining = max - current end
end
if remaining < 0 then remaining = 0 end
return {allowed, remaining, retry}
`)

const redisQuotaTimeout = 300 * time.Millisecond

type redisExchangeRateLimiter struct {
	client redis.Scripter
	logger *zap.Logger
	window time.Duration
	max    int
	prefix string
}

// NewRedisExchangeRateLimiter comparte la cuota entre réplicas del host HTTP.
func NewRedisExchangeRateLimiter(client redis.Scripter, logger *zap.Logger, window time.Duration, max int) ExchangeRateLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if window < time.Millisecond {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisExchangeRateLimiter{
		client: client,
		logger: logger,
		window: window,
		max:    max,
		prefix: "reze:chat:quota:",
	}
}

// Allow deja pasar el turno si Redis no responde; la caída queda registrada.
func (l *redisExchangeRateLimiter) Allow(ctx context.Context, clientIP, sessionID string) RateDecision {
	keys := limiterKeys(clientIP, sessionID)
	if len(keys) == 0 {
		return RateDecision{}
	}
	for i, key := range keys {
		keys[i] = l.prefix + key
	}

	ctx, cancel := context.WithTimeout(ctx, redisQuotaTimeout)
	defer cancel()

	vals, err := exchangeQuotaScript.Run(ctx, l.client, keys, l.window.Milliseconds(), l.max).Int64Slice()
	if err != nil || len(vals) != 3 {
		l.logger.Warn("rate limiter unavailable, allowing exchange",
			zap.Error(err),
			zap.String("client_ip", clientIP),
			zap.String("session_id", sessionID),
		)
		return RateDecision{Allowed: true, Remaining: l.max}
	}
	return RateDecision{
		Allowed:    vals[0] == 1,
		Remaining:  int(vals[1]),
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}
}
