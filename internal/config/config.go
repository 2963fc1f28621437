package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del cliente de chat y del host HTTP.
type Config struct {
	HTTPPort           string        `env:"HTTP_PORT" envDefault:"3000"`
	GatewayBaseURL     string        `env:"GATEWAY_BASE_URL" envDefault:"https://api.team-ax.top/reze-ai"`
	ExchangeTimeout    time.Duration `env:"EXCHANGE_TIMEOUT" envDefault:"45s"`
	HistoryPushTimeout time.Duration `env:"HISTORY_PUSH_TIMEOUT" envDefault:"15s"`
	MaxMessageLength   int           `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
	SiteBaseURL        string        `env:"SITE_BASE_URL" envDefault:"https://reze-ai.team-ax.top"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitMax       int           `env:"RATE_LIMIT_MAX" envDefault:"20"`
	ConversationTTL    time.Duration `env:"CONVERSATION_IDLE_TTL" envDefault:"2h"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
