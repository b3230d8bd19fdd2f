package app

import (
	"time"

	"github.com/caarlos0/env"
	"github.com/rotisserie/eris"
)

// Config is the environment-driven server configuration.
type Config struct {
	Addr               string `env:"ADDR" envDefault:":8080"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty          bool   `env:"LOG_PRETTY" envDefault:"false"`
	DisconnectGraceSec int    `env:"DISCONNECT_GRACE_SECONDS" envDefault:"10"`
	ShutdownTimeoutSec int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"10"`
}

// LoadConfig parses the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "parse environment config")
	}
	return cfg, nil
}

// GracePeriod returns the disconnect grace as a duration.
func (c Config) GracePeriod() time.Duration {
	return time.Duration(c.DisconnectGraceSec) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}
