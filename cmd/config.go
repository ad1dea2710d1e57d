package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"gatekeeper/domain"
)

var validate = validator.New()

type Config struct {
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true" validate:"required"`

	// IdentityDomain completes bare user parts into canonical ids.
	IdentityDomain string `env:"IDENTITY_DOMAIN,default=c.us" validate:"required"`

	CooldownWindow time.Duration `env:"COOLDOWN_WINDOW,default=7s"`

	ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY,default=5s"`
	ReconnectMaxDelay    time.Duration `env:"RECONNECT_MAX_DELAY,default=5m"`
	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS,default=10" validate:"gte=0"`
	MaxAuthRetries       int           `env:"MAX_AUTH_RETRIES,default=3" validate:"gte=0"`

	CloseAt  string `env:"CLOSE_AT,default=22:00" validate:"required"`
	OpenAt   string `env:"OPEN_AT,default=07:00" validate:"required"`
	Timezone string `env:"TIMEZONE,default=America/Sao_Paulo" validate:"required"`

	StatusInterval  time.Duration `env:"STATUS_INTERVAL,default=30s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`

	// BlockedDomains overrides the embedded blacklist, comma separated.
	BlockedDomains string `env:"BLOCKED_DOMAINS"`
}

// Rules resolves the configured clock strings into schedule rules and
// the timezone they fire in.
func (c Config) Rules() ([]domain.ScheduleRule, *time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	closeRule, err := domain.ParseScheduleRule(c.CloseAt, domain.AccessClose)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid CLOSE_AT: %w", err)
	}
	openRule, err := domain.ParseScheduleRule(c.OpenAt, domain.AccessOpen)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid OPEN_AT: %w", err)
	}
	return []domain.ScheduleRule{closeRule, openRule}, loc, nil
}

// Domains returns the blocklist override, or nil when the embedded
// default should be used.
func (c Config) Domains() []string {
	if strings.TrimSpace(c.BlockedDomains) == "" {
		return nil
	}
	var domains []string
	for _, d := range strings.Split(c.BlockedDomains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, _, err := c.Rules(); err != nil {
		return err
	}
	return nil
}
