package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Config holds the full configuration of the auth service, parsed from
// environment variables.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	MongoURI      string `env:"MONGO_URI"      envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"wallet_auth"`

	// RedisAddr enables the shared rate-limit store when set. When empty the
	// limiter falls back to its in-process store.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	Token TokenConfig
	SIWE  SIWEConfig
	PAT   PATConfig
	SMS   SMSConfig

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
}

// TokenConfig holds JWT session token settings. Access and refresh tokens
// are signed with distinct secrets so one type can never validate as the
// other.
type TokenConfig struct {
	Issuer                string        `env:"TOKEN_ISSUER"   envDefault:"wallet-auth-api"`
	Audience              string        `env:"TOKEN_AUDIENCE" envDefault:"wallet-auth-api"`
	AccessTokenSecret     string        `env:"ACCESS_TOKEN_SECRET"`
	AccessTokenExpiresIn  time.Duration `env:"ACCESS_TOKEN_EXPIRES_IN"  envDefault:"15m"`
	RefreshTokenSecret    string        `env:"REFRESH_TOKEN_SECRET"`
	RefreshTokenExpiresIn time.Duration `env:"REFRESH_TOKEN_EXPIRES_IN" envDefault:"168h"`
}

// SIWEConfig holds Sign-In with Ethereum challenge settings.
type SIWEConfig struct {
	Domain       string        `env:"SIWE_DOMAIN" envDefault:"localhost"`
	URI          string        `env:"SIWE_URI"    envDefault:"http://localhost"`
	ChallengeTTL time.Duration `env:"SIWE_CHALLENGE_TTL" envDefault:"15m"`
}

// PATConfig holds personal access token policy settings.
type PATConfig struct {
	Prefix        string `env:"PAT_PREFIX"      envDefault:"wat"`
	Environment   string `env:"PAT_ENVIRONMENT" envDefault:"live"`
	MaxPerDay     int    `env:"PAT_MAX_PER_DAY" envDefault:"50"`
	MaxActive     int    `env:"PAT_MAX_ACTIVE"  envDefault:"500"`
	GenerateRetry int    `env:"PAT_GENERATE_RETRY" envDefault:"5"`
}

// SMSConfig holds the outbound SMS gateway settings.
type SMSConfig struct {
	GatewayURL string `env:"SMS_GATEWAY_URL"`
	APIKey     string `env:"SMS_API_KEY"`
	Sender     string `env:"SMS_SENDER" envDefault:"wallet-auth"`
}

// New creates a Config instance from environment variables.
func New(logger *zerolog.Logger) *Config {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate configuration")
	}

	return &cfg
}

// validate checks that required settings are present.
func (c *Config) validate() error {
	if c.Token.AccessTokenSecret == "" {
		return fmt.Errorf("missing ACCESS_TOKEN_SECRET environment variable")
	}
	if c.Token.RefreshTokenSecret == "" {
		return fmt.Errorf("missing REFRESH_TOKEN_SECRET environment variable")
	}
	if c.Token.AccessTokenSecret == c.Token.RefreshTokenSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	return nil
}
