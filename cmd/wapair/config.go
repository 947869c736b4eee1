package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/wapair/pkg/connection"
	"github.com/dmitrymomot/wapair/pkg/dispatcher"
	"github.com/dmitrymomot/wapair/pkg/httpserver"
	"github.com/dmitrymomot/wapair/pkg/logger"
	"github.com/dmitrymomot/wapair/pkg/pg"
	"github.com/dmitrymomot/wapair/pkg/redis"
	"github.com/dmitrymomot/wapair/pkg/secrets"
)

// Store backends selectable with AUTH_STORE.
const (
	storeFile     = "file"
	storeRedis    = "redis"
	storePostgres = "postgres"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"wapair"`
	LogLevel    string `env:"LOG_LEVEL"`  // overrides the environment default
	LogFormat   string `env:"LOG_FORMAT"` // json or text; overrides the environment default

	HTTP      httpserver.Config
	Postgres  pg.Config
	Redis     redis.Config
	Auth      AuthConfig
	Session   SessionConfig
	AutoReply AutoReplyConfig
	Engine    EngineConfig
}

type AuthConfig struct {
	Store         string `env:"AUTH_STORE" envDefault:"file"`
	Dir           string `env:"AUTH_DIR" envDefault:"auth"`
	RedisPrefix   string `env:"AUTH_REDIS_PREFIX" envDefault:"wapair:auth:"`
	EncryptionKey string `env:"AUTH_ENCRYPTION_KEY"` // base64, 32 bytes; empty disables encryption
}

type SessionConfig struct {
	PairingSettle    time.Duration `env:"SESSION_PAIRING_SETTLE" envDefault:"3s"`
	ReconnectDelay   time.Duration `env:"SESSION_RECONNECT_DELAY" envDefault:"5s"`
	AuthFailureCodes []int         `env:"SESSION_AUTH_FAILURE_CODES" envDefault:"401" envSeparator:","`
	MaxCloseRetries  int           `env:"SESSION_MAX_CLOSE_RETRIES" envDefault:"0"`
	MaxErrorRetries  int           `env:"SESSION_MAX_ERROR_RETRIES" envDefault:"5"`
	SendTimeout      time.Duration `env:"SESSION_SEND_TIMEOUT" envDefault:"10s"`
	PairTimeout      time.Duration `env:"SESSION_PAIR_TIMEOUT" envDefault:"55s"`
	RepairTimeout    time.Duration `env:"SESSION_REPAIR_TIMEOUT" envDefault:"2m"`
	Shards           int           `env:"SESSION_SHARDS" envDefault:"32"`
	ResumeOnStart    bool          `env:"SESSION_RESUME_ON_START" envDefault:"true"`
}

type AutoReplyConfig struct {
	Trigger string `env:"AUTOREPLY_TRIGGER" envDefault:"hi"`
	Text    string `env:"AUTOREPLY_TEXT" envDefault:"hello"`
}

type EngineConfig struct {
	ClientName string `env:"ENGINE_CLIENT_NAME" envDefault:"Chrome (Linux)"`
	LogLevel   string `env:"ENGINE_LOG_LEVEL" envDefault:"warn"`
	LogEvents  bool   `env:"ENGINE_LOG_EVENTS" envDefault:"false"`
}

// Validate checks values that struct tags cannot express.
func (c Config) Validate() error {
	var errs []error

	switch c.Auth.Store {
	case storeFile, storeRedis, storePostgres:
	default:
		errs = append(errs, fmt.Errorf("AUTH_STORE: unknown backend %q", c.Auth.Store))
	}
	if c.Auth.Store == storeFile && c.Auth.Dir == "" {
		errs = append(errs, errors.New("AUTH_DIR is required for the file store"))
	}
	if c.Auth.EncryptionKey != "" {
		if _, err := secrets.ParseKey(c.Auth.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("AUTH_ENCRYPTION_KEY: %w", err))
		}
	}
	// The engine keeps device keys in Postgres whatever AUTH_STORE says.
	if c.Postgres.ConnectionString == "" {
		errs = append(errs, errors.New("PG_CONN_URL is required"))
	}
	for name, lvl := range map[string]string{"LOG_LEVEL": c.LogLevel, "ENGINE_LOG_LEVEL": c.Engine.LogLevel} {
		if lvl == "" {
			continue
		}
		if _, err := logger.ParseLevel(lvl); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	switch logger.Format(c.LogFormat) {
	case "", logger.FormatJSON, logger.FormatText:
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: unknown format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// policy maps the session settings onto the controller policy.
func (s SessionConfig) policy() connection.Policy {
	return connection.Policy{
		PairingSettle:    s.PairingSettle,
		ReconnectDelay:   s.ReconnectDelay,
		AuthFailureCodes: s.AuthFailureCodes,
		MaxCloseRetries:  s.MaxCloseRetries,
		MaxErrorRetries:  s.MaxErrorRetries,
		SendTimeout:      s.SendTimeout,
	}
}

func (a AutoReplyConfig) rule() dispatcher.AutoReply {
	return dispatcher.AutoReply{Trigger: a.Trigger, Reply: a.Text}
}
