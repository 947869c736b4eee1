package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by configuration structs that check their own
// invariants after parsing.
type Validator interface {
	Validate() error
}

type options struct {
	files   []string
	prefix  string
	environ map[string]string
}

// Option configures Load.
type Option func(*options)

// WithEnvFiles replaces the default ".env" with the given files. Files that
// do not exist are skipped; variables already set in the process win.
func WithEnvFiles(paths ...string) Option {
	return func(o *options) { o.files = paths }
}

// WithPrefix prepends prefix to every env tag.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEnvironment parses from m instead of the process environment and
// skips .env files. Meant for tests.
func WithEnvironment(m map[string]string) Option {
	return func(o *options) {
		o.environ = m
		o.files = nil
	}
}

// Load fills v from .env files and the environment using caarlos0/env struct
// tags, then calls Validate when v implements Validator.
//
//	type Config struct {
//	    Port int `env:"PORT" envDefault:"3000"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}
	o := &options{files: []string{".env"}}
	for _, opt := range opts {
		opt(o)
	}

	for _, f := range o.files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Join(ErrLoadingEnvFile, fmt.Errorf("%s: %w", f, err))
		}
	}

	if err := env.ParseWithOptions(v, env.Options{
		Prefix:      o.prefix,
		Environment: o.environ,
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	if val, ok := any(v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
