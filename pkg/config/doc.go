// Package config loads process configuration from the environment.
//
// It wraps github.com/joho/godotenv, which reads optional .env files, and
// github.com/caarlos0/env/v11, which maps variables onto struct fields using
// `env` and `envDefault` tags. Nested structs (for example httpserver.Config
// or redis.Config) are parsed in place, so every package keeps its own tags.
//
// A struct implementing Validator gets its Validate method called after
// parsing; its error is wrapped with ErrInvalidConfig.
//
// # Usage
//
//	type Config struct {
//	    HTTP  httpserver.Config
//	    Store string `env:"AUTH_STORE" envDefault:"file"`
//	}
//
//	func (c Config) Validate() error { ... }
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Tests can bypass the process environment:
//
//	err := config.Load(&cfg, config.WithEnvironment(map[string]string{"PORT": "8080"}))
package config
