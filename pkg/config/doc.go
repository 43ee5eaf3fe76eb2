// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Each package that needs configuration declares its own struct with
// `env` tags and loads it through [Load]:
//
//	type Config struct {
//		ConnectionURL string `env:"MONGODB_URL,required"`
//		ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// A successfully parsed struct is cached by type, so repeated loads of
// the same configuration are cheap and return identical values.
package config
