// Package config handles loading and parsing application configuration.
// The YAML file is located from (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// A .env file in the working directory, when present, is loaded into the
// environment first, so secrets such as AWS_ACCESS_KEY_ID or B2_APP_KEY can
// live outside the YAML.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file and can be overridden by the
// corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity: "dev", "staging" or "prod".
	Env string `yaml:"env" env:"ENV" env-default:"dev" validate:"oneof=dev staging prod"`

	HTTPServer  `yaml:"http_server"`
	Database    Database    `yaml:"database"`
	Attachments Attachments `yaml:"attachments"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	Addr         string        `yaml:"address"       env:"HTTP_SERVER_ADDR"   env-required:"true"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  env:"HTTP_READ_TIMEOUT"  env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"  env:"HTTP_IDLE_TIMEOUT"  env-default:"60s"`
}

// Database selects the document store. URI and Name are used by the mongo
// driver; Path by the embedded sqlite and bolt drivers.
type Database struct {
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"mongo" validate:"oneof=mongo sqlite bolt"`
	URI    string `yaml:"uri"    env:"MONGO_URI"                       validate:"required_if=Driver mongo"`
	Name   string `yaml:"name"   env:"DB_NAME"   env-default:"upiiz"`
	Path   string `yaml:"path"   env:"DB_PATH"                         validate:"required_unless=Driver mongo"`
}

// Attachments configures where student photos are stored. S3 takes its
// credentials from the usual AWS environment; B2 uses KeyID and AppKey.
type Attachments struct {
	Provider string `yaml:"provider" env:"ATTACHMENTS_PROVIDER" env-default:"s3" validate:"oneof=s3 b2 memory"`
	Bucket   string `yaml:"bucket"   env:"ATTACHMENTS_BUCKET"   env-default:"sd-upiiz"`
	Region   string `yaml:"region"   env:"AWS_REGION"           env-default:"us-east-2"`
	Domain   string `yaml:"domain"   env:"ATTACHMENTS_DOMAIN"   env-default:"s3.amazonaws.com"`
	Endpoint string `yaml:"endpoint" env:"ATTACHMENTS_ENDPOINT"`
	Folder   string `yaml:"folder"   env:"ATTACHMENTS_FOLDER"   env-default:"Alumnos"`
	KeyID    string `yaml:"key_id"   env:"B2_KEY_ID"`
	AppKey   string `yaml:"app_key"  env:"B2_APP_KEY"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// MustLoad resolves the config path, loads it and exits on any failure.
// If this function returns, the config is valid.
func MustLoad() *Config {
	loadDotEnv(".env")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}
	return cfg
}

// loadDotEnv exports the variables in path. A missing file is fine;
// variables already set in the environment win.
func loadDotEnv(path string) {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("cannot read %s: %s", path, err.Error())
	}
}
