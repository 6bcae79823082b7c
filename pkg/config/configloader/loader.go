// Package configloader assembles typed service configuration from a YAML file,
// an optional .env file and the process environment.
package configloader

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

type Validator interface {
	Validate() error
}

// Sources lists where configuration is read from. Empty fields fall back to defaults.
type Sources struct {
	ConfigFile string
	EnvFile    string
}

// Load reads configuration for the named service from the default sources.
// <SERVICE>_CONFIG_FILE overrides the YAML file location.
func Load[T Validator](serviceName string) (T, error) {
	src := Sources{
		ConfigFile: os.Getenv(EnvPrefix(serviceName) + "CONFIG_FILE"),
	}
	return LoadFrom[T](serviceName, src)
}

// LoadFrom reads configuration with priority yaml < .env < system environment,
// unmarshals it into T and validates it.
func LoadFrom[T Validator](serviceName string, src Sources) (T, error) {
	var cfg T
	k := koanf.New(".")

	configFile := src.ConfigFile
	if configFile == "" {
		configFile = defaultConfigFile
	}
	envFile := src.EnvFile
	if envFile == "" {
		envFile = defaultEnvFile
	}
	envPrefix := EnvPrefix(serviceName)
	transform := keyTransformer(envPrefix)

	// 1. Load configuration from yaml file
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: error loading YAML config file '%s': %v", configFile, err)
		}
	}

	// 2. Load environment variables from .env file
	if envFileMap, err := godotenv.Read(envFile); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			if !strings.HasPrefix(strings.ToUpper(key), envPrefix) {
				continue
			}
			envMap[transform(key)] = value
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 3. Load environment variables from the system, the highest priority
	if err := k.Load(env.Provider(envPrefix, ".", transform), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// EnvPrefix returns the environment variable prefix for a service, e.g. CATALOG_.
func EnvPrefix(serviceName string) string {
	return fmt.Sprintf("%s_", strings.ToUpper(serviceName))
}

// keyTransformer maps CATALOG_SERVER_PORT to server.port.
func keyTransformer(envPrefix string) func(string) string {
	return func(key string) string {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, strings.ToLower(envPrefix))
		return strings.ReplaceAll(key, "_", ".")
	}
}
