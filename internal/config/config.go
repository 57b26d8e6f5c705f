// Package config reads process configuration from the environment and an
// optional YAML bootstrap file listing additional applications.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration.
type Config struct {
	BindAddr  string
	Port      int
	LogLevel  string
	LogPretty bool
	AppsFile  string
}

// FromEnv reads Config from the process environment, defaulting to port
// 6001 and bind address 0.0.0.0 (all interfaces).
func FromEnv() Config {
	return Config{
		BindAddr:  getEnv("BIND_ADDR", "0.0.0.0"),
		Port:      getEnvInt("PORT", 6001),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnv("LOG_PRETTY", "false") == "true",
		AppsFile:  os.Getenv("APPS_CONFIG_FILE"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// AppConfig is one entry of the optional applications YAML file.
type AppConfig struct {
	ID     string `yaml:"id"`
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
}

// LoadApps reads a YAML document of the form:
//
//	apps:
//	  - id: myapp
//	    key: mykey
//	    secret: mysecret
//
// It is additive to the always-present development application; an empty
// or missing path yields no applications and no error.
func LoadApps(path string) ([]AppConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Apps []AppConfig `yaml:"apps"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Apps, nil
}
