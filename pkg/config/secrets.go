package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables consulted for the dataset-service credential, in
// order, when the configuration file leaves roboflow.api_key empty.
var apiKeyEnv = []string{"ROBOFLOW_API_KEY", "API_KEY"}

const redactedValue = "***"

var secretKeys = []string{"api_key", "apikey", "token", "secret", "password"}

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// LoadEnv loads .env style files into the process environment. Variables
// already set are left untouched and missing files are skipped.
func LoadEnv(logger *slog.Logger, paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug("no env file found", "path", p)
				continue
			}
			return err
		}
		logger.Debug("loaded env file", "path", p)
	}
	return nil
}

// resolveAPIKey prefers the configured value and falls back to the
// environment.
func resolveAPIKey(configured string) (value string, source string) {
	if configured != "" {
		return configured, "config"
	}
	for _, name := range apiKeyEnv {
		if v, ok := lookupEnv(name); ok && v != "" {
			return v, "env:" + name
		}
	}
	return "", ""
}

// IsSecretKey reports whether a mapping key holds a credential.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range secretKeys {
		if k == s || strings.HasSuffix(k, "_"+s) {
			return true
		}
	}
	return false
}

// Redacted returns a deep copy of the mapping with credentials masked.
func (c *Config) Redacted() map[string]any {
	return redactMap(c.raw)
}

func redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if IsSecretKey(k) {
			if s, ok := v.(string); ok && s == "" {
				out[k] = ""
			} else {
				out[k] = redactedValue
			}
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}
