package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/yolotrain/pkg/domain"
	"gopkg.in/yaml.v3"
)

// DefaultRelPath is where the configuration lives relative to the program.
const DefaultRelPath = "configs/config.yaml"

// Config is a loaded configuration document. It is immutable after Load.
type Config struct {
	path string
	raw  map[string]any
}

// DefaultPath resolves DefaultRelPath against the directory of the running
// executable.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), DefaultRelPath), nil
}

// Load reads and parses the YAML document at path.
// A missing file yields a *domain.ConfigNotFoundError naming path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.ConfigNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	raw, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &Config{path: path, raw: raw}, nil
}

// Parse decodes a YAML document into a nested mapping. An empty document
// yields an empty mapping.
func Parse(data []byte) (map[string]any, error) {
	raw := map[string]any{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// FromMap wraps an already decoded mapping.
func FromMap(raw map[string]any) *Config {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Config{raw: raw}
}

// Path returns the file the configuration was read from, if any.
func (c *Config) Path() string {
	return c.path
}

// Raw returns the nested mapping. Callers must not modify it.
func (c *Config) Raw() map[string]any {
	return c.raw
}

// Lookup resolves a dotted key path such as "model.epochs".
func (c *Config) Lookup(key string) (any, bool) {
	var cur any = c.raw
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
