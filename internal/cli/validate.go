package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/yolotrain/pkg/config"
	"gopkg.in/yaml.v3"
)

// ValidateConfig loads the configuration, checks every required key and
// prints the redacted document as YAML.
func ValidateConfig(w io.Writer, path string) error {
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.LoadEnv(createNopLogger(), ".env"); err != nil {
		return err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	fmt.Fprintf(w, "# %s: valid (tracker=%s, device=%s, api_key from %s)\n",
		cfg.Path(), settings.Tracker.Backend, settings.Device, cfg.APIKeySource())
	return nil
}
