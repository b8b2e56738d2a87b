package config

import (
	"fmt"
	"time"

	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Settings is the typed view of a configuration.
type Settings struct {
	Data     DataSettings     `mapstructure:"data"`
	Model    ModelSettings    `mapstructure:"model"`
	Wandb    WandbSettings    `mapstructure:"wandb"`
	Roboflow RoboflowSettings `mapstructure:"roboflow"`
	Trainer  TrainerSettings  `mapstructure:"trainer"`
	Tracker  TrackerSettings  `mapstructure:"tracker"`
	// Device is "auto", "cpu" or "cuda".
	Device string `mapstructure:"device"`
}

type DataSettings struct {
	Path string `mapstructure:"path"`
}

type ModelSettings struct {
	Weights    string `mapstructure:"weights"`
	Epochs     int    `mapstructure:"epochs"`
	BatchSize  int    `mapstructure:"batch_size"`
	ImgSize    int    `mapstructure:"imgsz"`
	Freeze     int    `mapstructure:"freeze"`
	SavePeriod int    `mapstructure:"save_period"`
}

type WandbSettings struct {
	Project string `mapstructure:"project"`
	RunName string `mapstructure:"run_name"`
	Enabled bool   `mapstructure:"enabled"`
}

type RoboflowSettings struct {
	APIKey      string `mapstructure:"api_key"`
	Workspace   string `mapstructure:"workspace"`
	Project     string `mapstructure:"project"`
	Version     int    `mapstructure:"version"`
	ModelFormat string `mapstructure:"model_format"`
	Location    string `mapstructure:"location"`
	APIURL      string `mapstructure:"api_url"`
}

type TrainerSettings struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Dir     string   `mapstructure:"dir"`
}

type TrackerSettings struct {
	Backend  string `mapstructure:"backend"`
	Dir      string `mapstructure:"dir"`
	RedisURL string `mapstructure:"redis_url"`
	// RedisPrefix namespaces the redis keys. Empty keeps the tracker default.
	RedisPrefix string `mapstructure:"redis_prefix"`
	// RedisTTL expires finished runs. Zero keeps them forever.
	RedisTTL time.Duration `mapstructure:"redis_ttl"`
}

// Tracker backends.
const (
	TrackerLocal  = "local"
	TrackerRedis  = "redis"
	TrackerMemory = "memory"
)

// Device overrides.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Defaults returns the values used for optional keys.
func Defaults() Settings {
	return Settings{
		Model: ModelSettings{
			Weights:    "yolov8n.pt",
			SavePeriod: -1,
		},
		Wandb: WandbSettings{Enabled: true},
		Roboflow: RoboflowSettings{
			Location: "datasets",
			APIURL:   "https://api.roboflow.com",
		},
		Trainer: TrainerSettings{
			Command: "python3",
			Args:    []string{"-m", "yolotrain_bridge"},
		},
		Tracker: TrackerSettings{
			Backend:  TrackerLocal,
			Dir:      "runs/tracking",
			RedisURL: "redis://localhost:6379/0",
		},
		Device: DeviceAuto,
	}
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
)

// required lists the keys every run reads, in the order they are checked.
// roboflow.api_key is checked after credential resolution.
var required = []struct {
	key  string
	kind fieldKind
}{
	{"data.path", kindString},
	{"model.epochs", kindInt},
	{"model.batch_size", kindInt},
	{"model.imgsz", kindInt},
	{"model.freeze", kindInt},
	{"wandb.project", kindString},
	{"wandb.run_name", kindString},
	{"roboflow.workspace", kindString},
	{"roboflow.project", kindString},
	{"roboflow.version", kindInt},
	{"roboflow.model_format", kindString},
}

// RequiredKeys returns the dotted keys that must be present.
func RequiredKeys() []string {
	keys := make([]string, 0, len(required)+1)
	for _, r := range required {
		keys = append(keys, r.key)
	}
	return append(keys, "roboflow.api_key")
}

// Settings validates the required keys and decodes the typed view.
// The first problem found is returned as a *domain.FieldError.
func (c *Config) Settings() (*Settings, error) {
	for _, r := range required {
		v, ok := c.Lookup(r.key)
		if !ok || v == nil {
			return nil, &domain.FieldError{Key: r.key}
		}
		if err := checkKind(v, r.kind); err != nil {
			return nil, &domain.FieldError{Key: r.key, Err: err}
		}
	}

	s := Defaults()
	sections := []struct {
		key    string
		target any
	}{
		{"data", &s.Data},
		{"model", &s.Model},
		{"wandb", &s.Wandb},
		{"roboflow", &s.Roboflow},
		{"trainer", &s.Trainer},
		{"tracker", &s.Tracker},
	}
	for _, sec := range sections {
		v, ok := c.raw[sec.key]
		if !ok || v == nil {
			continue
		}
		if err := decode(v, sec.target); err != nil {
			return nil, &domain.FieldError{Key: sec.key, Err: err}
		}
	}
	if v, ok := c.raw["device"]; ok && v != nil {
		if err := decode(v, &s.Device); err != nil {
			return nil, &domain.FieldError{Key: "device", Err: err}
		}
	}

	if err := s.validateOptional(); err != nil {
		return nil, err
	}

	key, _ := resolveAPIKey(s.Roboflow.APIKey)
	if key == "" {
		return nil, &domain.FieldError{Key: "roboflow.api_key"}
	}
	s.Roboflow.APIKey = key

	return &s, nil
}

// APIKeySource reports where the credential would be taken from
// ("config", "env:NAME" or "" when absent).
func (c *Config) APIKeySource() string {
	var configured string
	if v, ok := c.Lookup("roboflow.api_key"); ok {
		configured, _ = v.(string)
	}
	_, source := resolveAPIKey(configured)
	return source
}

func (s *Settings) validateOptional() error {
	switch s.Tracker.Backend {
	case TrackerLocal, TrackerRedis, TrackerMemory:
	default:
		return &domain.FieldError{Key: "tracker.backend", Err: fmt.Errorf("unknown backend %q", s.Tracker.Backend)}
	}
	if s.Tracker.RedisTTL < 0 {
		return &domain.FieldError{Key: "tracker.redis_ttl", Err: fmt.Errorf("negative duration %s", s.Tracker.RedisTTL)}
	}
	switch s.Device {
	case DeviceAuto, DeviceCPU, DeviceCUDA:
	default:
		return &domain.FieldError{Key: "device", Err: fmt.Errorf("unknown device %q", s.Device)}
	}
	if s.Trainer.Command == "" {
		return &domain.FieldError{Key: "trainer.command"}
	}
	return nil
}

func checkKind(v any, kind fieldKind) error {
	switch kind {
	case kindString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case kindInt:
		switch v.(type) {
		case int, int64, uint64:
		default:
			return fmt.Errorf("expected integer, got %T", v)
		}
	}
	return nil
}

func decode(input any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: false,
		ZeroFields:       true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
