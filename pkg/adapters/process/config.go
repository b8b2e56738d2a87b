package process

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ArgEnvPrefix prefixes every operation argument passed to the bridge.
const ArgEnvPrefix = "YOLOTRAIN_ARG_"

// Bridge operations.
const (
	OpLoad  = "load"
	OpTrain = "train"
	OpVal   = "val"
)

// BridgeConfig describes how to start the trainer bridge program.
type BridgeConfig struct {
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Dir         string            `yaml:"dir" json:"dir"`
	Environment map[string]string `yaml:"env" json:"env"`
}

// EncodeArgs turns operation arguments into environment assignments.
// Arguments never become command-line flags, which rules out flag injection
// through configuration values.
//
// Values serialization strategy:
//   - Primitives (string, number, bool): fmt.Sprintf
//   - Complex (Map, Slice): json.Marshal
func EncodeArgs(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(args))
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s%s=%s", ArgEnvPrefix, strings.ToUpper(k), encodeValue(args[k])))
	}
	return env
}

func encodeValue(v any) string {
	switch v.(type) {
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	case nil:
		return ""
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		// Fallback to Go format if marshal fails
		return fmt.Sprintf("%v", v)
	}
}

func (c BridgeConfig) environ() []string {
	keys := make([]string, 0, len(c.Environment))
	for k := range c.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+c.Environment[k])
	}
	return env
}
