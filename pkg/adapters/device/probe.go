// Package device detects the compute device available to the trainer.
package device

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/aretw0/yolotrain/internal/logging"
	"github.com/klauspost/cpuid/v2"
)

// OverrideEnv forces the probe result: "cpu" or "cuda".
const OverrideEnv = "YOLOTRAIN_DEVICE"

// NvidiaSMI probes for CUDA devices by listing them with nvidia-smi.
type NvidiaSMI struct {
	// Path to the binary, "nvidia-smi" by default.
	Path    string
	Timeout time.Duration
	Logger  *slog.Logger

	lookupEnv func(string) (string, bool)
}

// NewNvidiaSMI returns a probe using the nvidia-smi found on PATH.
func NewNvidiaSMI(logger *slog.Logger) *NvidiaSMI {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NvidiaSMI{
		Path:      "nvidia-smi",
		Timeout:   10 * time.Second,
		Logger:    logger,
		lookupEnv: os.LookupEnv,
	}
}

// AcceleratorAvailable reports whether at least one GPU is listed.
// A missing or failing nvidia-smi means no accelerator.
func (p *NvidiaSMI) AcceleratorAvailable(ctx context.Context) (bool, string) {
	lookup := p.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(OverrideEnv); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "cpu":
			return false, ""
		case "cuda", "gpu":
			return true, ""
		default:
			p.logger().Warn("ignoring unknown device override", "env", OverrideEnv, "value", v)
		}
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	path := p.Path
	if path == "" {
		path = "nvidia-smi"
	}
	out, err := exec.CommandContext(ctx, path, "-L").Output()
	if err != nil {
		p.logger().Debug("nvidia-smi unavailable", "err", err)
		return false, ""
	}
	return ParseGPUList(out)
}

func (p *NvidiaSMI) logger() *slog.Logger {
	if p.Logger == nil {
		return logging.NewNop()
	}
	return p.Logger
}

// ParseGPUList reads `nvidia-smi -L` output, e.g.
//
//	GPU 0: NVIDIA A100-SXM4-40GB (UUID: GPU-...)
//
// and returns whether a GPU was listed along with the first one's name.
func ParseGPUList(out []byte) (bool, string) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "GPU ") {
			continue
		}
		name := line
		if _, rest, ok := strings.Cut(line, ": "); ok {
			name = rest
		}
		if i := strings.Index(name, " (UUID"); i >= 0 {
			name = name[:i]
		}
		return true, name
	}
	return false, ""
}

// CPUName returns the processor brand string, or "cpu" if unknown.
func CPUName() string {
	if name := strings.TrimSpace(cpuid.CPU.BrandName); name != "" {
		return name
	}
	return "cpu"
}

// Static is a probe with a fixed answer.
type Static struct {
	Available bool
	Name      string
}

// AcceleratorAvailable returns the fixed answer.
func (s Static) AcceleratorAvailable(context.Context) (bool, string) {
	return s.Available, s.Name
}
