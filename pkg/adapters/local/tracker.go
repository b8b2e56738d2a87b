// Package local implements an experiment tracker on the local filesystem.
//
// Each run lives in <base>/<project>/<run>/:
//
//	run.json          status, timestamps and the run configuration
//	history.jsonl     one line per Log call
//	media/            copies of logged images
//	artifacts/<name>/ artifact files plus manifest.json
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/yolotrain/pkg/adapters/internal/files"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/aretw0/yolotrain/pkg/ports"
)

// Tracker implements ports.Tracker using the local filesystem.
type Tracker struct {
	BasePath string
	now      func() time.Time
}

// NewTracker creates a tracker rooted at basePath.
// If basePath is empty, it defaults to "runs/tracking".
func NewTracker(basePath string) *Tracker {
	if basePath == "" {
		basePath = filepath.Join("runs", "tracking")
	}
	return &Tracker{BasePath: basePath, now: time.Now}
}

// RunInfo is the content of run.json.
type RunInfo struct {
	Project   string           `json:"project"`
	Name      string           `json:"name"`
	Status    domain.RunStatus `json:"status"`
	StartTime time.Time        `json:"start_time"`
	EndTime   *time.Time       `json:"end_time,omitempty"`
	Config    map[string]any   `json:"config,omitempty"`
}

// Start creates the run directory and writes run.json. Starting a run that
// already exists discards its history, media and artifacts.
func (t *Tracker) Start(ctx context.Context, spec domain.RunSpec) (ports.Run, error) {
	if spec.Project == "" || spec.Name == "" {
		return nil, fmt.Errorf("run project and name cannot be empty")
	}
	dir := filepath.Join(t.BasePath, spec.Project, spec.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure run directory: %w", err)
	}
	for _, name := range []string{"history.jsonl", "media", "artifacts"} {
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("failed to reset run directory: %w", err)
		}
	}

	r := &run{
		dir: dir,
		now: t.now,
		info: RunInfo{
			Project:   spec.Project,
			Name:      spec.Name,
			Status:    domain.RunRunning,
			StartTime: t.now().UTC(),
			Config:    spec.Config,
		},
	}
	if err := r.writeInfo(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the directory of a run.
func (t *Tracker) Dir(project, name string) string {
	return filepath.Join(t.BasePath, project, name)
}

type run struct {
	dir  string
	now  func() time.Time
	info RunInfo
	step int
}

func (r *run) Log(ctx context.Context, values map[string]any) error {
	if r.info.Status != domain.RunRunning {
		return domain.ErrRunClosed
	}

	entry := make(map[string]any, len(values)+2)
	for k, v := range values {
		img, ok := v.(domain.Image)
		if !ok {
			entry[k] = v
			continue
		}
		stored, err := r.storeImage(k, img)
		if err != nil {
			return err
		}
		entry[k] = stored
	}
	entry["_step"] = r.step
	entry["_timestamp"] = r.now().UTC().Format(time.RFC3339Nano)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(r.dir, "history.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	r.step++
	return f.Close()
}

func (r *run) storeImage(key string, img domain.Image) (files.ImageRecord, error) {
	rel := filepath.Join("media", fmt.Sprintf("%s_%d%s", sanitize(key), r.step, filepath.Ext(img.Path)))
	if err := files.Copy(img.Path, filepath.Join(r.dir, rel)); err != nil {
		return files.ImageRecord{}, fmt.Errorf("failed to store image %s: %w", key, err)
	}
	_, sum, err := files.Digest(filepath.Join(r.dir, rel))
	if err != nil {
		return files.ImageRecord{}, err
	}
	return files.ImageRecord{Type: files.ImageType, Path: filepath.ToSlash(rel), Caption: img.Caption, SHA256: sum}, nil
}

func (r *run) LogArtifact(ctx context.Context, artifact *domain.Artifact) error {
	if r.info.Status != domain.RunRunning {
		return domain.ErrRunClosed
	}
	manifest, err := files.Describe(artifact)
	if err != nil {
		return err
	}

	dir := filepath.Join(r.dir, "artifacts", sanitize(artifact.Name))
	for i, entry := range manifest.Files {
		dst := filepath.Join(dir, filepath.Base(entry.Path))
		if err := files.Copy(entry.Path, dst); err != nil {
			return fmt.Errorf("failed to store artifact file: %w", err)
		}
		manifest.Files[i].Path = filepath.Base(entry.Path)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0644)
}

func (r *run) Finish(ctx context.Context, status domain.RunStatus) error {
	if r.info.Status != domain.RunRunning {
		return domain.ErrRunClosed
	}
	end := r.now().UTC()
	r.info.Status = status
	r.info.EndTime = &end
	return r.writeInfo()
}

func (r *run) writeInfo() error {
	data, err := json.MarshalIndent(r.info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, "run.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write run info: %w", err)
	}
	return nil
}

// sanitize keeps names usable as single path elements.
func sanitize(name string) string {
	out := []rune(name)
	for i, c := range out {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out[i] = '_'
		}
	}
	if s := string(out); s != "" && s != "." && s != ".." {
		return s
	}
	return "_"
}
