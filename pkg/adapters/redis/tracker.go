package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/yolotrain/pkg/adapters/internal/files"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/aretw0/yolotrain/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the tracker.
const DefaultPrefix = "yolotrain:"

// Tracker implements ports.Tracker using Redis.
//
// A run is stored under <prefix>run:<project>:<name> as a hash holding its
// status and configuration, a list "<key>:history" of JSON log entries and a
// hash "<key>:artifacts" of JSON manifests keyed by artifact name.
type Tracker struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(t *Tracker) {
		t.prefix = prefix
	}
}

// WithTTL expires run keys after the given duration once the run finishes.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		t.ttl = ttl
	}
}

// New connects to the Redis server at url (redis://host:port/db).
func New(url string, opts ...Option) (*Tracker, error) {
	o, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(o), opts...), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Tracker {
	t := &Tracker{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Close releases the underlying client.
func (t *Tracker) Close() error {
	return t.client.Close()
}

// Key returns the hash key of a run.
func (t *Tracker) Key(project, name string) string {
	return t.prefix + "run:" + project + ":" + name
}

// Start records a new running run.
func (t *Tracker) Start(ctx context.Context, spec domain.RunSpec) (ports.Run, error) {
	if spec.Project == "" || spec.Name == "" {
		return nil, fmt.Errorf("run project and name cannot be empty")
	}
	cfg, err := json.Marshal(spec.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run config: %w", err)
	}

	key := t.Key(spec.Project, spec.Name)
	pipe := t.client.TxPipeline()
	pipe.Del(ctx, key, key+":history", key+":artifacts")
	pipe.HSet(ctx, key,
		"project", spec.Project,
		"name", spec.Name,
		"status", string(domain.RunRunning),
		"start_time", time.Now().UTC().Format(time.RFC3339Nano),
		"config", string(cfg),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis error starting run: %w", err)
	}
	return &run{tracker: t, key: key}, nil
}

type run struct {
	tracker *Tracker
	key     string
	closed  bool
}

func (r *run) Log(ctx context.Context, values map[string]any) error {
	if r.closed {
		return domain.ErrRunClosed
	}
	entry := make(map[string]any, len(values)+1)
	for k, v := range values {
		img, ok := v.(domain.Image)
		if !ok {
			entry[k] = v
			continue
		}
		// The image stays on disk; only its reference and digest are stored.
		_, sum, err := files.Digest(img.Path)
		if err != nil {
			return fmt.Errorf("failed to read image %s: %w", k, err)
		}
		entry[k] = files.ImageRecord{Type: files.ImageType, Path: img.Path, Caption: img.Caption, SHA256: sum}
	}
	entry["_timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}
	if err := r.tracker.client.RPush(ctx, r.key+":history", data).Err(); err != nil {
		return fmt.Errorf("redis error logging: %w", err)
	}
	return nil
}

func (r *run) LogArtifact(ctx context.Context, artifact *domain.Artifact) error {
	if r.closed {
		return domain.ErrRunClosed
	}
	manifest, err := files.Describe(artifact)
	if err != nil {
		return err
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := r.tracker.client.HSet(ctx, r.key+":artifacts", artifact.Name, data).Err(); err != nil {
		return fmt.Errorf("redis error logging artifact: %w", err)
	}
	return nil
}

func (r *run) Finish(ctx context.Context, status domain.RunStatus) error {
	if r.closed {
		return domain.ErrRunClosed
	}
	pipe := r.tracker.client.TxPipeline()
	pipe.HSet(ctx, r.key,
		"status", string(status),
		"end_time", time.Now().UTC().Format(time.RFC3339Nano),
	)
	if ttl := r.tracker.ttl; ttl > 0 {
		for _, k := range []string{r.key, r.key + ":history", r.key + ":artifacts"} {
			pipe.Expire(ctx, k, ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis error finishing run: %w", err)
	}
	r.closed = true
	return nil
}
