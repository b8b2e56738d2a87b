// Package roboflow downloads dataset versions exported by Roboflow.
package roboflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aretw0/yolotrain/internal/logging"
	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the public Roboflow API.
const DefaultBaseURL = "https://api.roboflow.com"

// DataFile is the dataset descriptor YOLO exports carry at their root.
const DataFile = "data.yaml"

var (
	ErrExportNotReady = errors.New("export is not ready")
	ErrUnauthorized   = errors.New("roboflow rejected the api key")
	ErrNotFound       = errors.New("dataset version not found")
)

// Client implements ports.DatasetService.
type Client struct {
	client    *resty.Client
	logger    *slog.Logger
	overwrite bool
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithOverwrite re-downloads datasets already present on disk.
func WithOverwrite(overwrite bool) Option {
	return func(c *Client) {
		c.overwrite = overwrite
	}
}

// WithTimeout bounds each HTTP request, including the archive download.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.SetTimeout(d)
	}
}

// New creates a client against baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		client: resty.New().SetBaseURL(baseURL),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type exportResponse struct {
	Export struct {
		Link string `json:"link"`
	} `json:"export"`
	Progress *float64 `json:"progress,omitempty"`
}

// Target is the directory a dataset version is extracted into.
func Target(ref domain.DatasetRef) string {
	return filepath.Join(ref.Location, fmt.Sprintf("%s-%d", ref.Project, ref.Version))
}

// Download materializes the dataset version under Target(ref) and rewrites
// its data.yaml split paths to point inside that directory.
func (c *Client) Download(ctx context.Context, ref domain.DatasetRef) (*domain.Dataset, error) {
	dest, err := filepath.Abs(Target(ref))
	if err != nil {
		return nil, fmt.Errorf("invalid dataset location: %w", err)
	}
	dataset := &domain.Dataset{
		Name:     ref.Project,
		Version:  ref.Version,
		Format:   ref.Format,
		Location: dest,
	}

	if !c.overwrite {
		if _, err := os.Stat(filepath.Join(dest, DataFile)); err == nil {
			c.logger.Info("dataset already downloaded", "dataset", ref.String(), "location", dest)
			return dataset, nil
		}
	}

	link, err := c.exportLink(ctx, ref)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(ref.Location, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dataset location: %w", err)
	}
	archive, err := os.CreateTemp(ref.Location, "roboflow-*.zip")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	archivePath := archive.Name()
	archive.Close()
	defer os.Remove(archivePath)

	c.logger.Info("downloading dataset", "dataset", ref.String())
	res, err := c.client.R().
		SetContext(ctx).
		SetOutput(archivePath).
		Get(link)
	if err != nil {
		return nil, fmt.Errorf("failed to download dataset archive: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("failed to download dataset archive: status %d", res.StatusCode())
	}

	if err := extract(archivePath, dest); err != nil {
		return nil, fmt.Errorf("failed to extract dataset: %w", err)
	}
	if err := rewriteDataFile(filepath.Join(dest, DataFile), dest); err != nil {
		return nil, err
	}

	c.logger.Info("dataset ready", "dataset", ref.String(), "location", dest)
	return dataset, nil
}

func (c *Client) exportLink(ctx context.Context, ref domain.DatasetRef) (string, error) {
	var body exportResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"workspace": ref.Workspace,
			"project":   ref.Project,
			"version":   strconv.Itoa(ref.Version),
			"format":    ref.Format,
		}).
		SetQueryParam("api_key", ref.APIKey).
		SetResult(&body).
		Get("/{workspace}/{project}/{version}/{format}")
	if err != nil {
		return "", fmt.Errorf("failed to request export: %w", err)
	}

	switch {
	case res.StatusCode() == 401 || res.StatusCode() == 403:
		return "", ErrUnauthorized
	case res.StatusCode() == 404:
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref.String())
	case res.IsError():
		c.logger.Error("roboflow returned error", "status_code", res.StatusCode(), "body", res.String())
		return "", fmt.Errorf("export request failed: status %d", res.StatusCode())
	}

	if body.Export.Link == "" {
		if body.Progress != nil {
			return "", fmt.Errorf("%w: %s at %.0f%%", ErrExportNotReady, ref.String(), *body.Progress*100)
		}
		return "", fmt.Errorf("%w: %s", ErrExportNotReady, ref.String())
	}
	return body.Export.Link, nil
}
