package ports

import (
	"context"

	"github.com/aretw0/yolotrain/pkg/domain"
)

// Tracker opens experiment-tracker runs.
type Tracker interface {
	Start(ctx context.Context, spec domain.RunSpec) (Run, error)
}

// Run is one open experiment-tracker run.
type Run interface {
	// Log records a mapping of values. Values are numbers, strings or
	// domain.Image.
	Log(ctx context.Context, values map[string]any) error

	// LogArtifact uploads the artifact's files under its name.
	LogArtifact(ctx context.Context, artifact *domain.Artifact) error

	// Finish closes the run. Further calls fail.
	Finish(ctx context.Context, status domain.RunStatus) error
}
