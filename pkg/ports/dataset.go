package ports

import (
	"context"

	"github.com/aretw0/yolotrain/pkg/domain"
)

// DatasetService downloads, extracts and converts a hosted dataset version.
type DatasetService interface {
	Download(ctx context.Context, ref domain.DatasetRef) (*domain.Dataset, error)
}
