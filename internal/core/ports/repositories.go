package ports

import (
	"context"

	"github.com/samirrijal/safespot/internal/core/navgrid"
)

// GridRepository persists navigation grids and their default safe zones.
type GridRepository interface {
	// LoadGrid returns the navgrid.Spec stored under name.
	LoadGrid(ctx context.Context, name string) (*navgrid.Spec, error)
	// SaveGrid replaces the stored grid with the same name.
	SaveGrid(ctx context.Context, spec *navgrid.Spec) error
}
