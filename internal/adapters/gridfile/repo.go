package gridfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samirrijal/safespot/internal/core/navgrid"
)

// Repo implements ports.GridRepository over a directory of <name>.yaml files.
type Repo struct {
	dir string
}

func NewRepo(dir string) *Repo { return &Repo{dir: dir} }

func (r *Repo) path(name string) string {
	return filepath.Join(r.dir, filepath.Base(name)+".yaml")
}

func (r *Repo) LoadGrid(_ context.Context, name string) (*navgrid.Spec, error) {
	spec, err := ReadFile(r.path(name))
	if err != nil {
		return nil, err
	}
	if spec.Name == "" {
		spec.Name = name
	}
	return spec, nil
}

func (r *Repo) SaveGrid(_ context.Context, spec *navgrid.Spec) error {
	tmp, err := os.CreateTemp(r.dir, spec.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, spec); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path(spec.Name))
}
