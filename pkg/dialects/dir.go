package dialects

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
)

// DirManifest is the manifest file expected at the top of a grammar
// directory.
const DirManifest = "manifest.yaml"

// RegisterDir registers the dialects declared by the manifest in dir. The
// manifest may extend a built-in family with family_of.
func RegisterDir(ctx context.Context, reg *dialect.Registry, dir string) error {
	if err := register(ctx, reg, dir, DirManifest); err != nil {
		return fmt.Errorf("grammar dir %s: %w", dir, err)
	}
	return nil
}

// RegisterManifest registers the dialects declared by the manifest file at
// path. Grammar files are resolved relative to it.
func RegisterManifest(ctx context.Context, reg *dialect.Registry, path string) error {
	if err := register(ctx, reg, filepath.Dir(path), filepath.Base(path)); err != nil {
		return fmt.Errorf("manifest %s: %w", path, err)
	}
	return nil
}

func register(ctx context.Context, reg *dialect.Registry, dir, name string) error {
	fsys := os.DirFS(dir)
	m, err := dialect.LoadManifest(fsys, name)
	if err != nil {
		return err
	}
	return m.Register(ctx, fsys, reg)
}

// Load registers the built-in dialects and those of every grammar
// directory into reg.
func Load(ctx context.Context, reg *dialect.Registry, dirs ...string) error {
	if err := RegisterAll(ctx, reg); err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := RegisterDir(ctx, reg, dir); err != nil {
			return err
		}
	}
	if len(dirs) == 0 {
		return nil
	}
	return reg.Validate(ctx)
}
