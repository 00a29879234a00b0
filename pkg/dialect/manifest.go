package dialect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"

	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/token"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Manifest declares a token family, the grammars over it and the dialects
// built from those grammars. File paths are relative to the manifest.
//
//	vocabulary: tokens.yaml
//	grammars: [sql.yaml, psql.yaml]
//	dialects:
//	  - {name: sql, grammar: sql, embeds: psql}
//	  - {name: sql-mysql, grammar: sql, vendor: mysql, branches: [mysql], embeds: psql-mysql}
//
// A manifest may instead borrow the family of an already registered dialect
// with family_of, to add grammars to an existing family.
type Manifest struct {
	Vocabulary string            `yaml:"vocabulary"`
	FamilyOf   string            `yaml:"family_of"`
	Grammars   []string          `yaml:"grammars"`
	Dialects   []DialectManifest `yaml:"dialects"`

	dir string
}

// DialectManifest declares one dialect.
type DialectManifest struct {
	Name        string   `yaml:"name"`
	Grammar     string   `yaml:"grammar"`
	Vendor      string   `yaml:"vendor"`
	Description string   `yaml:"description"`
	Branches    []string `yaml:"branches"`
	AllBranches bool     `yaml:"all_branches"`
	Embeds      string   `yaml:"embeds"`
}

// ParseManifest decodes a manifest. dir is the directory file paths are
// relative to.
func ParseManifest(data []byte, dir string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse dialect manifest: %w", err)
	}
	if (m.Vocabulary == "") == (m.FamilyOf == "") {
		return nil, errors.New("parse dialect manifest: exactly one of vocabulary and family_of is required")
	}
	m.dir = dir
	return &m, nil
}

// LoadManifest reads a manifest from fsys.
func LoadManifest(fsys fs.FS, name string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("load dialect manifest: %w", err)
	}
	return ParseManifest(data, path.Dir(name))
}

// Family returns the token family the manifest's grammars are built over.
func (m *Manifest) Family(fsys fs.FS, reg *Registry) (*token.Family, error) {
	if m.FamilyOf != "" {
		d, err := reg.Get(m.FamilyOf)
		if err != nil {
			return nil, fmt.Errorf("dialect manifest: family_of: %w", err)
		}
		return d.Family(), nil
	}
	data, err := fs.ReadFile(fsys, path.Join(m.dir, m.Vocabulary))
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	v, err := token.ParseVocabulary(data)
	if err != nil {
		return nil, err
	}
	return v.NewFamily()
}

// BuildGrammars builds every grammar of the manifest in parallel and returns
// them by name. Every defect of every grammar is reported.
func (m *Manifest) BuildGrammars(ctx context.Context, fsys fs.FS, family *token.Family) (map[string]*grammar.Grammar, error) {
	built := make([]*grammar.Grammar, len(m.Grammars))
	errs := make([]error, len(m.Grammars))

	g, ctx := errgroup.WithContext(ctx)
	for i, file := range m.Grammars {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			def, err := grammar.LoadDefinition(fsys, path.Join(m.dir, file))
			if err != nil {
				errs[i] = err
				return nil
			}
			built[i], errs[i] = def.Build(family)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	out := make(map[string]*grammar.Grammar, len(built))
	for _, gr := range built {
		if _, dup := out[gr.Name()]; dup {
			return nil, &grammar.ConfigError{Grammar: gr.Name(), Kind: grammar.ErrInvalidDefinition, Detail: "grammar declared twice"}
		}
		out[gr.Name()] = gr
	}
	return out, nil
}

// Register builds the manifest's grammars and registers its dialects.
func (m *Manifest) Register(ctx context.Context, fsys fs.FS, reg *Registry) error {
	family, err := m.Family(fsys, reg)
	if err != nil {
		return err
	}
	grammars, err := m.BuildGrammars(ctx, fsys, family)
	if err != nil {
		reg.logger.Error("grammar configuration error", slog.Any("error", err))
		return err
	}

	var errs []error
	for _, dm := range m.Dialects {
		gr, ok := grammars[dm.Grammar]
		if !ok {
			errs = append(errs, fmt.Errorf("dialect %s: grammar %q not declared in manifest", dm.Name, dm.Grammar))
			continue
		}
		b := NewDialect(dm.Name, gr).Vendor(dm.Vendor).Description(dm.Description).Embeds(dm.Embeds)
		if dm.AllBranches {
			b.AllBranches()
		} else {
			b.Branches(dm.Branches...)
		}
		d, err := b.Build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := reg.Register(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
