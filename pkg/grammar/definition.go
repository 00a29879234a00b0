package grammar

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/leapstack-labs/sqlgrammar/pkg/token"
	"gopkg.in/yaml.v3"
)

// Definition is the declarative description of a grammar as loaded from
// YAML. Element order is preserved from the document.
//
//	name: sql
//	language: sql
//	root: script
//	branches: [mysql, sqlite]
//	elements:
//	  script:    {iteration: statement, separator: SEMICOLON, trailing: true}
//	  statement: {one_of: [select_statement, "replace_statement@mysql"]}
//	  column:    {leaf: IDENT}
//	  block:     {chameleon: psql, open: DOLLAR_QUOTE, close: DOLLAR_QUOTE}
type Definition struct {
	Name     string
	Language string
	Root     string
	Branches []string
	Elements []ElementDefinition
}

// ElementDefinition describes one element. Exactly one of Leaf, Sequence,
// OneOf, Iteration, Wrapper and Chameleon is set.
type ElementDefinition struct {
	Name       string   `yaml:"-"`
	Line       int      `yaml:"-"`
	Leaf       string   `yaml:"leaf"`
	Identifier bool     `yaml:"identifier"`
	Sequence   []string `yaml:"sequence"`
	OneOf      []string `yaml:"one_of"`
	Iteration  string   `yaml:"iteration"`
	Separator  string   `yaml:"separator"`
	Trailing   bool     `yaml:"trailing"`
	Wrap       string   `yaml:"wrap"`
	Wrapper    string   `yaml:"wrapper"`
	Chameleon  string   `yaml:"chameleon"`
	Open       string   `yaml:"open"`
	Close      string   `yaml:"close"`
	Optional   bool     `yaml:"optional"`
}

type definitionDoc struct {
	Name     string    `yaml:"name"`
	Language string    `yaml:"language"`
	Root     string    `yaml:"root"`
	Branches []string  `yaml:"branches"`
	Elements yaml.Node `yaml:"elements"`
}

// ParseDefinition decodes a YAML grammar definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var doc definitionDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse grammar definition: %w", err)
	}
	if doc.Name == "" {
		return nil, configErr("?", "", ErrInvalidDefinition, "name is required")
	}
	def := &Definition{
		Name:     doc.Name,
		Language: doc.Language,
		Root:     doc.Root,
		Branches: doc.Branches,
	}
	if def.Language == "" {
		def.Language = def.Name
	}
	if doc.Elements.Kind != yaml.MappingNode {
		return nil, configErr(doc.Name, "", ErrInvalidDefinition, "elements must be a mapping")
	}

	var errs []error
	for i := 0; i+1 < len(doc.Elements.Content); i += 2 {
		key, value := doc.Elements.Content[i], doc.Elements.Content[i+1]
		var ed ElementDefinition
		if err := value.Decode(&ed); err != nil {
			errs = append(errs, configErr(doc.Name, key.Value, ErrInvalidDefinition, "line %d: %v", key.Line, err))
			continue
		}
		ed.Name = key.Value
		ed.Line = key.Line
		def.Elements = append(def.Elements, ed)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return def, nil
}

// LoadDefinition reads and decodes a grammar definition from fsys.
func LoadDefinition(fsys fs.FS, path string) (*Definition, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("load grammar definition: %w", err)
	}
	return ParseDefinition(data)
}

func (ed ElementDefinition) kinds() []Kind {
	var ks []Kind
	if ed.Leaf != "" {
		ks = append(ks, KindLeaf)
	}
	if ed.Sequence != nil {
		ks = append(ks, KindSequence)
	}
	if ed.OneOf != nil {
		ks = append(ks, KindOneOf)
	}
	if ed.Iteration != "" {
		ks = append(ks, KindIteration)
	}
	if ed.Wrapper != "" {
		ks = append(ks, KindWrapper)
	}
	if ed.Chameleon != "" {
		ks = append(ks, KindChameleon)
	}
	return ks
}

// Builder converts the definition into a builder over family.
func (d *Definition) Builder(family *token.Family) (*Builder, error) {
	b := NewBuilder(d.Name, d.Language, family).Branches(d.Branches...).Root(d.Root)
	var errs []error
	for _, ed := range d.Elements {
		kinds := ed.kinds()
		if len(kinds) != 1 {
			errs = append(errs, configErr(d.Name, ed.Name, ErrInvalidDefinition,
				"line %d: expected exactly one element kind, found %d", ed.Line, len(kinds)))
			continue
		}
		var opts []ElementOption
		if ed.Optional {
			opts = append(opts, Optional())
		}
		switch kinds[0] {
		case KindLeaf:
			if ed.Identifier {
				opts = append(opts, AsIdentifier())
			}
			b.Leaf(ed.Name, ed.Leaf, opts...)
		case KindSequence:
			b.Sequence(ed.Name, ed.Sequence, opts...)
		case KindOneOf:
			b.OneOf(ed.Name, ed.OneOf, opts...)
		case KindIteration:
			wrap, err := ParseWrapPolicy(ed.Wrap)
			if err != nil {
				errs = append(errs, configErr(d.Name, ed.Name, ErrInvalidDefinition, "line %d: %v", ed.Line, err))
				continue
			}
			opts = append(opts, Wrapping(wrap))
			if ed.Separator != "" {
				opts = append(opts, Separated(ed.Separator))
			}
			if ed.Trailing {
				opts = append(opts, Trailing())
			}
			b.Iteration(ed.Name, ed.Iteration, opts...)
		case KindWrapper:
			b.Wrapper(ed.Name, ed.Wrapper, opts...)
		case KindChameleon:
			b.Chameleon(ed.Name, ed.Chameleon, ed.Open, ed.Close, opts...)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b, nil
}

// Build converts and builds the definition over family.
func (d *Definition) Build(family *token.Family) (*Grammar, error) {
	b, err := d.Builder(family)
	if err != nil {
		return nil, err
	}
	return b.Build()
}
