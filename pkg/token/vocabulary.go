package token

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the declarative description of a family's token types.
//
//	keywords:
//	  common: [select, from]
//	  psql: [declare, exception]     # affinity: comma-separated languages
//	punctuation: {COMMA: ",", SEMICOLON: ";"}
//	operators: {EQ: "=", CONCAT: "||"}
//	aliases: {CHAR: CHARACTER}
//	classes: {BIND_VARIABLE: identifier}
type Vocabulary struct {
	Family      string              `yaml:"family"`
	Keywords    map[string][]string `yaml:"keywords"`
	Punctuation map[string]string   `yaml:"punctuation"`
	Operators   map[string]string   `yaml:"operators"`
	Aliases     map[string]string   `yaml:"aliases"`
	Classes     map[string]string   `yaml:"classes"`
}

// commonAffinity is the keywords group recognized by every language.
const commonAffinity = "common"

// ParseVocabulary decodes a YAML vocabulary.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if v.Family == "" {
		return nil, errors.New("parse vocabulary: family is required")
	}
	return &v, nil
}

// NewFamily registers the vocabulary into a fresh family. Registration is
// ordered by name so type IDs are stable across runs. All defects are
// reported, joined.
func (v *Vocabulary) NewFamily() (*Family, error) {
	f := NewFamily(v.Family)
	var errs []error

	for _, group := range sortedKeys(v.Keywords) {
		var affinity []string
		if group != commonAffinity {
			affinity = strings.Split(group, ",")
		}
		words := append([]string(nil), v.Keywords[group]...)
		sort.Strings(words)
		for _, w := range words {
			if _, err := f.Keyword(w, affinity...); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, name := range sortedKeys(v.Punctuation) {
		if _, err := f.Symbol(name, v.Punctuation[name], CategoryPunctuation); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range sortedKeys(v.Operators) {
		if _, err := f.Symbol(name, v.Operators[name], CategoryOperator); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range sortedKeys(v.Classes) {
		cat, ok := ParseCategory(v.Classes[name])
		if !ok {
			errs = append(errs, fmt.Errorf("token family %s: class %s: unknown category %q", v.Family, name, v.Classes[name]))
			continue
		}
		if _, err := f.Register(name, cat); err != nil {
			errs = append(errs, err)
		}
	}
	for _, alias := range sortedKeys(v.Aliases) {
		if _, err := f.Alias(alias, v.Aliases[alias]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
