package token

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// ErrDuplicateName is returned when a canonical name is registered twice in one family.
var ErrDuplicateName = errors.New("token name already registered")

// ErrUnknownName is returned when an alias or lookup refers to an unregistered name.
var ErrUnknownName = errors.New("token name not registered")

var folder = cases.Fold()

// Family is the registry of token types for one dialect family. Every
// language and vendor dialect of the family shares its types, so a grammar
// for one language can be embedded inside another without re-typing tokens.
//
// Registration happens once at dialect initialization; lookups are safe for
// concurrent use.
type Family struct {
	name string

	mu       sync.RWMutex
	types    []*Type
	byName   map[string]*Type
	keywords map[string][]*Type // folded word -> types (one per affinity set)
	symbols  map[string]*Type

	// Pre-registered classes.
	EOF     *Type
	Illegal *Type
	Ident   *Type
	Number  *Type
	String  *Type
	Opaque  *Type
}

// NewFamily creates a family with the special and class types registered.
func NewFamily(name string) *Family {
	f := &Family{
		name:     name,
		byName:   make(map[string]*Type),
		keywords: make(map[string][]*Type),
		symbols:  make(map[string]*Type),
	}
	f.EOF = f.mustAdd(EOF, "", CategorySpecial, nil)
	f.Illegal = f.mustAdd(ILLEGAL, "", CategorySpecial, nil)
	f.Ident = f.mustAdd(IDENT, "", CategoryIdentifier, nil)
	f.Number = f.mustAdd(NUMBER, "", CategoryLiteral, nil)
	f.String = f.mustAdd(STRING, "", CategoryLiteral, nil)
	f.Opaque = f.mustAdd(OPAQUE, "", CategoryOpaque, nil)
	return f
}

// Name returns the family name.
func (f *Family) Name() string { return f.name }

func (f *Family) mustAdd(name, text string, cat Category, affinity []string) *Type {
	t, err := f.add(name, text, cat, affinity)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *Family) add(name, text string, cat Category, affinity []string) (*Type, error) {
	key := strings.ToUpper(name)
	if key == "" {
		return nil, fmt.Errorf("token family %s: empty token name", f.name)
	}
	if _, exists := f.byName[key]; exists {
		return nil, fmt.Errorf("token family %s: %q: %w", f.name, key, ErrDuplicateName)
	}
	aff := normalizeAffinity(affinity)
	t := &Type{
		id:       int32(len(f.types)),
		name:     key,
		text:     text,
		category: cat,
		affinity: aff,
		family:   f,
	}
	f.types = append(f.types, t)
	f.byName[key] = t
	return t, nil
}

func normalizeAffinity(affinity []string) []string {
	if len(affinity) == 0 {
		return nil
	}
	out := make([]string, 0, len(affinity))
	for _, a := range affinity {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

// Register registers a token type of the given category. Names are
// canonicalized to upper case.
func (f *Family) Register(name string, cat Category, affinity ...string) (*Type, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.add(name, "", cat, affinity)
}

// Keyword registers a keyword. The canonical name is the upper-cased word.
func (f *Family) Keyword(word string, affinity ...string) (*Type, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.add(word, strings.ToUpper(word), CategoryKeyword, affinity)
	if err != nil {
		return nil, err
	}
	folded := folder.String(word)
	f.keywords[folded] = append(f.keywords[folded], t)
	return t, nil
}

// Symbol registers an operator or punctuation type matched by its exact text.
func (f *Family) Symbol(name, text string, cat Category, affinity ...string) (*Type, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, exists := f.symbols[text]; exists {
		return nil, fmt.Errorf("token family %s: symbol %q already bound to %s: %w", f.name, text, prev.name, ErrDuplicateName)
	}
	t, err := f.add(name, text, cat, affinity)
	if err != nil {
		return nil, err
	}
	f.symbols[text] = t
	return t, nil
}

// Alias registers a keyword that is interchangeable with an existing type,
// e.g. a vendor spelling of a standard keyword.
func (f *Family) Alias(word, target string) (*Type, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	canonical, ok := f.byName[strings.ToUpper(target)]
	if !ok {
		return nil, fmt.Errorf("token family %s: alias %q of %q: %w", f.name, word, target, ErrUnknownName)
	}
	t, err := f.add(word, strings.ToUpper(word), canonical.category, canonical.affinity)
	if err != nil {
		return nil, err
	}
	t.canonical = canonical.Canonical()
	if t.category == CategoryKeyword {
		folded := folder.String(word)
		f.keywords[folded] = append(f.keywords[folded], t)
	}
	return t, nil
}

// Lookup returns the type with the given canonical name.
func (f *Family) Lookup(name string) (*Type, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.byName[strings.ToUpper(name)]
	return t, ok
}

// LookupKeyword returns the keyword type for a word as recognized by the
// given language. Words whose keyword type is not in the language's affinity
// are not keywords there.
func (f *Family) LookupKeyword(word, language string) (*Type, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, t := range f.keywords[folder.String(word)] {
		if t.RecognizedBy(language) {
			return t, true
		}
	}
	return nil, false
}

// LookupSymbol returns the symbol type with the given text.
func (f *Family) LookupSymbol(text string) (*Type, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.symbols[text]
	return t, ok
}

// Symbols returns a copy of the symbol table, keyed by source text.
func (f *Family) Symbols() map[string]*Type {
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make(map[string]*Type, len(f.symbols))
	for k, v := range f.symbols {
		result[k] = v
	}
	return result
}

// Types returns all registered types in registration order.
func (f *Family) Types() []*Type {
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make([]*Type, len(f.types))
	copy(result, f.types)
	return result
}

// Len returns the number of registered types.
func (f *Family) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.types)
}
