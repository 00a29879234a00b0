package dialect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/sqlgrammar/pkg/grammar"
	"github.com/leapstack-labs/sqlgrammar/pkg/lookahead"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Registry maps dialect names to dialects. It is created explicitly during
// initialization and passed to every consumer; registration is expected to
// finish before the first parse, lookups are safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	dialects map[string]*Dialect

	embedMu    sync.RWMutex
	embeddings map[string]*Embedding
	flight     singleflight.Group
}

// NewRegistry creates an empty registry. A nil logger discards output.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger:     logger,
		dialects:   make(map[string]*Dialect),
		embeddings: make(map[string]*Embedding),
	}
}

// Register adds a dialect.
func (r *Registry) Register(d *Dialect) error {
	if d == nil || d.Name == "" {
		return ErrDialectRequired
	}
	if d.grammar == nil || d.resolver == nil {
		return fmt.Errorf("dialect %s: not built", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.dialects[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDialectExists, d.Name)
	}
	r.dialects[d.Name] = d
	r.logger.Debug("registered dialect",
		slog.String("dialect", d.Name),
		slog.String("language", d.Language),
		slog.String("branches", d.branches.Key()),
		slog.Int("elements", d.grammar.Len()))
	return nil
}

// MustRegister is Register for statically known dialects.
func (r *Registry) MustRegister(d *Dialect) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns a dialect by name.
func (r *Registry) Lookup(name string) (*Dialect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dialects[strings.ToLower(name)]
	return d, ok
}

// Get returns a dialect by name or ErrUnknownDialect.
func (r *Registry) Get(name string) (*Dialect, error) {
	if name == "" {
		return nil, ErrDialectRequired
	}
	d, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownDialect, name, strings.Join(r.List(), ", "))
	}
	return d, nil
}

// List returns all registered dialect names (sorted).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.dialects))
	for name := range r.dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dialects returns all registered dialects ordered by name.
func (r *Registry) Dialects() []*Dialect {
	names := r.List()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Dialect, 0, len(names))
	for _, n := range names {
		out = append(out, r.dialects[n])
	}
	return out
}

// Embedding is the resolved pairing of a host dialect with the dialect of
// its chameleon regions. One embedding is built per pair and shared by every
// region of that pair.
type Embedding struct {
	Host     *Dialect
	Embedded *Dialect
	// View holds the embedded grammar's caches under the embedded
	// dialect's default branches.
	View     *grammar.View
	Resolver *lookahead.Resolver
}

// resolveEmbedded picks the dialect for a chameleon of host. The host's
// declared counterpart wins when it speaks the chameleon's language, then
// the same vendor's dialect of that language, then the language's generic
// dialect.
func (r *Registry) resolveEmbedded(host *Dialect, chameleon *grammar.Element) (*Dialect, bool) {
	lang := strings.ToLower(chameleon.EmbeddedDialect())
	if lang == "" {
		return nil, false
	}
	if host.Embedded != "" {
		if d, ok := r.Lookup(host.Embedded); ok && (d.Language == lang || d.Name == lang) {
			return d, true
		}
	}
	if host.Vendor != "" {
		if d, ok := r.Lookup(lang + "-" + host.Vendor); ok {
			return d, true
		}
	}
	return r.Lookup(lang)
}

// Embedding resolves the embedded dialect of a chameleon reached while
// parsing host. It reports false for an unmapped chameleon; the region is
// then opaque. Concurrent first use of a pair builds the embedding once.
func (r *Registry) Embedding(host *Dialect, chameleon *grammar.Element) (*Embedding, bool) {
	if host == nil || chameleon == nil || chameleon.Kind() != grammar.KindChameleon {
		return nil, false
	}
	embedded, ok := r.resolveEmbedded(host, chameleon)
	if !ok {
		r.logger.Debug("unmapped chameleon",
			slog.String("host", host.Name),
			slog.String("element", chameleon.Name()),
			slog.String("embedded", chameleon.EmbeddedDialect()))
		return nil, false
	}

	key := host.Name + "\x00" + embedded.Name
	r.embedMu.RLock()
	e, ok := r.embeddings[key]
	r.embedMu.RUnlock()
	if ok {
		return e, true
	}

	v, _, _ := r.flight.Do(key, func() (any, error) {
		r.embedMu.RLock()
		cached, ok := r.embeddings[key]
		r.embedMu.RUnlock()
		if ok {
			return cached, nil
		}
		built := &Embedding{
			Host:     host,
			Embedded: embedded,
			View:     embedded.View(),
			Resolver: embedded.Resolver(),
		}
		r.embedMu.Lock()
		r.embeddings[key] = built
		r.embedMu.Unlock()
		r.logger.Debug("built embedding", slog.String("host", host.Name), slog.String("embedded", embedded.Name))
		return built, nil
	})
	return v.(*Embedding), true
}

// Validate checks every registered dialect in parallel: chameleons must
// resolve to a registered dialect and the declared counterpart must exist.
// All defects are reported, joined.
func (r *Registry) Validate(ctx context.Context) error {
	dialects := r.Dialects()
	errs := make([]error, len(dialects))

	g, ctx := errgroup.WithContext(ctx)
	for i, d := range dialects {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			errs[i] = r.validate(d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := errors.Join(errs...); err != nil {
		r.logger.Error("dialect validation failed", slog.Any("error", err))
		return err
	}
	return nil
}

func (r *Registry) validate(d *Dialect) error {
	var errs []error
	if d.Embedded != "" {
		if _, ok := r.Lookup(d.Embedded); !ok {
			errs = append(errs, &grammar.ConfigError{
				Grammar: d.grammar.Name(), Kind: grammar.ErrEmbeddedUnresolved,
				Detail: fmt.Sprintf("dialect %s embeds %q", d.Name, d.Embedded),
			})
		}
	}
	for _, c := range d.grammar.Chameleons() {
		if _, ok := r.resolveEmbedded(d, c); !ok {
			errs = append(errs, &grammar.ConfigError{
				Grammar: d.grammar.Name(), Element: c.Name(), Kind: grammar.ErrEmbeddedUnresolved,
				Detail: fmt.Sprintf("dialect %s has no %q counterpart", d.Name, c.EmbeddedDialect()),
			})
		}
	}
	return errors.Join(errs...)
}
