package ref

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agentic-research/contentgraph/api"
	"github.com/agentic-research/contentgraph/internal/content"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PagePolicy decides whether an entry is independently addressable.
type PagePolicy interface {
	ShouldItemHavePage(e *content.Entry, meta api.Collection) bool
}

// PagePolicyFunc adapts a function to PagePolicy.
type PagePolicyFunc func(e *content.Entry, meta api.Collection) bool

func (f PagePolicyFunc) ShouldItemHavePage(e *content.Entry, meta api.Collection) bool {
	return f(e, meta)
}

// MetaPolicy gives an entry a page when its collection has pages enabled,
// unless the entry is a draft or sets noPage.
type MetaPolicy struct{}

func (MetaPolicy) ShouldItemHavePage(e *content.Entry, meta api.Collection) bool {
	if !meta.Pages {
		return false
	}
	if draft, _ := e.Data["draft"].(bool); draft {
		return false
	}
	if noPage, _ := e.Data["noPage"].(bool); noPage {
		return false
	}
	return true
}

// Options tunes data processing.
type Options struct {
	// MaxDepth bounds how many reference hops ProcessData follows.
	MaxDepth int
	// SkipPrefix marks map keys that are passed through untouched.
	SkipPrefix string
	// ResolvedMarker is the key set on every resolved payload. Maps carrying
	// it are never processed again.
	ResolvedMarker string
}

func DefaultOptions() Options {
	return Options{
		MaxDepth:       3,
		SkipPrefix:     "_",
		ResolvedMarker: "_resolved",
	}
}

// Resolver hydrates references against a content store.
type Resolver struct {
	store  content.Store
	site   *api.Site
	policy PagePolicy
	opts   Options
	logger *zap.Logger
}

// NewResolver creates a Resolver. A nil policy defaults to MetaPolicy, a
// nil logger to a no-op logger and zero Options to DefaultOptions.
func NewResolver(store content.Store, site *api.Site, policy PagePolicy, opts Options, logger *zap.Logger) *Resolver {
	if policy == nil {
		policy = MetaPolicy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultOptions()
	if opts == (Options{}) {
		opts = def
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.ResolvedMarker == "" {
		opts.ResolvedMarker = def.ResolvedMarker
	}
	return &Resolver{store: store, site: site, policy: policy, opts: opts, logger: logger}
}

// ResolveReference fetches the referenced entry and projects it into a new
// map: the entry data plus collection, id, name, initials, url (when the
// page policy allows) and the resolved marker.
// A missing target yields nil; so does a store failure. Both are logged.
func (r *Resolver) ResolveReference(ctx context.Context, ref Reference) map[string]any {
	e, err := r.store.GetEntry(ctx, ref.Collection, ref.ID)
	if err != nil {
		r.logger.Warn("reference lookup failed",
			zap.String("collection", ref.Collection),
			zap.String("id", ref.ID),
			zap.Error(err))
		return nil
	}
	if e == nil {
		r.logger.Warn("dangling reference",
			zap.String("collection", ref.Collection),
			zap.String("id", ref.ID))
		return nil
	}
	return r.project(e)
}

func (r *Resolver) project(e *content.Entry) map[string]any {
	meta := r.site.Lookup(e.Collection)

	out := make(map[string]any, len(e.Data)+6)
	for k, v := range e.Data {
		out[k] = v
	}
	out["collection"] = e.Collection
	out["id"] = e.ID
	if title, ok := e.Data[meta.Title()].(string); ok {
		out["name"] = title
		out["initials"] = Initials(title)
	}
	if r.policy.ShouldItemHavePage(e, meta) {
		out["url"] = "/" + meta.Prefix() + "/" + e.ID
	}
	out[r.opts.ResolvedMarker] = true
	return out
}

// Initials returns the upper-cased first letter of each whitespace-separated
// token: "Jane Doe" -> "JD".
func Initials(s string) string {
	var b strings.Builder
	for _, tok := range strings.Fields(s) {
		r, _ := utf8.DecodeRuneInString(tok)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// ProcessData walks data and replaces every embedded reference with its
// resolved payload. Input is never mutated; new structures are returned.
func (r *Resolver) ProcessData(ctx context.Context, data any) any {
	return r.process(ctx, data, 0)
}

// process: depth counts reference hops, not container nesting.
func (r *Resolver) process(ctx context.Context, data any, depth int) any {
	if depth >= r.opts.MaxDepth {
		return data
	}

	if single, ok := AsReference(data); ok {
		resolved := r.ResolveReference(ctx, single)
		if resolved == nil {
			return nil
		}
		return r.processMap(ctx, resolved, depth+1)
	}

	if refs, ok := AsReferenceSequence(data); ok {
		return r.resolveAll(ctx, refs)
	}

	switch t := data.(type) {
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = r.process(ctx, el, depth)
		}
		return out
	case map[string]any:
		if done, _ := t[r.opts.ResolvedMarker].(bool); done {
			return t
		}
		return r.processMap(ctx, t, depth)
	}
	return data
}

// processMap rebuilds m with every value processed, except keys carrying the
// skip prefix which are copied as-is.
func (r *Resolver) processMap(ctx context.Context, m map[string]any, depth int) map[string]any {
	if depth >= r.opts.MaxDepth {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == r.opts.ResolvedMarker || (r.opts.SkipPrefix != "" && strings.HasPrefix(k, r.opts.SkipPrefix)) {
			out[k] = v
			continue
		}
		out[k] = r.process(ctx, v, depth)
	}
	return out
}

// resolveAll resolves independent references concurrently, preserving order.
// Dangling references leave a nil hole.
func (r *Resolver) resolveAll(ctx context.Context, refs []Reference) []any {
	out := make([]any, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, rf := range refs {
		g.Go(func() error {
			if resolved := r.ResolveReference(gctx, rf); resolved != nil {
				out[i] = resolved
			}
			return nil
		})
	}
	_ = g.Wait() // workers never fail
	return out
}
