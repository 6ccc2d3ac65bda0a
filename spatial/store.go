package spatial

import (
	"context"

	pumped "github.com/pumped-fn/pumped-spatial"
)

// Store holds every piece of state the spatial views share. Construct one
// per session; nothing here is global.
type Store struct {
	scope     *pumped.Scope
	retention RetentionPolicy

	ready     *pumped.Cell[bool]
	matches   *pumped.Cell[[]Match]
	topics    *pumped.Cell[[]Topic]
	selection *pumped.Cell[Selection]

	details  *pumped.View[[]MatchDetail]
	geometry *pumped.View[*FeatureCollection]

	sync *SyncController
}

type storeOptions struct {
	retention RetentionPolicy
	scopeOpts []pumped.ScopeOption
}

// Option configures a Store
type Option func(*storeOptions)

// WithRetention sets what details and geometry hold for an unresolvable selection
func WithRetention(p RetentionPolicy) Option {
	return func(o *storeOptions) {
		o.retention = p
	}
}

// WithScopeOptions passes options to the underlying scope (logger, extensions, tags)
func WithScopeOptions(opts ...pumped.ScopeOption) Option {
	return func(o *storeOptions) {
		o.scopeOpts = append(o.scopeOpts, opts...)
	}
}

// NewStore wires the cells, the sync controller and both fetchers against gw.
func NewStore(gw Gateway, opts ...Option) *Store {
	o := storeOptions{retention: RetainStale}
	for _, opt := range opts {
		opt(&o)
	}

	s := pumped.NewScope(o.scopeOpts...)
	st := &Store{
		scope:     s,
		retention: o.retention,
		ready:     pumped.NewCell(s, false, pumped.Named("ready")),
		matches:   pumped.NewCell(s, []Match{}, pumped.Named("matches")),
		topics:    pumped.NewCell(s, []Topic{}, pumped.Named("topics")),
		selection: pumped.NewCell(s, NoSelection, pumped.Named("selection")),
	}

	st.sync = &SyncController{
		scope:   s,
		gw:      gw,
		matches: st.matches,
		topics:  st.topics,
		ready:   st.ready,
	}
	st.details = newDetailsView(s, gw, o.retention, st.selection, st.matches)
	st.geometry = newGeometryView(s, gw, o.retention, st.selection)

	return st
}

// Load runs the initial sync; see SyncController.Load
func (st *Store) Load(ctx context.Context) <-chan error {
	return st.sync.Load(ctx)
}

func (st *Store) Ready() pumped.Readable[bool] {
	return st.ready.ReadOnly()
}

func (st *Store) Matches() pumped.Readable[[]Match] {
	return st.matches.ReadOnly()
}

func (st *Store) Topics() pumped.Readable[[]Topic] {
	return st.topics.ReadOnly()
}

// Details resolves to the detail records of the selected match
func (st *Store) Details() pumped.Readable[[]MatchDetail] {
	return st.details
}

// Geometry resolves to the feature collection of the selected match
func (st *Store) Geometry() pumped.Readable[*FeatureCollection] {
	return st.geometry
}

// Selection returns the writable selection handle
func (st *Store) Selection() pumped.Writable[Selection] {
	return st.selection
}

// Select is shorthand for Selection().Write(Select(id))
func (st *Store) Select(id int) {
	st.selection.Write(Select(id))
}

// Deselect clears the selection
func (st *Store) Deselect() {
	st.selection.Write(NoSelection)
}

func (st *Store) Retention() RetentionPolicy {
	return st.retention
}

// Scope exposes the scope for extensions and debugging
func (st *Store) Scope() *pumped.Scope {
	return st.scope
}

// Close cancels in-flight fetches and detaches every view
func (st *Store) Close() error {
	return st.scope.Dispose()
}
