// Package datastore holds the node, edge and quote lists fetched from the
// graph backend together with the node loading flag.
//
// The Store is the only writer. Consumers read copies through the accessors
// or subscribe to change notifications.
package datastore

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"nodegraph_poc/pkg"
	"nodegraph_poc/src/logger"

	"github.com/rs/zerolog"
)

// Store is the shared state for graph data
type Store struct {
	fetcher  Fetcher
	snapshot Snapshotter
	log      zerolog.Logger
	now      func() time.Time

	lists    map[pkg.Resource]*list
	inflight atomic.Int32 // node fetches in flight
	watchers *watchers
}

type list struct {
	mu      sync.RWMutex
	records []pkg.Record
	status  pkg.ResourceStatus
	gen     uint64 // bumped on every replacement

	saveMu sync.Mutex // serializes snapshot saves
	saved  uint64     // gen of the newest save attempted
}

// Option configures a Store
type Option func(*Store)

// WithLogger replaces the component logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l.With().Str("component", "datastore").Logger()
	}
}

// WithSnapshotter mirrors every successful replacement to sn
func WithSnapshotter(sn Snapshotter) Option {
	return func(s *Store) {
		s.snapshot = sn
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store backed by fetcher
func New(fetcher Fetcher, opts ...Option) *Store {
	s := &Store{
		fetcher:  fetcher,
		log:      logger.Component("datastore"),
		now:      time.Now,
		lists:    make(map[pkg.Resource]*list, len(pkg.Resources)),
		watchers: newWatchers(),
	}
	for _, r := range pkg.Resources {
		s.lists[r] = &list{
			records: []pkg.Record{},
			status:  pkg.ResourceStatus{Resource: r},
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pending completes once every fetch started by one Load call has finished
type Pending struct {
	done chan struct{}
}

// Done is closed when all fetches have settled
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until all fetches have settled
func (p *Pending) Wait() {
	<-p.done
}

// Load starts the node, edge and quote fetches without waiting for them.
// Errors are not reported here; see Status. The fetches outlive ctx.
func (s *Store) Load(ctx context.Context) *Pending {
	ctx = context.WithoutCancel(ctx)
	p := &Pending{done: make(chan struct{})}

	var wg sync.WaitGroup
	for _, fetch := range []func(context.Context) error{
		s.FetchNodeList,
		s.FetchEdgeList,
		s.FetchQuoteList,
	} {
		wg.Go(func() {
			_ = fetch(ctx)
		})
	}

	go func() {
		wg.Wait()
		close(p.done)
	}()

	return p
}

// FetchNodeList replaces the node list. Loading is true for the duration
// of the call and cleared on every exit path.
func (s *Store) FetchNodeList(ctx context.Context) error {
	s.startLoading()
	return s.fetch(ctx, pkg.ResourceNodes, s.stopLoading)
}

// FetchEdgeList replaces the edge list
func (s *Store) FetchEdgeList(ctx context.Context) error {
	return s.fetch(ctx, pkg.ResourceEdges, nil)
}

// FetchQuoteList replaces the quote list
func (s *Store) FetchQuoteList(ctx context.Context) error {
	return s.fetch(ctx, pkg.ResourceQuotes, nil)
}

// Fetch refreshes a single resource by name
func (s *Store) Fetch(ctx context.Context, r pkg.Resource) error {
	switch r {
	case pkg.ResourceNodes:
		return s.FetchNodeList(ctx)
	case pkg.ResourceEdges:
		return s.FetchEdgeList(ctx)
	case pkg.ResourceQuotes:
		return s.FetchQuoteList(ctx)
	}
	_, err := pkg.ParseResource(string(r))
	return err
}

func (s *Store) fetch(ctx context.Context, r pkg.Resource, cleanup func()) (err error) {
	start := s.now()
	count := 0
	defer func() {
		if cleanup != nil {
			cleanup()
		}
		s.logFetch(r, count, start, err)
	}()

	records, err := s.fetcher.FetchList(ctx, r)
	if err != nil {
		s.fail(r, err)
		return err
	}

	count = len(records)
	s.replace(ctx, r, records)
	return nil
}

func (s *Store) replace(ctx context.Context, r pkg.Resource, records []pkg.Record) {
	now := s.now()
	l := s.lists[r]

	l.mu.Lock()
	l.records = records
	l.status.Count = len(records)
	l.status.UpdatedAt = now
	l.status.Fetches++
	l.status.LastError = nil
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	s.watchers.notify(pkg.Change{
		Kind:     pkg.ChangeList,
		Resource: r,
		Count:    len(records),
		Loading:  s.Loading(),
		At:       now,
	})

	s.save(ctx, r, l, gen, records)
}

// save mirrors records to the snapshotter unless a newer generation of the
// list has already been saved. l.mu is not held so readers never wait on
// the backend.
func (s *Store) save(ctx context.Context, r pkg.Resource, l *list, gen uint64, records []pkg.Record) {
	if s.snapshot == nil {
		return
	}

	l.saveMu.Lock()
	defer l.saveMu.Unlock()
	if gen < l.saved {
		s.log.Debug().Str("resource", string(r)).Uint64("gen", gen).Msg("skipped stale snapshot")
		return
	}
	l.saved = gen

	if err := s.snapshot.Save(ctx, r, records); err != nil {
		s.log.Warn().Err(err).Str("resource", string(r)).Msg("snapshot save failed")
	}
}

func (s *Store) fail(r pkg.Resource, err error) {
	now := s.now()
	l := s.lists[r]

	l.mu.Lock()
	l.status.Fetches++
	l.status.LastError = err
	count := len(l.records)
	l.mu.Unlock()

	s.watchers.notify(pkg.Change{
		Kind:     pkg.ChangeFailed,
		Resource: r,
		Count:    count,
		Loading:  s.Loading(),
		At:       now,
	})
}

func (s *Store) logFetch(r pkg.Resource, count int, start time.Time, err error) {
	elapsed := s.now().Sub(start)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("resource", string(r)).
			Dur("duration", elapsed).
			Msgf("failed to get %s", r)
		return
	}
	s.log.Info().
		Str("resource", string(r)).
		Int("count", count).
		Dur("duration", elapsed).
		Msgf("got %s", r)
}

func (s *Store) startLoading() {
	if s.inflight.Add(1) == 1 {
		s.notifyLoading(true)
	}
}

func (s *Store) stopLoading() {
	if s.inflight.Add(-1) == 0 {
		s.notifyLoading(false)
	}
}

func (s *Store) notifyLoading(loading bool) {
	s.watchers.notify(pkg.Change{
		Kind:     pkg.ChangeLoading,
		Resource: pkg.ResourceNodes,
		Loading:  loading,
		At:       s.now(),
	})
}

// Loading reports whether a node fetch is in flight
func (s *Store) Loading() bool {
	return s.inflight.Load() > 0
}

// Nodes returns the current node list
func (s *Store) Nodes() []pkg.Record {
	return s.List(pkg.ResourceNodes)
}

// Edges returns the current edge list
func (s *Store) Edges() []pkg.Record {
	return s.List(pkg.ResourceEdges)
}

// Quotes returns the current quote list
func (s *Store) Quotes() []pkg.Record {
	return s.List(pkg.ResourceQuotes)
}

// List returns a copy of the list for r, or nil for an unknown resource.
// The records themselves are shared and must not be modified.
func (s *Store) List(r pkg.Resource) []pkg.Record {
	l, ok := s.lists[r]
	if !ok {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.records)
}

// Status returns the fetch bookkeeping for r
func (s *Store) Status(r pkg.Resource) pkg.ResourceStatus {
	l, ok := s.lists[r]
	if !ok {
		return pkg.ResourceStatus{Resource: r}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Restore seeds r with records. It is a no-op once a fetch of r has
// completed, so a snapshot never overwrites fresher data.
func (s *Store) Restore(r pkg.Resource, records []pkg.Record) bool {
	l, ok := s.lists[r]
	if !ok {
		return false
	}
	if records == nil {
		records = []pkg.Record{}
	}

	l.mu.Lock()
	if l.status.Fetches > 0 {
		l.mu.Unlock()
		return false
	}
	l.records = records
	l.status.Count = len(records)
	l.mu.Unlock()

	s.watchers.notify(pkg.Change{
		Kind:     pkg.ChangeList,
		Resource: r,
		Count:    len(records),
		Loading:  s.Loading(),
		At:       s.now(),
	})
	return true
}

// Subscribe returns a channel of changes and a function that cancels the
// subscription. Slow readers miss intermediate changes, never the latest.
func (s *Store) Subscribe() (<-chan pkg.Change, func()) {
	return s.watchers.subscribe()
}

// Close ends every subscription. The lists remain readable.
func (s *Store) Close() {
	s.watchers.close()
}
