package datastore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nodegraph_poc/pkg"
	"nodegraph_poc/src/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func statusCode(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

// gate blocks handlers until released. Register release as a cleanup
// after the server so a failing test does not hang in srv.Close.
type gate struct {
	ch   chan struct{}
	once sync.Once
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) release() {
	g.once.Do(func() { close(g.ch) })
}

func newBackend(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newStore(srv *httptest.Server, opts ...Option) *Store {
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return New(NewHTTPFetcher(model.FetchConfig{BaseURL: srv.URL}), opts...)
}

func waitPending(t *testing.T, p *Pending) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("load did not settle")
	}
}

func records(raw ...string) []pkg.Record {
	out := make([]pkg.Record, 0, len(raw))
	for _, r := range raw {
		out = append(out, pkg.Record(r))
	}
	return out
}

func TestNewStoreIsEmpty(t *testing.T) {
	s := New(nil, WithLogger(zerolog.Nop()))

	assert.Empty(t, s.Nodes())
	assert.NotNil(t, s.Nodes())
	assert.Empty(t, s.Edges())
	assert.Empty(t, s.Quotes())
	assert.False(t, s.Loading())
	assert.Nil(t, s.List("vertices"))
}

func TestLoadReplacesAllLists(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/nodes":  jsonBody(`[{"id":1}]`),
		"/edges":  jsonBody(`[{"from":1,"to":2},{"from":2,"to":3}]`),
		"/quotes": jsonBody(`["a", "b", "c"]`),
	})
	s := newStore(srv)

	waitPending(t, s.Load(context.Background()))

	assert.Equal(t, records(`{"id":1}`), s.Nodes())
	assert.Equal(t, records(`{"from":1,"to":2}`, `{"from":2,"to":3}`), s.Edges())
	assert.Equal(t, records(`"a"`, `"b"`, `"c"`), s.Quotes())
	assert.False(t, s.Loading())

	for _, r := range pkg.Resources {
		st := s.Status(r)
		assert.NoError(t, st.LastError, r)
		assert.Equal(t, 1, st.Fetches, r)
		assert.False(t, st.UpdatedAt.IsZero(), r)
	}
	assert.Equal(t, 2, s.Status(pkg.ResourceEdges).Count)
}

func TestListReturnsCopy(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/nodes": jsonBody(`[1,2]`),
	})
	s := newStore(srv)
	require.NoError(t, s.FetchNodeList(context.Background()))

	nodes := s.Nodes()
	nodes[0] = pkg.Record(`99`)

	assert.Equal(t, records(`1`, `2`), s.Nodes())
}

func TestLoadingFlagTracksNodeFetch(t *testing.T) {
	g := newGate()
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/nodes": func(w http.ResponseWriter, r *http.Request) {
			<-g.ch
			jsonBody(`[{"id":1}]`)(w, r)
		},
		"/edges":  jsonBody(`[]`),
		"/quotes": jsonBody(`[]`),
	})
	t.Cleanup(g.release)
	s := newStore(srv)
	require.False(t, s.Loading())

	p := s.Load(context.Background())
	require.Eventually(t, s.Loading, time.Second, 5*time.Millisecond)

	// edges and quotes settle while nodes is still in flight
	require.Eventually(t, func() bool {
		return s.Status(pkg.ResourceEdges).Fetches == 1 && s.Status(pkg.ResourceQuotes).Fetches == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.Loading())
	assert.Empty(t, s.Nodes())

	g.release()
	waitPending(t, p)

	assert.False(t, s.Loading())
	assert.Equal(t, records(`{"id":1}`), s.Nodes())
}

func TestLoadingClearedOnFailure(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/nodes": statusCode(http.StatusInternalServerError),
	})
	s := newStore(srv)

	err := s.FetchNodeList(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.False(t, s.Loading())
	assert.Empty(t, s.Nodes())
	assert.ErrorIs(t, s.Status(pkg.ResourceNodes).LastError, ErrUnexpectedStatus)
}

func TestLoadingClearedWhenBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := New(NewHTTPFetcher(model.FetchConfig{BaseURL: url}), WithLogger(zerolog.Nop()))

	waitPending(t, s.Load(context.Background()))

	assert.False(t, s.Loading())
	for _, r := range pkg.Resources {
		assert.Empty(t, s.List(r))
		assert.Error(t, s.Status(r).LastError)
	}
}

func TestEdgeFailureIsolated(t *testing.T) {
	var failEdges atomic.Bool
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/nodes": jsonBody(`[{"id":1}]`),
		"/edges": func(w http.ResponseWriter, r *http.Request) {
			if failEdges.Load() {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			jsonBody(`[{"from":1,"to":1}]`)(w, r)
		},
		"/quotes": jsonBody(`[{"q":"hi"}]`),
	})
	s := newStore(srv)

	waitPending(t, s.Load(context.Background()))
	require.Equal(t, records(`{"from":1,"to":1}`), s.Edges())

	failEdges.Store(true)
	waitPending(t, s.Load(context.Background()))

	assert.Equal(t, records(`{"from":1,"to":1}`), s.Edges())
	assert.ErrorIs(t, s.Status(pkg.ResourceEdges).LastError, ErrUnexpectedStatus)
	assert.Equal(t, records(`{"id":1}`), s.Nodes())
	assert.Equal(t, records(`{"q":"hi"}`), s.Quotes())
	assert.NoError(t, s.Status(pkg.ResourceNodes).LastError)
	assert.NoError(t, s.Status(pkg.ResourceQuotes).LastError)
	assert.Equal(t, 2, s.Status(pkg.ResourceQuotes).Fetches)
}

func TestMalformedJSONKeepsPriorValue(t *testing.T) {
	var calls atomic.Int32
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/nodes": jsonBody(`[]`),
		"/edges": jsonBody(`[]`),
		"/quotes": func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				jsonBody(`[1,2]`)(w, r)
				return
			}
			jsonBody(`[1,2,{oops`)(w, r)
		},
	})
	s := newStore(srv)

	waitPending(t, s.Load(context.Background()))
	require.Equal(t, records(`1`, `2`), s.Quotes())

	assert.NotPanics(t, func() {
		waitPending(t, s.Load(context.Background()))
	})

	assert.Equal(t, records(`1`, `2`), s.Quotes())
	assert.ErrorIs(t, s.Status(pkg.ResourceQuotes).LastError, ErrDecode)
}

func TestLoadTwiceLastCompletionWins(t *testing.T) {
	g := newGate()
	arrived := make(chan struct{})
	var calls atomic.Int32
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/nodes": func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				close(arrived)
				<-g.ch
				jsonBody(`[{"v":"first"}]`)(w, r)
				return
			}
			jsonBody(`[{"v":"second"}]`)(w, r)
		},
		"/edges":  jsonBody(`[1]`),
		"/quotes": jsonBody(`[2]`),
	})
	t.Cleanup(g.release)
	s := newStore(srv)

	first := s.Load(context.Background())
	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("first node request never arrived")
	}

	second := s.Load(context.Background())
	waitPending(t, second)

	assert.Equal(t, records(`{"v":"second"}`), s.Nodes())
	assert.True(t, s.Loading(), "first node fetch is still in flight")

	g.release()
	waitPending(t, first)

	// the first request finished last, so its body wins
	assert.Equal(t, records(`{"v":"first"}`), s.Nodes())
	assert.Equal(t, records(`1`), s.Edges())
	assert.Equal(t, records(`2`), s.Quotes())
	assert.False(t, s.Loading())
	assert.Equal(t, 2, s.Status(pkg.ResourceNodes).Fetches)
}

func TestLoadOutlivesCallerContext(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/nodes":  jsonBody(`[1]`),
		"/edges":  jsonBody(`[2]`),
		"/quotes": jsonBody(`[3]`),
	})
	s := newStore(srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	waitPending(t, s.Load(ctx))

	assert.Equal(t, records(`1`), s.Nodes())
	assert.Equal(t, records(`2`), s.Edges())
	assert.Equal(t, records(`3`), s.Quotes())
}

func TestFetchByResource(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/edges": jsonBody(`[{"e":1}]`),
	})
	s := newStore(srv)

	require.NoError(t, s.Fetch(context.Background(), pkg.ResourceEdges))
	assert.Equal(t, records(`{"e":1}`), s.Edges())

	err := s.Fetch(context.Background(), "vertices")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resource")
}

func TestSubscribeReceivesChanges(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/nodes":  jsonBody(`[1,2,3]`),
		"/edges":  jsonBody(`[]`),
		"/quotes": statusCode(http.StatusNotFound),
	})
	s := newStore(srv)
	changes, unsubscribe := s.Subscribe()
	defer unsubscribe()

	waitPending(t, s.Load(context.Background()))

	var got []pkg.Change
	for len(changes) > 0 {
		got = append(got, <-changes)
	}

	lists := map[pkg.Resource]int{}
	var loading []bool
	var failed []pkg.Resource
	for _, c := range got {
		switch c.Kind {
		case pkg.ChangeList:
			lists[c.Resource] = c.Count
		case pkg.ChangeLoading:
			loading = append(loading, c.Loading)
		case pkg.ChangeFailed:
			failed = append(failed, c.Resource)
		}
	}

	assert.Equal(t, map[pkg.Resource]int{pkg.ResourceNodes: 3, pkg.ResourceEdges: 0}, lists)
	assert.Equal(t, []bool{true, false}, loading)
	assert.Equal(t, []pkg.Resource{pkg.ResourceQuotes}, failed)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	s := New(nil, WithLogger(zerolog.Nop()))
	changes, unsubscribe := s.Subscribe()

	s.Close()
	_, open := <-changes
	assert.False(t, open)

	assert.NotPanics(t, unsubscribe)
	assert.NotPanics(t, s.Close)

	late, _ := s.Subscribe()
	_, open = <-late
	assert.False(t, open)
}

func TestWatchersKeepLatest(t *testing.T) {
	w := newWatchers()
	ch, unsubscribe := w.subscribe()
	defer unsubscribe()

	for i := 0; i < watchBuffer+4; i++ {
		w.notify(pkg.Change{Count: i})
	}

	require.Len(t, ch, watchBuffer)
	var last pkg.Change
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, watchBuffer+3, last.Count)
}

func TestStoreConcurrentLoads(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"/nodes":  jsonBody(`[{"id":1},{"id":2}]`),
		"/edges":  jsonBody(`[{"id":3}]`),
		"/quotes": jsonBody(`[]`),
	})
	s := newStore(srv)

	const loads = 20
	pending := make([]*Pending, 0, loads)
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < loads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := s.Load(context.Background())
			_ = s.Nodes()
			_ = s.Loading()
			mu.Lock()
			pending = append(pending, p)
			mu.Unlock()
		}()
	}
	wg.Wait()
	for _, p := range pending {
		waitPending(t, p)
	}

	assert.Len(t, s.Nodes(), 2)
	assert.Len(t, s.Edges(), 1)
	assert.False(t, s.Loading())
	assert.Equal(t, loads, s.Status(pkg.ResourceNodes).Fetches)
}
