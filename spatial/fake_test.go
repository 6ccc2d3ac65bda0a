package spatial

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	pumped "github.com/pumped-fn/pumped-spatial"
	"github.com/pumped-fn/pumped-spatial/extensions"
)

// fakeGateway answers list calls from fixed data and hands every details and
// geometry request to the test through a channel, so tests decide when (and
// in which order) requests resolve.
type fakeGateway struct {
	mu          sync.Mutex
	matches     []Match
	topics      []Topic
	matchesErr  error
	topicsErr   error
	listCalls   []string
	sawMatches  func() []Match
	onTopics    func()
	topicsSaw   [][]Match
	detailsReqs chan *pendingCall[[]MatchDetail]
	geomReqs    chan *pendingCall[*FeatureCollection]
}

type reply[T any] struct {
	val T
	err error
}

type pendingCall[T any] struct {
	ctx   context.Context
	id    int
	reply chan reply[T]
}

func (p *pendingCall[T]) resolve(val T) {
	p.reply <- reply[T]{val: val}
}

func (p *pendingCall[T]) fail(err error) {
	p.reply <- reply[T]{err: err}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		detailsReqs: make(chan *pendingCall[[]MatchDetail], 16),
		geomReqs:    make(chan *pendingCall[*FeatureCollection], 16),
	}
}

func (f *fakeGateway) ListMatches(ctx context.Context) ([]Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, "matches")
	return f.matches, f.matchesErr
}

func (f *fakeGateway) ListTopics(ctx context.Context) ([]Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, "topics")
	if f.sawMatches != nil {
		f.topicsSaw = append(f.topicsSaw, f.sawMatches())
	}
	if f.onTopics != nil {
		f.onTopics()
	}
	return f.topics, f.topicsErr
}

func (f *fakeGateway) MatchDetails(ctx context.Context, importID int) ([]MatchDetail, error) {
	return await(ctx, f.detailsReqs, importID)
}

func (f *fakeGateway) MatchGeometry(ctx context.Context, matchID int) (*FeatureCollection, error) {
	return await(ctx, f.geomReqs, matchID)
}

func (f *fakeGateway) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listCalls...)
}

func await[T any](ctx context.Context, reqs chan *pendingCall[T], id int) (T, error) {
	call := &pendingCall[T]{ctx: ctx, id: id, reply: make(chan reply[T], 1)}
	reqs <- call
	select {
	case r := <-call.reply:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func nextRequest[T any](t *testing.T, reqs chan *pendingCall[T]) *pendingCall[T] {
	t.Helper()
	select {
	case call := <-reqs:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a gateway request")
	}
	return nil
}

func expectNoRequest[T any](t *testing.T, reqs chan *pendingCall[T]) {
	t.Helper()
	select {
	case call := <-reqs:
		t.Fatalf("expected no request, got one for id %d", call.id)
	case <-time.After(50 * time.Millisecond):
	}
}

// waitFor blocks until r holds a value satisfying pred
func waitFor[T any](t *testing.T, r pumped.Readable[T], pred func(T) bool) T {
	t.Helper()
	ch := make(chan T, 1)
	unsub := r.Subscribe(func(v T) {
		if pred(v) {
			select {
			case ch <- v:
			default:
			}
		}
	})
	defer unsub()

	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s, last value %v", pumped.NameOf(r), r.Read())
	}
	var zero T
	return zero
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// errorRecorder collects errors reported by view computations
type errorRecorder struct {
	pumped.BaseExtension
	errs chan error
}

func newErrorRecorder() *errorRecorder {
	return &errorRecorder{
		BaseExtension: pumped.NewBaseExtension("error-recorder"),
		errs:          make(chan error, 16),
	}
}

func (r *errorRecorder) OnError(err error, op *pumped.Operation, scope *pumped.Scope) {
	r.errs <- err
}

func newTestStore(t *testing.T, gw Gateway, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{
		WithScopeOptions(pumped.WithLogger(slog.New(extensions.NewSilentHandler()))),
	}, opts...)
	st := NewStore(gw, opts...)
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return st
}

func loadOK(t *testing.T, st *Store) {
	t.Helper()
	select {
	case err := <-st.Load(context.Background()):
		if err != nil {
			t.Fatalf("expected load to succeed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for load")
	}
}

var errBoom = errors.New("boom")
