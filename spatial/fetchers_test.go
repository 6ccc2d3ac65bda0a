package spatial

import (
	"errors"
	"testing"
	"time"

	pumped "github.com/pumped-fn/pumped-spatial"
)

func collection(name string) *FeatureCollection {
	return &FeatureCollection{
		Type: "FeatureCollection",
		Features: []Feature{{
			Type:       "Feature",
			Properties: map[string]any{"name": name},
		}},
	}
}

func isCollection(want *FeatureCollection) func(*FeatureCollection) bool {
	return func(fc *FeatureCollection) bool { return fc == want }
}

func TestNoFetchWithoutSelection(t *testing.T) {
	gw := newFakeGateway()
	gw.matches = []Match{{ID: 1, ImportID: 10}}
	st := newTestStore(t, gw)

	loadOK(t, st)

	expectNoRequest(t, gw.detailsReqs)
	expectNoRequest(t, gw.geomReqs)
	if st.Details().Read() != nil || st.Geometry().Read() != nil {
		t.Error("expected details and geometry to stay unset")
	}
}

func TestGeometryOutOfOrderResolution(t *testing.T) {
	gw := newFakeGateway()
	st := newTestStore(t, gw)
	first, second := collection("first"), collection("second")

	st.Select(1)
	reqA := nextRequest(t, gw.geomReqs)
	st.Select(2)
	reqB := nextRequest(t, gw.geomReqs)

	if reqA.id != 1 || reqB.id != 2 {
		t.Fatalf("expected requests for 1 then 2, got %d then %d", reqA.id, reqB.id)
	}

	reqB.resolve(second)
	waitFor(t, st.Geometry(), isCollection(second))

	reqA.resolve(first)

	tree := st.Scope().GetExecutionTree()
	eventually(t, func() bool {
		return len(tree.Filter(func(n *pumped.ExecutionNode) bool {
			name, _ := pumped.FlowName().GetFromExecution(n)
			return name == FlowMatchGeometry
		})) == 2
	}, "expected both geometry requests to finish")
	time.Sleep(20 * time.Millisecond)

	if got := st.Geometry().Read(); got != second {
		t.Errorf("expected the later selection's geometry to win, got %v", got)
	}
}

func TestGeometryStaleResultArrivingFirstIsDiscarded(t *testing.T) {
	gw := newFakeGateway()
	st := newTestStore(t, gw)
	first, second := collection("first"), collection("second")

	st.Select(1)
	reqA := nextRequest(t, gw.geomReqs)
	st.Select(2)
	reqB := nextRequest(t, gw.geomReqs)

	reqA.resolve(first)
	time.Sleep(20 * time.Millisecond)
	if got := st.Geometry().Read(); got != nil {
		t.Fatalf("expected superseded result to be discarded, got %v", got)
	}

	reqB.resolve(second)
	waitFor(t, st.Geometry(), isCollection(second))
}

func TestSupersededRequestIsCancelled(t *testing.T) {
	gw := newFakeGateway()
	st := newTestStore(t, gw)

	st.Select(1)
	reqA := nextRequest(t, gw.geomReqs)
	st.Select(2)
	nextRequest(t, gw.geomReqs)

	select {
	case <-reqA.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected the superseded request's context to be cancelled")
	}
}

func TestRetainStaleOnUnset(t *testing.T) {
	gw := newFakeGateway()
	gw.matches = []Match{{ID: 1, ImportID: 10}}
	st := newTestStore(t, gw)
	loadOK(t, st)

	fc := collection("one")
	details := []MatchDetail{{Name: "roads"}}

	st.Select(1)
	nextRequest(t, gw.detailsReqs).resolve(details)
	nextRequest(t, gw.geomReqs).resolve(fc)
	waitFor(t, st.Geometry(), isCollection(fc))
	waitFor(t, st.Details(), func(d []MatchDetail) bool { return len(d) == 1 })

	before := st.details.Version()
	st.Deselect()

	expectNoRequest(t, gw.detailsReqs)
	expectNoRequest(t, gw.geomReqs)
	if st.details.Version() == before {
		t.Error("expected the deselect to issue a new computation")
	}
	if st.Geometry().Read() != fc {
		t.Error("expected geometry to keep its last value")
	}
	if d := st.Details().Read(); len(d) != 1 || d[0].Name != "roads" {
		t.Errorf("expected details to keep their last value, got %v", d)
	}
}

func TestClearUnresolvedOnUnset(t *testing.T) {
	gw := newFakeGateway()
	gw.matches = []Match{{ID: 1, ImportID: 10}}
	st := newTestStore(t, gw, WithRetention(ClearUnresolved))
	loadOK(t, st)

	fc := collection("one")
	st.Select(1)
	nextRequest(t, gw.detailsReqs).resolve([]MatchDetail{{Name: "roads"}})
	nextRequest(t, gw.geomReqs).resolve(fc)
	waitFor(t, st.Geometry(), isCollection(fc))
	waitFor(t, st.Details(), func(d []MatchDetail) bool { return len(d) == 1 })

	st.Deselect()

	if st.Geometry().Read() != nil {
		t.Error("expected geometry to be cleared")
	}
	if st.Details().Read() != nil {
		t.Error("expected details to be cleared")
	}
}

func TestDetailsResolvesImportID(t *testing.T) {
	gw := newFakeGateway()
	gw.matches = []Match{{ID: 3, ImportID: 30}, {ID: 7, ImportID: 70}}
	st := newTestStore(t, gw)
	loadOK(t, st)

	st.Select(7)

	req := nextRequest(t, gw.detailsReqs)
	if req.id != 70 {
		t.Fatalf("expected details requested by import id 70, got %d", req.id)
	}
	geom := nextRequest(t, gw.geomReqs)
	if geom.id != 7 {
		t.Errorf("expected geometry requested by selection id 7, got %d", geom.id)
	}

	want := []MatchDetail{{Name: "hydro", URL: "https://example.org/hydro"}}
	req.resolve(want)
	got := waitFor(t, st.Details(), func(d []MatchDetail) bool { return len(d) == 1 })
	if got[0].URL != want[0].URL {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetailsEmptyResponseIsEmptyNotUnset(t *testing.T) {
	gw := newFakeGateway()
	gw.matches = []Match{{ID: 1, ImportID: 10}}
	st := newTestStore(t, gw)
	loadOK(t, st)

	st.Select(1)
	nextRequest(t, gw.detailsReqs).resolve(nil)

	got := waitFor(t, st.Details(), func(d []MatchDetail) bool { return d != nil })
	if len(got) != 0 {
		t.Errorf("expected empty details, got %v", got)
	}
}

func TestDetailsMissDoesNotFetch(t *testing.T) {
	gw := newFakeGateway()
	gw.matches = []Match{{ID: 1, ImportID: 10}}
	st := newTestStore(t, gw)
	loadOK(t, st)

	st.Select(1)
	nextRequest(t, gw.detailsReqs).resolve([]MatchDetail{{Name: "one"}})
	nextRequest(t, gw.geomReqs)
	waitFor(t, st.Details(), func(d []MatchDetail) bool { return len(d) == 1 })

	st.Select(99)

	expectNoRequest(t, gw.detailsReqs)
	if req := nextRequest(t, gw.geomReqs); req.id != 99 {
		t.Errorf("expected geometry to be requested for 99, got %d", req.id)
	}
	if d := st.Details().Read(); len(d) != 1 || d[0].Name != "one" {
		t.Errorf("expected details to be retained on a miss, got %v", d)
	}
}

func TestDetailsMissClearsUnderClearPolicy(t *testing.T) {
	gw := newFakeGateway()
	gw.matches = []Match{{ID: 1, ImportID: 10}}
	st := newTestStore(t, gw, WithRetention(ClearUnresolved))
	loadOK(t, st)

	st.Select(1)
	nextRequest(t, gw.detailsReqs).resolve([]MatchDetail{{Name: "one"}})
	waitFor(t, st.Details(), func(d []MatchDetail) bool { return len(d) == 1 })

	st.Select(99)

	expectNoRequest(t, gw.detailsReqs)
	if st.Details().Read() != nil {
		t.Error("expected details to be cleared on a miss")
	}
}

func TestDetailsFetchedOnceMatchesArrive(t *testing.T) {
	gw := newFakeGateway()
	gw.matches = []Match{{ID: 4, ImportID: 40}}
	st := newTestStore(t, gw)

	st.Select(4)
	expectNoRequest(t, gw.detailsReqs)

	loadOK(t, st)

	if req := nextRequest(t, gw.detailsReqs); req.id != 40 {
		t.Errorf("expected details request for 40 after load, got %d", req.id)
	}
}

func TestZeroIsAValidSelection(t *testing.T) {
	gw := newFakeGateway()
	gw.matches = []Match{{ID: 0, ImportID: 5}}
	st := newTestStore(t, gw)
	loadOK(t, st)

	st.Select(0)

	if req := nextRequest(t, gw.detailsReqs); req.id != 5 {
		t.Errorf("expected details for import id 5, got %d", req.id)
	}
	if req := nextRequest(t, gw.geomReqs); req.id != 0 {
		t.Errorf("expected geometry for id 0, got %d", req.id)
	}
}

func TestFetchFailureKeepsValueAndReports(t *testing.T) {
	gw := newFakeGateway()
	rec := newErrorRecorder()
	st := newTestStore(t, gw, WithScopeOptions(pumped.WithExtension(rec)))

	fc := collection("one")
	st.Select(1)
	nextRequest(t, gw.geomReqs).resolve(fc)
	waitFor(t, st.Geometry(), isCollection(fc))

	st.Select(2)
	nextRequest(t, gw.geomReqs).fail(errBoom)

	select {
	case err := <-rec.errs:
		var ce *pumped.ComputeError
		if !errors.As(err, &ce) || !errors.Is(err, errBoom) {
			t.Fatalf("expected compute error wrapping boom, got %v", err)
		}
		if pumped.NameOf(ce.Node) != "geometry" {
			t.Errorf("expected failure on geometry, got %s", pumped.NameOf(ce.Node))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the failure to be reported")
	}
	if st.Geometry().Read() != fc {
		t.Error("expected geometry to keep its last value after a failed fetch")
	}
}

func TestCloseCancelsInFlightFetch(t *testing.T) {
	gw := newFakeGateway()
	st := NewStore(gw)

	st.Select(1)
	req := nextRequest(t, gw.geomReqs)

	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-req.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected in-flight fetch to be cancelled on close")
	}

	req.resolve(collection("late"))
	time.Sleep(20 * time.Millisecond)
	if st.Geometry().Read() != nil {
		t.Error("expected no value to land after close")
	}

	st.Select(2)
	expectNoRequest(t, gw.geomReqs)
}
