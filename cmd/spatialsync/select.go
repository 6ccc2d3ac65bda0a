package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	pumped "github.com/pumped-fn/pumped-spatial"
	"github.com/pumped-fn/pumped-spatial/spatial"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var selectWait time.Duration

var selectCmd = &cobra.Command{
	Use:   "select <match-id>",
	Short: "Load, select a match and print its details and geometry as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)

	selectCmd.Flags().DurationVarP(
		&selectWait,
		"wait",
		"w",
		time.Minute,
		"how long to wait for details and geometry",
	)
}

type selection struct {
	Match    spatial.Match              `json:"match"`
	Details  []spatial.MatchDetail      `json:"details,omitempty"`
	Geometry *spatial.FeatureCollection `json:"geometry"`
}

func runSelect(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("match id %q: %w", args[0], err)
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.load(cmd.Context()); err != nil {
		return err
	}

	var out selection
	match, resolvable := spatial.FindMatch(a.store.Matches().Read(), id)
	if resolvable {
		out.Match = match
	} else {
		a.logger.Warn("match is not in the loaded collection, details will not be fetched", "id", id)
		out.Match = spatial.Match{ID: id}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), selectWait)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if resolvable {
		details := a.store.Details()
		failed := a.failures.watch(details)
		g.Go(func() error {
			d, err := await(gctx, details, func(d []spatial.MatchDetail) bool { return d != nil }, failed)
			if err != nil {
				return fmt.Errorf("details: %w", err)
			}
			out.Details = d
			return nil
		})
	}
	geometry := a.store.Geometry()
	failed := a.failures.watch(geometry)
	g.Go(func() error {
		fc, err := await(gctx, geometry, func(fc *spatial.FeatureCollection) bool { return fc != nil }, failed)
		if err != nil {
			return fmt.Errorf("geometry: %w", err)
		}
		out.Geometry = fc
		return nil
	})

	a.store.Select(id)

	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// await blocks until r holds a value accepted by ready, the view reports a
// failure, or ctx ends.
func await[T any](ctx context.Context, r pumped.Readable[T], ready func(T) bool, failed <-chan error) (T, error) {
	values := make(chan T, 1)
	unsub := r.Subscribe(func(val T) {
		if ready(val) {
			select {
			case values <- val:
			default:
			}
		}
	})
	defer unsub()

	var zero T
	select {
	case val := <-values:
		return val, nil
	case err := <-failed:
		return zero, err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// failureSink routes computation errors to whoever watches the failing view
type failureSink struct {
	pumped.BaseExtension
	mu    sync.Mutex
	chans map[pumped.AnyNode]chan error
}

func newFailureSink() *failureSink {
	return &failureSink{
		BaseExtension: pumped.NewBaseExtension("failure-sink"),
		chans:         make(map[pumped.AnyNode]chan error),
	}
}

func (f *failureSink) watch(node pumped.AnyNode) <-chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.chans[node]
	if !ok {
		ch = make(chan error, 1)
		f.chans[node] = ch
	}
	return ch
}

func (f *failureSink) OnError(err error, op *pumped.Operation, scope *pumped.Scope) {
	f.mu.Lock()
	ch, ok := f.chans[op.Node]
	f.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- err:
	default:
	}
}
