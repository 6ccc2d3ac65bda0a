package spatial

import (
	"context"
	"fmt"

	pumped "github.com/pumped-fn/pumped-spatial"
)

// Execution names recorded in the scope's execution tree.
const (
	FlowLoad          = "spatial.load"
	FlowListMatches   = "gateway.list_matches"
	FlowListTopics    = "gateway.list_topics"
	FlowMatchDetails  = "gateway.match_details"
	FlowMatchGeometry = "gateway.match_geometry"
)

// SyncController performs the initial two-stage load: matches first, then
// topics, then readiness.
type SyncController struct {
	scope   *pumped.Scope
	gw      Gateway
	matches *pumped.Cell[[]Match]
	topics  *pumped.Cell[[]Topic]
	ready   *pumped.Cell[bool]
}

// Load starts the sync in the background. Failures and cancellation are
// logged and leave readiness untouched. The returned channel yields the outcome once and may
// be ignored.
func (c *SyncController) Load(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := c.load(ctx)
		if err != nil {
			c.scope.Logger().Error("initial sync failed", "error", err)
		}
		done <- err
	}()
	return done
}

func (c *SyncController) load(ctx context.Context) error {
	_, _, err := pumped.Exec(ctx, c.scope, FlowLoad, func(e *pumped.ExecutionCtx) (int, error) {
		matches, _, err := pumped.Exec1(e, FlowListMatches, func(e *pumped.ExecutionCtx) ([]Match, error) {
			return c.gw.ListMatches(e.Context())
		})
		if err != nil {
			return 0, fmt.Errorf("list matches: %w", err)
		}
		// a cancelled load leaves state untouched even if its requests finished
		if err := e.Context().Err(); err != nil {
			return 0, err
		}
		c.matches.Write(matches)

		// topics are requested only once matches are in
		topics, _, err := pumped.Exec1(e, FlowListTopics, func(e *pumped.ExecutionCtx) ([]Topic, error) {
			return c.gw.ListTopics(e.Context())
		})
		if err != nil {
			return 0, fmt.Errorf("list topics: %w", err)
		}
		if err := e.Context().Err(); err != nil {
			return 0, err
		}
		c.topics.Write(topics)

		c.ready.UpdateIf(func(ready bool) (bool, bool) {
			return true, !ready
		})
		return len(matches), nil
	})
	return err
}
