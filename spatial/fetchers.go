package spatial

import (
	"errors"

	pumped "github.com/pumped-fn/pumped-spatial"
)

// ErrUnresolved marks a selection that names no loaded match. It is never
// reported; the details view simply does not fetch.
var ErrUnresolved = errors.New("selection does not resolve to a loaded match")

// resolveImportID maps a selection to the import id of its match.
func resolveImportID(sel Selection, matches []Match) (int, error) {
	id, ok := sel.ID()
	if !ok {
		return 0, ErrUnresolved
	}
	m, found := FindMatch(matches, id)
	if !found {
		return 0, ErrUnresolved
	}
	return m.ImportID, nil
}

// newDetailsView fetches the detail records of the selected match. It
// re-runs whenever the selection or the match collection changes.
func newDetailsView(
	s *pumped.Scope,
	gw Gateway,
	policy RetentionPolicy,
	selection pumped.Readable[Selection],
	matches pumped.Readable[[]Match],
) *pumped.View[[]MatchDetail] {
	return pumped.DeriveAsync2(s, selection, matches,
		func(cc *pumped.ComputeCtx, sel Selection, list []Match, set func([]MatchDetail) bool) {
			importID, err := resolveImportID(sel, list)
			if err != nil {
				if policy == ClearUnresolved {
					set(nil)
				}
				return
			}

			go func() {
				details, _, err := pumped.Exec(cc.Context(), s, FlowMatchDetails, func(e *pumped.ExecutionCtx) ([]MatchDetail, error) {
					return gw.MatchDetails(e.Context(), importID)
				})
				if err != nil {
					cc.Fail(err)
					return
				}
				if details == nil {
					details = []MatchDetail{}
				}
				if !set(details) {
					cc.Logger().Debug("stale details discarded", "import_id", importID)
				}
			}()
		},
		pumped.Named("details"),
	)
}

// newGeometryView fetches the feature collection of the selected match.
// It depends on the selection only.
func newGeometryView(
	s *pumped.Scope,
	gw Gateway,
	policy RetentionPolicy,
	selection pumped.Readable[Selection],
) *pumped.View[*FeatureCollection] {
	return pumped.DeriveAsync1(s, selection,
		func(cc *pumped.ComputeCtx, sel Selection, set func(*FeatureCollection) bool) {
			id, ok := sel.ID()
			if !ok {
				if policy == ClearUnresolved {
					set(nil)
				}
				return
			}

			go func() {
				fc, _, err := pumped.Exec(cc.Context(), s, FlowMatchGeometry, func(e *pumped.ExecutionCtx) (*FeatureCollection, error) {
					return gw.MatchGeometry(e.Context(), id)
				})
				if err != nil {
					cc.Fail(err)
					return
				}
				if !set(fc) {
					cc.Logger().Debug("stale geometry discarded", "match_id", id)
				}
			}()
		},
		pumped.Named("geometry"),
	)
}
