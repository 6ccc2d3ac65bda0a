package spatial

import (
	"context"
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pumped-fn/pumped-spatial/gateway"
)

type (
	Match             = gateway.Match
	Difference        = gateway.Difference
	Topic             = gateway.Topic
	MatchDetail       = gateway.MatchDetail
	FeatureCollection = gateway.FeatureCollection
	Feature           = gateway.Feature
	Geometry          = gateway.Geometry
)

// Gateway is the remote data service the store keeps itself in sync with.
// *gateway.Client implements it.
type Gateway interface {
	ListMatches(ctx context.Context) ([]Match, error)
	ListTopics(ctx context.Context) ([]Topic, error)
	MatchDetails(ctx context.Context, importID int) ([]MatchDetail, error)
	MatchGeometry(ctx context.Context, matchID int) (*FeatureCollection, error)
}

var _ Gateway = (*gateway.Client)(nil)

// Selection is the currently chosen match id, or nothing.
// Zero is a valid id; use NoSelection for "nothing selected".
type Selection struct {
	id  int
	set bool
}

// NoSelection is the unset selection.
var NoSelection = Selection{}

// Select returns a selection of the given match id.
func Select(id int) Selection {
	return Selection{id: id, set: true}
}

// ID returns the selected id and whether anything is selected.
func (s Selection) ID() (int, bool) {
	return s.id, s.set
}

// IsSet reports whether a match is selected.
func (s Selection) IsSet() bool {
	return s.set
}

func (s Selection) String() string {
	if !s.set {
		return "none"
	}
	return fmt.Sprintf("%d", s.id)
}

// FindMatch scans matches for the record with the given id.
func FindMatch(matches []Match, id int) (Match, bool) {
	for _, m := range matches {
		if m.ID == id {
			return m, true
		}
	}
	return Match{}, false
}

// FilterTopics returns the topics whose name or group fuzzily contains term,
// closest first. An empty term returns topics unchanged.
func FilterTopics(topics []Topic, term string) []Topic {
	if term == "" {
		return topics
	}

	targets := make([]string, len(topics))
	for i, t := range topics {
		targets[i] = t.Name + " " + t.Group
	}

	ranks := fuzzy.RankFindNormalizedFold(term, targets)
	sort.Sort(ranks)

	out := make([]Topic, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, topics[r.OriginalIndex])
	}
	return out
}
