package gateway

import (
	"context"
	"fmt"
)

// ListMatches fetches every match record.
func (c *Client) ListMatches(ctx context.Context) ([]Match, error) {
	var out []Match
	if err := c.getJSON(ctx, "list matches", "/matches/list", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Match{}
	}
	return out, nil
}

// ListTopics fetches every thematic topic.
func (c *Client) ListTopics(ctx context.Context) ([]Topic, error) {
	var out []Topic
	if err := c.getJSON(ctx, "list topics", "/thematic/topics", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Topic{}
	}
	return out, nil
}

// MatchDetails fetches the resource metadata of an import.
func (c *Client) MatchDetails(ctx context.Context, importID int) ([]MatchDetail, error) {
	var out []MatchDetail
	path := fmt.Sprintf("/matches/details/%d", importID)
	if err := c.getJSON(ctx, "match details", path, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []MatchDetail{}
	}
	return out, nil
}

// MatchGeometry fetches the feature collection of a match.
func (c *Client) MatchGeometry(ctx context.Context, matchID int) (*FeatureCollection, error) {
	var out FeatureCollection
	path := fmt.Sprintf("/matches/geojson/%d", matchID)
	if err := c.getJSON(ctx, "match geometry", path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
