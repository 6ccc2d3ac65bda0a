package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Match is one entry of /matches/list.
type Match struct {
	ID           int          `json:"id"`
	ImportID     int          `json:"import_id"`
	File         int          `json:"file"`
	Matches      []int        `json:"matches"`
	MatchesCount []int        `json:"matches_count"`
	Message      string       `json:"message"`
	TableName    string       `json:"table_name"`
	Difference   []Difference `json:"difference"`
}

// Difference is the distance between two matched entities.
type Difference struct {
	SourceID int     `json:"source_id"`
	TargetID int     `json:"target_id"`
	Dist     float64 `json:"dist"`
}

// Topic is one entry of /thematic/topics.
type Topic struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// MatchDetail describes one resource referenced by a match's import.
type MatchDetail struct {
	File        string `json:"file"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	FileName    string `json:"file_name"`
	Description string `json:"description"`
	Function    string `json:"function"`
	Abstract    string `json:"abstract"`
	Format      string `json:"format"`
}

// FeatureCollection is the GeoJSON document returned by /matches/geojson/{id}.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single GeoJSON feature. Property values are string, float64 or nil.
type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   Geometry       `json:"geometry"`
}

// Geometry holds coordinates nested one to three levels deep.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates Coordinates `json:"coordinates"`
}

// Coordinates keeps exactly one of Point, Line or Polygon depending on Depth.
type Coordinates struct {
	Depth   int
	Point   []float64
	Line    [][]float64
	Polygon [][][]float64
}

func (c *Coordinates) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Coordinates{}
		return nil
	}

	var point []float64
	if err := json.Unmarshal(data, &point); err == nil {
		*c = Coordinates{Depth: 1, Point: point}
		return nil
	}
	var line [][]float64
	if err := json.Unmarshal(data, &line); err == nil {
		*c = Coordinates{Depth: 2, Line: line}
		return nil
	}
	var polygon [][][]float64
	if err := json.Unmarshal(data, &polygon); err == nil {
		*c = Coordinates{Depth: 3, Polygon: polygon}
		return nil
	}
	return fmt.Errorf("coordinates must be numeric arrays nested 1 to 3 levels: %s", truncate(data, 64))
}

func (c Coordinates) MarshalJSON() ([]byte, error) {
	switch c.Depth {
	case 1:
		return json.Marshal(c.Point)
	case 2:
		return json.Marshal(c.Line)
	case 3:
		return json.Marshal(c.Polygon)
	}
	return []byte("null"), nil
}

// Empty reports whether the coordinates hold no numbers at all, as in an
// empty Polygon ([] or [[]]). Depth carries no meaning then.
func (c Coordinates) Empty() bool {
	switch c.Depth {
	case 1:
		return len(c.Point) == 0
	case 2:
		for _, p := range c.Line {
			if len(p) > 0 {
				return false
			}
		}
		return true
	case 3:
		for _, ring := range c.Polygon {
			for _, p := range ring {
				if len(p) > 0 {
					return false
				}
			}
		}
		return true
	}
	return true
}

var geometryDepth = map[string]int{
	"Point":           1,
	"MultiPoint":      2,
	"LineString":      2,
	"MultiLineString": 3,
	"Polygon":         3,
}

// Validate checks the collection against the shapes this package understands.
func (fc *FeatureCollection) Validate() error {
	if fc.Type == "" {
		return errors.New("feature collection has no type")
	}
	for i, f := range fc.Features {
		if err := f.validate(); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return nil
}

func (f Feature) validate() error {
	for key, val := range f.Properties {
		switch val.(type) {
		case string, float64, nil:
		default:
			return fmt.Errorf("property %q has unsupported type %T", key, val)
		}
	}
	want, known := geometryDepth[f.Geometry.Type]
	coords := f.Geometry.Coordinates
	if known && !coords.Empty() && coords.Depth != want {
		return fmt.Errorf("%s geometry needs coordinates nested %d levels, got %d",
			f.Geometry.Type, want, coords.Depth)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
