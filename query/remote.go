package query

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// classGeometryType maps the table-oriented geometry classes onto the
// geometry type names of the raw-data API schema.
var classGeometryType = map[GeometryClass]string{
	Nodes:    "point",
	WaysLine: "line",
	WaysPoly: "polygon",
}

// TagFilters is the per-geometry-type filter group of the remote request
// document. A key mapped to an empty list means "tag must be present",
// with no value constraint.
type TagFilters struct {
	JoinOr  map[string]interface{} `json:"join_or"`
	JoinAnd map[string]interface{} `json:"join_and"`
}

// RemoteRequest compiles the configuration into the JSON body of a
// raw-data API snapshot request. The geometry types are inferred from
// which classes carry selections or filters. A clause's value list is
// recorded under the join group its operator names; the "not null"
// sentinel is recorded as an empty list under both groups. extra entries
// are merged into the top-level document (request options such as
// fileName, outputType or bind_zip).
func (cfg *Config) RemoteRequest(boundary orb.Geometry, allGeom bool, extra map[string]interface{}) ([]byte, error) {
	doc := map[string]interface{}{
		"geometry": geojson.NewGeometry(boundary),
	}

	geometryType := []string{}
	for _, class := range Classes {
		if len(cfg.Select[class]) > 0 || len(cfg.Where[class]) > 0 {
			geometryType = append(geometryType, classGeometryType[class])
		}
	}
	doc["geometryType"] = geometryType

	tags := map[string]TagFilters{}
	for _, class := range Classes {
		tags[classGeometryType[class]] = TagFilters{
			JoinOr:  map[string]interface{}{},
			JoinAnd: map[string]interface{}{},
		}
	}
	for _, class := range Classes {
		group := tags[classGeometryType[class]]
		for _, clause := range cfg.Where[class] {
			switch {
			case clause.NotNull():
				group.JoinOr[clause.Key] = []string{}
				group.JoinAnd[clause.Key] = []string{}
			case clause.Op == "and":
				group.JoinAnd[clause.Key] = clauseValues(clause)
			default:
				group.JoinOr[clause.Key] = clauseValues(clause)
			}
		}
	}
	doc["filters"] = map[string]interface{}{"tags": tags}

	if !allGeom || cfg.Centroid {
		doc["centroid"] = true
	}
	for k, v := range extra {
		doc[k] = v
	}
	return json.Marshal(doc)
}

func clauseValues(w WhereClause) interface{} {
	if w.AnyOf != nil {
		return [][]string{w.AnyOf}
	}
	return w.Values
}
