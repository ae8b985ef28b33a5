package postgis

import (
	"database/sql"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/guspan-tanadi/osm-rawdatabyhotosm/query"
)

// decodeRows maps result rows onto GeoJSON features, preserving row order.
// The first three columns are fixed: WKT geometry, osm_id, version. The
// remaining columns line up positionally with the statement's recorded
// select order. For custom statements (no compiled columns and no table)
// the two property names are recovered from the statement text instead.
func decodeRows(rows *sql.Rows, stmt query.Statement, sqlText string) ([]*geojson.Feature, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	custom := stmt.Table == "" && stmt.Columns == nil
	var idName, versionName string
	if custom {
		idName, versionName = customColumnNames(sqlText)
	}

	features := []*geojson.Feature{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		if len(values) < 3 {
			continue
		}

		feature, err := decodeRow(values, stmt, idName, versionName)
		if err != nil {
			return nil, &SQLError{sqlText, err}
		}
		features = append(features, feature)
	}
	if err := rows.Err(); err != nil {
		return nil, &SQLError{sqlText, err}
	}
	return features, nil
}

// decodeRow maps one scanned row onto a feature. For compiled statements
// the properties are id, version and the recorded select keys in order;
// for custom statements the recovered idName/versionName label the second
// and third column instead.
func decodeRow(values []interface{}, stmt query.Statement, idName, versionName string) (*geojson.Feature, error) {
	geom, err := wkt.Unmarshal(asString(values[0]))
	if err != nil {
		return nil, err
	}

	props := geojson.Properties{}
	if stmt.Table == "" && stmt.Columns == nil {
		if idName != "" {
			props[idName] = plain(values[1])
		}
		if versionName != "" {
			props[versionName] = plain(values[2])
		}
	} else {
		props["id"] = plain(values[1])
		props["version"] = plain(values[2])
		for i, key := range stmt.Columns {
			idx := 3 + i
			if idx >= len(values) {
				break
			}
			// NULL tags are omitted, not stored as null
			if values[idx] == nil {
				continue
			}
			props[key] = plain(values[idx])
		}
	}

	feature := geojson.NewFeature(geom)
	feature.Properties = props
	return feature, nil
}

// customColumnNames recovers the two property names of a hand-written
// statement from the text between SELECT and FROM: tokens 2 and 3 follow
// the geometry expression, each with its trailing comma stripped. Fragile
// and order-sensitive, but existing custom SQL files depend on it.
func customColumnNames(sqlText string) (string, string) {
	end := strings.Index(sqlText, "FROM")
	if end < 0 {
		return "", ""
	}
	res := strings.Split(sqlText[:end], " ")
	if len(res) < 4 {
		return "", ""
	}
	return trimLastChar(res[2]), trimLastChar(res[3])
}

func trimLastChar(s string) string {
	if s == "" {
		return s
	}
	return s[:len(s)-1]
}

func asString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// plain converts driver values into JSON-friendly ones.
func plain(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
