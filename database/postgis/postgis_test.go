package postgis

import (
	"os"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guspan-tanadi/osm-rawdatabyhotosm/database"
	"github.com/guspan-tanadi/osm-rawdatabyhotosm/query"
)

func TestConnString(t *testing.T) {
	assert.Equal(t,
		"dbname=osmdata host=localhost sslmode=disable",
		connString(database.ConnParams{Name: "osmdata", Host: "localhost"}))
	assert.Equal(t,
		"dbname=osmdata host=dbhost port=5432 user=dbuser password=dbpass sslmode=disable",
		connString(database.ConnParams{
			Name: "osmdata", Host: "dbhost", Port: "5432",
			User: "dbuser", Password: "dbpass",
		}))
}

func TestBoundaryViewSQL(t *testing.T) {
	assert.Equal(t,
		"DROP VIEW IF EXISTS ways_view;CREATE VIEW ways_view AS SELECT * FROM ways_poly"+
			" WHERE ST_CONTAINS(ST_GeomFromEWKT('SRID=4326;POLYGON((0 0,1 0,1 1,0 1,0 0))'), geom)",
		boundaryViewSQL("ways_view", "ways_poly", false, "POLYGON((0 0,1 0,1 1,0 1,0 0))"))
	assert.Equal(t,
		"DROP VIEW IF EXISTS relations_view;CREATE TEMP VIEW relations_view AS SELECT * FROM nodes"+
			" WHERE ST_CONTAINS(ST_GeomFromEWKT('SRID=4326;POLYGON((0 0,1 0,1 1,0 1,0 0))'), geom)",
		boundaryViewSQL("relations_view", "nodes", true, "POLYGON((0 0,1 0,1 1,0 1,0 0))"))
}

func TestRewriteToViews(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "nodes",
			in:   "SELECT osm_id FROM nodes WHERE tags->>'amenity' IS NOT NULL",
			want: "SELECT osm_id FROM nodes_view WHERE tags->>'amenity' IS NOT NULL",
		},
		{
			name: "ways_poly",
			in:   "SELECT osm_id FROM ways_poly WHERE tags->>'building'='yes'",
			want: "SELECT osm_id FROM ways_view WHERE tags->>'building'='yes'",
		},
		{
			name: "ways_line",
			in:   "SELECT osm_id FROM ways_line WHERE tags->>'highway' IS NOT NULL",
			want: "SELECT osm_id FROM lines_view WHERE tags->>'highway' IS NOT NULL",
		},
		{
			name: "relations",
			in:   "SELECT osm_id FROM relations WHERE tags->>'type'='route'",
			want: "SELECT osm_id FROM relations_view WHERE tags->>'type'='route'",
		},
		{
			// no trailing space after the table name, nothing matches
			name: "statement ends in table name",
			in:   "SELECT osm_id FROM nodes",
			want: "SELECT osm_id FROM nodes",
		},
		{
			name: "unknown table",
			in:   "SELECT osm_id FROM admin_boundaries WHERE admin_level='2'",
			want: "SELECT osm_id FROM admin_boundaries WHERE admin_level='2'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rewriteToViews(tt.in))
		})
	}
}

func TestCustomColumnNames(t *testing.T) {
	id, version := customColumnNames(
		"SELECT ST_AsText(geom), osm_id, version, FROM nodes_view")
	assert.Equal(t, "osm_id", id)
	assert.Equal(t, "version", version)

	id, version = customColumnNames("SELECT * FROM nodes")
	assert.Equal(t, "", id)
	assert.Equal(t, "", version)

	id, version = customColumnNames("DROP VIEW nodes_view")
	assert.Equal(t, "", id)
	assert.Equal(t, "", version)
}

func TestDecodeRowCompiled(t *testing.T) {
	stmt := query.Statement{
		Table:   "nodes",
		Class:   query.Nodes,
		Columns: []string{"name", "amenity"},
	}
	feature, err := decodeRow([]interface{}{
		[]byte("POINT(30.5 50.4)"), int64(42), int64(3), []byte("Central School"), nil,
	}, stmt, "", "")
	require.NoError(t, err)

	assert.Equal(t, orb.Point{30.5, 50.4}, feature.Geometry)
	assert.Equal(t, int64(42), feature.Properties["id"])
	assert.Equal(t, int64(3), feature.Properties["version"])
	assert.Equal(t, "Central School", feature.Properties["name"])
	// NULL tags are omitted entirely
	assert.NotContains(t, feature.Properties, "amenity")
}

func TestDecodeRowCustom(t *testing.T) {
	sqlText := "SELECT ST_AsText(geom), osm_id, version, FROM nodes"
	idName, versionName := customColumnNames(sqlText)

	feature, err := decodeRow([]interface{}{
		"POINT(1 2)", int64(7), int64(1),
	}, query.Statement{}, idName, versionName)
	require.NoError(t, err)

	assert.Equal(t, orb.Point{1, 2}, feature.Geometry)
	assert.Equal(t, int64(7), feature.Properties["osm_id"])
	assert.Equal(t, int64(1), feature.Properties["version"])
	assert.NotContains(t, feature.Properties, "id")
}

func TestDecodeRowBadGeometry(t *testing.T) {
	_, err := decodeRow([]interface{}{
		"no geometry here", int64(1), int64(1),
	}, query.Statement{Table: "nodes"}, "", "")
	assert.Error(t, err)
}

// TestExtractLive runs the compiled statements against a real PostGIS
// raw-data store. Point OSMEXTRACT_TEST_DB at a prepared database to
// enable it.
func TestExtractLive(t *testing.T) {
	uri := os.Getenv("OSMEXTRACT_TEST_DB")
	if uri == "" {
		t.Skip("OSMEXTRACT_TEST_DB not set")
	}

	cfg := query.NewConfig()
	cfg.Tables = []string{"nodes"}
	cfg.Select[query.Nodes] = []query.SelectEntry{{Key: "name"}}
	cfg.Where[query.Nodes] = []query.WhereClause{
		{Key: "amenity", Op: "or", Values: []string{"not null"}},
	}

	db, err := New(database.ParseURI(uri), cfg)
	require.NoError(t, err)
	defer db.Close()

	boundary := orb.Polygon{{{-180, -90}, {180, -90}, {180, 90}, {-180, 90}, {-180, -90}}}
	collection, err := db.Extract(boundary, "", true)
	require.NoError(t, err)
	assert.NotNil(t, collection.Features)
}
