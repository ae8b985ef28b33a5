// Package postgis runs compiled extraction statements against a local
// PostGIS-backed raw-data store.
package postgis

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/guspan-tanadi/osm-rawdatabyhotosm/database"
	"github.com/guspan-tanadi/osm-rawdatabyhotosm/logging"
	"github.com/guspan-tanadi/osm-rawdatabyhotosm/query"
)

var log = logging.NewLogger("PostGIS")

type SQLError struct {
	query         string
	originalError error
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("SQL Error: %s in query %s", e.originalError.Error(), e.query)
}

// DB is the local extraction backend. It owns a single database session
// whose lifetime is tied to the DB value; it is not safe for concurrent
// use from multiple call sites.
type DB struct {
	Db     *sql.DB
	Params string
	config *query.Config
}

func New(params database.ConnParams, qc *query.Config) (database.Extractor, error) {
	db := &DB{
		Params: connString(params),
		config: qc,
	}
	log.Printf("opening database connection to: %s", params.Name)
	if err := db.Open(); err != nil {
		return nil, err
	}
	return db, nil
}

// connString renders lib/pq connection parameters from the parsed URI.
// SSL is disabled by default, matching the common local-store setup; set
// PGSSLMODE to override.
func connString(p database.ConnParams) string {
	parts := []string{"dbname=" + p.Name}
	if p.Host != "" {
		parts = append(parts, "host="+p.Host)
	}
	if p.Port != "" {
		parts = append(parts, "port="+p.Port)
	}
	if p.User != "" {
		parts = append(parts, "user="+p.User)
	}
	if p.Password != "" {
		parts = append(parts, "password="+p.Password)
	}
	parts = append(parts, "sslmode=disable")
	return strings.Join(parts, " ")
}

func (pg *DB) Open() error {
	var err error
	pg.Db, err = sql.Open("postgres", pg.Params)
	if err != nil {
		return err
	}
	// check that the connection actually works
	if err := pg.Db.Ping(); err != nil {
		pg.Db.Close()
		return err
	}
	return nil
}

func (pg *DB) Close() error {
	return pg.Db.Close()
}

// CreateTable executes externally supplied DDL against the session.
func (pg *DB) CreateTable(sqlText string) error {
	log.Printf("creating table schema")
	if _, err := pg.Db.Exec(sqlText); err != nil {
		return &SQLError{sqlText, err}
	}
	return nil
}

// Extract compiles the configuration (or takes customSQL verbatim), runs
// every statement scoped to the boundary and concatenates the decoded
// features in database return order.
func (pg *DB) Extract(boundary orb.Geometry, customSQL string, allGeom bool) (*geojson.FeatureCollection, error) {
	var stmts []query.Statement
	if customSQL != "" {
		stmts = []query.Statement{{SQL: customSQL}}
	} else {
		stmts = pg.config.SQL(allGeom)
	}

	collection := geojson.NewFeatureCollection()
	for _, stmt := range stmts {
		features, err := pg.runStatement(stmt, boundary)
		if err != nil {
			return nil, err
		}
		collection.Features = append(collection.Features, features...)
	}
	return collection, nil
}

func (pg *DB) runStatement(stmt query.Statement, boundary orb.Geometry) ([]*geojson.Feature, error) {
	sqlText := stmt.SQL
	if boundary != nil {
		if err := pg.createBoundaryViews(boundary); err != nil {
			return nil, err
		}
		sqlText = rewriteToViews(sqlText)
	}

	log.Debugf("%s", sqlText)
	rows, err := pg.Db.Query(sqlText)
	if err != nil {
		return nil, &SQLError{sqlText, err}
	}
	defer rows.Close()

	features, err := decodeRows(rows, stmt, sqlText)
	if err != nil {
		return nil, err
	}
	log.Debugf("query returned %d records", len(features))
	return features, nil
}

// boundaryViews are the per-table scoped views recreated for every
// extraction call. The relations view is temporary and reads from nodes,
// matching the raw-data schema where relation members resolve to nodes.
var boundaryViews = []struct {
	view  string
	table string
	temp  bool
}{
	{"ways_view", "ways_poly", false},
	{"nodes_view", "nodes", false},
	{"lines_view", "ways_line", false},
	{"relations_view", "nodes", true},
}

func (pg *DB) createBoundaryViews(boundary orb.Geometry) error {
	boundaryWKT := wkt.MarshalString(boundary)
	for _, v := range boundaryViews {
		sqlText := boundaryViewSQL(v.view, v.table, v.temp, boundaryWKT)
		if _, err := pg.Db.Exec(sqlText); err != nil {
			return &SQLError{sqlText, err}
		}
	}
	return nil
}

func boundaryViewSQL(view, table string, temp bool, boundaryWKT string) string {
	create := "CREATE VIEW"
	if temp {
		create = "CREATE TEMP VIEW"
	}
	return fmt.Sprintf(
		"DROP VIEW IF EXISTS %s;%s %s AS SELECT * FROM %s WHERE ST_CONTAINS(ST_GeomFromEWKT('SRID=4326;%s'), geom)",
		view, create, view, table, boundaryWKT)
}

// rewriteToViews redirects the single table a statement targets to its
// boundary-scoped view. The table name must appear space-delimited; a
// statement ending in its table name (no WHERE clause) is left untouched.
// Both quirks are load-bearing for existing custom SQL.
func rewriteToViews(q string) string {
	switch {
	case strings.Index(q, " ways_poly ") > 0:
		return strings.Replace(q, "ways_poly", "ways_view", -1)
	case strings.Index(q, " ways_line ") > 0:
		return strings.Replace(q, "ways_line", "lines_view", -1)
	case strings.Index(q, " nodes ") > 0:
		return strings.Replace(q, "nodes", "nodes_view", -1)
	case strings.Index(q, " relations ") > 0:
		return strings.Replace(q, "relations", "relations_view", -1)
	}
	return q
}

func init() {
	database.Register("postgis", New)
	database.Register("postgres", New)
}
