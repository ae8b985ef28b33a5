// Package extract is the user-facing client: it parses the connection
// URI, loads the query configuration and routes extractions to either the
// local PostGIS backend or the remote raw-data API.
package extract

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/guspan-tanadi/osm-rawdatabyhotosm/database"
	"github.com/guspan-tanadi/osm-rawdatabyhotosm/logging"
	"github.com/guspan-tanadi/osm-rawdatabyhotosm/query"

	// register both backends
	_ "github.com/guspan-tanadi/osm-rawdatabyhotosm/api"
	_ "github.com/guspan-tanadi/osm-rawdatabyhotosm/database/postgis"
)

var log = logging.NewLogger("Extract")

// Client extracts OSM features through exactly one backend, chosen from
// the connection URI when the client is constructed. It owns its backend
// session; run one Client per goroutine for parallel extractions and
// Close it when done.
type Client struct {
	Params  database.ConnParams
	Config  *query.Config
	backend database.Extractor
}

// NewClient parses the URI, loads the query configuration (configPath may
// be empty for custom-SQL use) and connects the backend. Configuration
// and connection failures are construction failures; no half-usable
// client is returned.
func NewClient(uri, configPath string) (*Client, error) {
	qc := query.NewConfig()
	if configPath != "" {
		var err error
		qc, err = query.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}

	params := database.ParseURI(uri)
	backend, err := database.Open(database.BackendFor(params), params, qc)
	if err != nil {
		log.Errorf("couldn't connect to database: %v", err)
		return nil, err
	}
	return &Client{Params: params, Config: qc, backend: backend}, nil
}

// Extract runs one extraction scoped to the boundary. customSQL, when
// non-empty, is executed verbatim on the local backend instead of the
// compiled statements.
func (c *Client) Extract(boundary orb.Geometry, customSQL string, allGeom bool) (*geojson.FeatureCollection, error) {
	log.Printf("extracting features")
	defer log.StopStep(log.StartStep("data extract"))
	return c.backend.Extract(boundary, customSQL, allGeom)
}

func (c *Client) Close() error {
	return c.backend.Close()
}

// BoundaryFromGeoJSON returns the effective boundary geometry of a
// GeoJSON document: a bare geometry, a feature's geometry, or the FIRST
// feature of a collection. Additional features of a multi-feature
// boundary are ignored; multipolygon boundaries are not supported.
func BoundaryFromGeoJSON(data []byte) (orb.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrap(err, "parsing boundary")
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, errors.Wrap(err, "parsing boundary collection")
		}
		if len(fc.Features) == 0 {
			return nil, errors.New("boundary collection holds no features")
		}
		return fc.Features[0].Geometry, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, errors.Wrap(err, "parsing boundary feature")
		}
		return f.Geometry, nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing boundary geometry")
	}
	return g.Geometry(), nil
}
