package database

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/guspan-tanadi/osm-rawdatabyhotosm/query"
)

// Extractor is the shared contract of the local PostGIS backend and the
// remote raw-data API backend. The backend is chosen once, when the client
// is constructed, never per call.
//
// An Extractor owns its database or HTTP session exclusively and is not
// safe for concurrent use. Callers that need parallel extractions run one
// Extractor per goroutine.
type Extractor interface {
	// Extract runs the configured query scoped to the boundary geometry.
	// customSQL, when non-empty, is executed verbatim instead of the
	// compiled statements; it has no meaning for the remote backend.
	Extract(boundary orb.Geometry, customSQL string, allGeom bool) (*geojson.FeatureCollection, error)
	Close() error
}

type Opener func(ConnParams, *query.Config) (Extractor, error)

var backends map[string]Opener

func init() {
	backends = make(map[string]Opener)
}

func Register(name string, f Opener) {
	backends[name] = f
}

// Open constructs the named backend. Connection failures are construction
// failures: no Extractor is returned that could not serve requests.
func Open(name string, params ConnParams, qc *query.Config) (Extractor, error) {
	newFunc, ok := backends[name]
	if !ok {
		return nil, errors.Errorf("unsupported backend: %s", name)
	}
	return newFunc(params, qc)
}

// BackendFor maps a parsed URI onto a backend name. The reserved database
// name selects the remote raw-data API.
func BackendFor(p ConnParams) string {
	if p.Name == RemoteName {
		return "rawdata-api"
	}
	return "postgis"
}
