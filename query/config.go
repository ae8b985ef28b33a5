// Package query holds the declarative extraction configuration and compiles
// it into either SQL statements for a local PostGIS store or a JSON request
// document for the remote raw-data API.
package query

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// GeometryClass names one of the three OSM feature categories and the
// database table that stores it.
type GeometryClass string

const (
	Nodes    GeometryClass = "nodes"
	WaysLine GeometryClass = "ways_line"
	WaysPoly GeometryClass = "ways_poly"
)

// Classes lists the geometry classes in their canonical order. Compilation
// and row decoding both iterate in this order; keep it stable.
var Classes = []GeometryClass{Nodes, WaysLine, WaysPoly}

// SelectEntry is one attribute to extract as an output property. The hint
// is passed through to renderers and has no meaning for compilation.
type SelectEntry struct {
	Key  string
	Hint string
}

// WhereClause is one boolean tag filter. Op is "or" or "and". A values
// list containing the single sentinel "not null", or no values at all,
// asks for presence of the tag without a value constraint. AnyOf carries
// the nested list form that matches any element of an array-valued tag.
type WhereClause struct {
	Key    string
	Op     string
	Values []string
	AnyOf  []string
}

const notNullSentinel = "not null"

// NotNull reports whether the clause constrains only the presence of the
// tag, not its value.
func (w WhereClause) NotNull() bool {
	for _, v := range w.Values {
		if v == notNullSentinel {
			return true
		}
	}
	return len(w.Values) == 0 && w.AnyOf == nil
}

// Config is the parsed query configuration. It is built once per client
// and never mutated afterwards.
type Config struct {
	Select   map[GeometryClass][]SelectEntry
	Where    map[GeometryClass][]WhereClause
	Tables   []string
	Centroid bool
}

func NewConfig() *Config {
	return &Config{
		Select: map[GeometryClass][]SelectEntry{Nodes: nil, WaysLine: nil, WaysPoly: nil},
		Where:  map[GeometryClass][]WhereClause{Nodes: nil, WaysLine: nil, WaysPoly: nil},
	}
}

// LoadConfig reads a query configuration from a JSON or YAML file,
// switching on the file extension.
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", filename)
	}
	defer f.Close()

	switch filepath.Ext(filename) {
	case ".json":
		return ParseJSON(f)
	case ".yaml", ".yml":
		return ParseYAML(f)
	}
	return nil, errors.Errorf("unsupported config format: %s", filename)
}

func ParseJSON(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing JSON config")
	}
	return fromRaw(raw)
}

func ParseYAML(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw := map[interface{}]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing YAML config")
	}
	return fromRaw(stringKeys(raw))
}

// fromRaw normalizes the loosely typed select/where/tables document into a
// Config. Select entries are either bare strings or single-pair maps of
// key to rendering hint. Where entries are maps holding an "op" pair plus
// one tag key paired with its value list.
func fromRaw(raw map[string]interface{}) (*Config, error) {
	cfg := NewConfig()

	if sel, ok := raw["select"].(map[string]interface{}); ok {
		for _, class := range Classes {
			entries, err := selectEntries(sel[string(class)])
			if err != nil {
				return nil, errors.Wrapf(err, "select.%s", class)
			}
			cfg.Select[class] = entries
		}
	}
	if where, ok := raw["where"].(map[string]interface{}); ok {
		for _, class := range Classes {
			clauses, err := whereClauses(where[string(class)])
			if err != nil {
				return nil, errors.Wrapf(err, "where.%s", class)
			}
			cfg.Where[class] = clauses
		}
	}
	if tables, ok := raw["tables"].([]interface{}); ok {
		for _, t := range tables {
			cfg.Tables = append(cfg.Tables, fmt.Sprint(t))
		}
	}
	if centroid, ok := raw["centroid"].(bool); ok {
		cfg.Centroid = centroid
	}
	return cfg, nil
}

func selectEntries(v interface{}) ([]SelectEntry, error) {
	list, ok := v.([]interface{})
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, errors.Errorf("expected a list, got %T", v)
	}
	var entries []SelectEntry
	for _, item := range list {
		switch item := normalize(item).(type) {
		case string:
			entries = append(entries, SelectEntry{Key: item})
		case map[string]interface{}:
			if len(item) != 1 {
				return nil, errors.Errorf("select entry must hold a single key, got %d", len(item))
			}
			for k, hint := range item {
				entries = append(entries, SelectEntry{Key: k, Hint: fmt.Sprint(hint)})
			}
		default:
			return nil, errors.Errorf("invalid select entry %v", item)
		}
	}
	return entries, nil
}

func whereClauses(v interface{}) ([]WhereClause, error) {
	list, ok := v.([]interface{})
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, errors.Errorf("expected a list, got %T", v)
	}
	var clauses []WhereClause
	for _, item := range list {
		entry, ok := normalize(item).(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("invalid where entry %v", item)
		}
		clause := WhereClause{}
		for k, v := range entry {
			if k == "op" {
				clause.Op = fmt.Sprint(v)
				continue
			}
			clause.Key = k
			switch v := normalize(v).(type) {
			case nil:
			case string:
				clause.Values = []string{v}
			case []interface{}:
				for _, elem := range v {
					if nested, ok := normalize(elem).([]interface{}); ok {
						// list-of-lists form: match any array element
						for _, n := range nested {
							clause.AnyOf = append(clause.AnyOf, fmt.Sprint(n))
						}
						continue
					}
					clause.Values = append(clause.Values, fmt.Sprint(elem))
				}
			default:
				return nil, errors.Errorf("invalid values for %s: %v", k, v)
			}
		}
		if clause.Key == "" {
			return nil, errors.New("where entry without a tag key")
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// normalize converts yaml.v2 map types into their JSON-shaped equivalents
// so both formats share one code path.
func normalize(v interface{}) interface{} {
	if m, ok := v.(map[interface{}]interface{}); ok {
		return stringKeys(m)
	}
	return v
}

func stringKeys(m map[interface{}]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[fmt.Sprint(k)] = v
	}
	return out
}
